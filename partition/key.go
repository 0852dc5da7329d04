// Package partition names, encodes and stores time-partitioned parquet files.
package partition

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/relloyd/trackpipe/constants"
)

var reKey = regexp.MustCompile(`^([^/]+)/([0-9]{4})/([0-9]{2})/([0-9]{2})/([^/]+)_(` + constants.PartitionTimeFormatRegex + `)` + regexp.QuoteMeta(constants.PartitionFileExt) + `$`)

// Key identifies one partition file. CreatedAt is UTC to the second and is the loaded_at of every
// row in the file.
type Key struct {
	Prefix    string    `json:"prefix"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewKey(prefix string, t time.Time) Key {
	return Key{Prefix: prefix, CreatedAt: t.UTC().Truncate(time.Second)}
}

// String returns {prefix}/{yyyy}/{mm}/{dd}/{prefix}_{yyyymmdd_HHMMSS}.parquet.
func (k Key) String() string {
	return fmt.Sprintf("%v/%v/%v", k.Prefix, k.CreatedAt.Format("2006/01/02"), k.FileName())
}

// FileName is the last path element of the key.
func (k Key) FileName() string {
	return k.Prefix + "_" + k.CreatedAt.Format(constants.PartitionTimeFormat) + constants.PartitionFileExt
}

// PathInPrefix is the key relative to its prefix, which is how a stage rooted at the prefix sees it.
func (k Key) PathInPrefix() string {
	return strings.TrimPrefix(k.String(), k.Prefix+"/")
}

// LoadedAt is the warehouse loaded_at value for rows in this file.
func (k Key) LoadedAt() time.Time {
	return k.CreatedAt
}

func (k Key) IsZero() bool {
	return k.Prefix == "" && k.CreatedAt.IsZero()
}

// ParseKey is the inverse of Key.String. The directory dates must agree with the file name.
func ParseKey(s string) (Key, error) {
	m := reKey.FindStringSubmatch(s)
	if m == nil {
		return Key{}, fmt.Errorf("%q is not a partition key", s)
	}
	if m[1] != m[5] {
		return Key{}, fmt.Errorf("partition key %q has prefix %q but file prefix %q", s, m[1], m[5])
	}
	t, err := time.ParseInLocation(constants.PartitionTimeFormat, m[6], time.UTC)
	if err != nil {
		return Key{}, fmt.Errorf("partition key %q: %w", s, err)
	}
	k := NewKey(m[1], t)
	if k.String() != s {
		return Key{}, fmt.Errorf("partition key %q has directories that do not match its timestamp", s)
	}
	return k, nil
}

// ValidatePrefix checks that prefix is usable as a single leading path element.
func ValidatePrefix(prefix string) error {
	if prefix == "" || strings.ContainsAny(prefix, "/\\ ") {
		return fmt.Errorf("invalid partition prefix %q", prefix)
	}
	return nil
}
