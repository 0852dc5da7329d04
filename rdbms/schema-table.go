package rdbms

import (
	"fmt"
	"regexp"
	"strings"
)

// reSchemaTable accepts [database.][schema.]table with optional double-quoted parts.
var reSchemaTable = regexp.MustCompile(`^("[^"]+"|[A-Za-z_][A-Za-z0-9_$]*)(\.("[^"]+"|[A-Za-z_][A-Za-z0-9_$]*)){0,2}$`)

// SchemaTable is a [database.][schema.]object name that is safe to interpolate into SQL.
type SchemaTable struct {
	SchemaTable string `errorTxt:"[<schema>.]<object>" mandatory:"yes"`
}

func NewSchemaTable(schema string, table string) SchemaTable {
	if schema == "" {
		return SchemaTable{table}
	} else {
		return SchemaTable{schema + "." + table}
	}
}

// ParseSchemaTable validates s and returns it as a SchemaTable.
func ParseSchemaTable(s string) (SchemaTable, error) {
	s = strings.TrimSpace(s)
	if !reSchemaTable.MatchString(s) {
		return SchemaTable{}, fmt.Errorf("invalid object name %q", s)
	}
	return SchemaTable{s}, nil
}

// MustParseSchemaTable is ParseSchemaTable for compile-time constants.
func MustParseSchemaTable(s string) SchemaTable {
	st, err := ParseSchemaTable(s)
	if err != nil {
		panic(err)
	}
	return st
}

// GetTable returns the last dotted part of the name.
func (st SchemaTable) GetTable() string {
	parts := st.split()
	return parts[len(parts)-1]
}

// GetSchema returns everything before the last dot, or "" for a bare table.
func (st SchemaTable) GetSchema() string {
	parts := st.split()
	return strings.Join(parts[:len(parts)-1], ".")
}

func (st SchemaTable) String() string {
	return st.SchemaTable
}

// split breaks the name on dots that are not inside double quotes.
func (st SchemaTable) split() []string {
	parts := make([]string, 0, 3)
	inQuotes := false
	start := 0
	for i, r := range st.SchemaTable {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '.' && !inQuotes:
			parts = append(parts, st.SchemaTable[start:i])
			start = i + 1
		}
	}
	return append(parts, st.SchemaTable[start:])
}
