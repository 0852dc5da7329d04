package loader

import (
	"fmt"
	"strings"

	"github.com/cevaris/ordered_map"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/rdbms"
)

const columnLoadedAt = "loaded_at"

// TableSpec describes a target table, the stage its files are read from and the projection of each
// column from the staged parquet record. The stage must be rooted at Prefix in the bucket.
type TableSpec struct {
	Table   rdbms.SchemaTable
	Stage   rdbms.SchemaTable
	Prefix  string
	Columns *ordered_map.OrderedMap // column name => projection from $1, in table order
}

// TopTracksSpec projects artists_name, track_name, track_id and popularity.
func TopTracksSpec(table rdbms.SchemaTable, stage rdbms.SchemaTable, prefix string) TableSpec {
	cols := ordered_map.NewOrderedMap()
	cols.Set("track_name", "$1:track_name::STRING")
	cols.Set("track_id", "$1:track_id::STRING")
	cols.Set("artists_name", "$1:artists_name::STRING")
	cols.Set("popularity", "$1:popularity::NUMBER")
	return TableSpec{Table: table, Stage: stage, Prefix: prefix, Columns: cols}
}

// AudioFeaturesSpec loads the raw feature document into a VARIANT column.
func AudioFeaturesSpec(table rdbms.SchemaTable, stage rdbms.SchemaTable, prefix string) TableSpec {
	cols := ordered_map.NewOrderedMap()
	cols.Set("track_id", "$1:track_id::STRING")
	cols.Set("document", "PARSE_JSON($1:document::STRING)")
	return TableSpec{Table: table, Stage: stage, Prefix: prefix, Columns: cols}
}

// loadedAtFromFileName derives loaded_at from the timestamp token in the staged file name.
func loadedAtFromFileName() string {
	return fmt.Sprintf("TO_TIMESTAMP_TZ(REGEXP_SUBSTR(METADATA$FILENAME, '%v'), '%v')::TIMESTAMP_NTZ",
		constants.PartitionTimeFormatRegex, constants.PartitionTimeFormatSql)
}

// getSelectList renders the projections followed by loadedAtExpr AS loaded_at.
func (s TableSpec) getSelectList(loadedAtExpr string) string {
	cols := make([]string, 0, s.Columns.Len()+1)
	iter := s.Columns.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() { // for each column in table order...
		cols = append(cols, fmt.Sprintf("%v AS %v", kv.Value, kv.Key))
	}
	cols = append(cols, fmt.Sprintf("%v AS %v", loadedAtExpr, columnLoadedAt))
	return strings.Join(cols, ", ")
}

// GetSqlSnowflakeCopyIntoPattern copies every staged file matching pattern.
func GetSqlSnowflakeCopyIntoPattern(s TableSpec, pattern string) string {
	return fmt.Sprintf("COPY INTO %v FROM (SELECT %v FROM @%v) FILE_FORMAT = (TYPE = PARQUET) PATTERN = %v",
		s.Table, s.getSelectList(loadedAtFromFileName()), s.Stage, snowflakeStringLiteral(pattern))
}

// GetSqlSnowflakeCopyIntoFile copies the single staged file at path with loaded_at as a literal.
func GetSqlSnowflakeCopyIntoFile(s TableSpec, path string, loadedAt string) string {
	return fmt.Sprintf("COPY INTO %v FROM (SELECT %v FROM @%v) FILE_FORMAT = (TYPE = PARQUET) FILES = (%v)",
		s.Table, s.getSelectList(snowflakeStringLiteral(loadedAt)+"::TIMESTAMP_NTZ"), s.Stage, snowflakeStringLiteral(path))
}

// snowflakeStringLiteral quotes s, escaping backslashes and single quotes.
func snowflakeStringLiteral(s string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `''`).Replace(s) + "'"
}
