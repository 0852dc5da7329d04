// Package loader copies staged partition files into Snowflake.
package loader

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/relloyd/trackpipe/constants"
	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/partition"
	"github.com/relloyd/trackpipe/rdbms"
	"github.com/relloyd/trackpipe/stats"
)

const loadedAtLiteralFormat = "2006-01-02 15:04:05"

// WarehouseLoadError is a fatal load failure; the transaction has been rolled back.
type WarehouseLoadError struct {
	Table string
	Query string
	Err   error
}

func (e *WarehouseLoadError) Error() string {
	return fmt.Sprintf("error loading %v: %v", e.Table, e.Err)
}

func (e *WarehouseLoadError) Unwrap() error { return e.Err }

// LoadReport summarises one load.
type LoadReport struct {
	Table      string   `json:"table"`
	Mode       string   `json:"mode"`
	Files      []string `json:"files,omitempty"`   // copied in this load
	Skipped    []string `json:"skipped,omitempty"` // already in the ledger
	RowsLoaded int64    `json:"rowsLoaded"`
	Archived   []string `json:"archived,omitempty"`
}

type SnowflakeLoaderConfig struct {
	Log           logger.Logger
	Name          string
	Db            rdbms.Connector   // connection to target snowflake database abstracted via interface.
	Ledger        *Ledger           // required by LoadPartitions.
	Storage       partition.Storage // used for archival; may be nil when Archive is false.
	Archive       bool              // move loaded files under ArchivePrefix after commit.
	ArchivePrefix string
}

type SnowflakeLoader struct {
	cfg SnowflakeLoaderConfig
}

func NewSnowflakeLoader(cfg SnowflakeLoaderConfig) (*SnowflakeLoader, error) {
	if cfg.Db == nil {
		return nil, errors.New("snowflake loader requires a database connection")
	}
	if cfg.Archive && (cfg.Storage == nil || cfg.ArchivePrefix == "") {
		return nil, errors.New("archival requires storage and an archive prefix")
	}
	if cfg.Name == "" {
		cfg.Name = "SnowflakeLoader"
	}
	return &SnowflakeLoader{cfg: cfg}, nil
}

// LoadStaged runs one COPY INTO over every file in the stage matching pattern, deriving loaded_at
// from each file name. With archival enabled, the keys listed under the spec prefix before the copy
// are moved to the archive after commit.
func (l *SnowflakeLoader) LoadStaged(ctx context.Context, spec TableSpec, pattern string) (LoadReport, error) {
	log := l.cfg.Log.WithField("table", spec.Table.String())
	report := LoadReport{Table: spec.Table.String(), Mode: constants.LoadModePattern}
	if pattern == "" {
		pattern = constants.PartitionFilePattern
	}
	var staged []string
	if l.cfg.Archive {
		var err error
		if staged, err = l.cfg.Storage.List(ctx, spec.Prefix+"/"); err != nil {
			return report, &WarehouseLoadError{Table: report.Table, Err: errors.Wrap(err, "error listing staged files")}
		}
	}
	tx, rollbackRequired, err := l.begin(ctx, log)
	if err != nil {
		return report, &WarehouseLoadError{Table: report.Table, Err: err}
	}
	defer snowflakeRollback(log, l.cfg.Name, tx, &rollbackRequired)
	query := GetSqlSnowflakeCopyIntoPattern(spec, pattern)
	log.Info(l.cfg.Name, " loading into table '", spec.Table, "' from stage '", spec.Stage, "' pattern '", pattern, "'")
	res, err := tx.ExecContext(ctx, query)
	n, err := assertExec(log, l.cfg.Name, tx, &rollbackRequired, query, res, err)
	if err != nil {
		return report, &WarehouseLoadError{Table: report.Table, Query: query, Err: err}
	}
	report.RowsLoaded = n
	if err = l.commit(log, tx, &rollbackRequired); err != nil {
		return report, &WarehouseLoadError{Table: report.Table, Query: "commit", Err: err}
	}
	report.Files = staged
	stats.AddFilesLoaded(report.Table, len(staged))
	if l.cfg.Archive {
		report.Archived = l.archive(ctx, log, staged)
	}
	return report, nil
}

// LoadPartitions copies each key with an explicit FILES list and a loaded_at literal from the key.
// Keys already in the ledger are skipped. Copies and ledger rows share one transaction.
func (l *SnowflakeLoader) LoadPartitions(ctx context.Context, spec TableSpec, keys []partition.Key) (LoadReport, error) {
	log := l.cfg.Log.WithField("table", spec.Table.String())
	report := LoadReport{Table: spec.Table.String(), Mode: constants.LoadModeFiles}
	if l.cfg.Ledger == nil {
		return report, &WarehouseLoadError{Table: report.Table, Err: errors.New("files mode requires a ledger")}
	}
	if len(keys) == 0 {
		return report, nil
	}
	keyStrings := make([]string, len(keys))
	for i, k := range keys {
		keyStrings[i] = k.String()
	}
	tx, rollbackRequired, err := l.begin(ctx, log)
	if err != nil {
		return report, &WarehouseLoadError{Table: report.Table, Err: err}
	}
	defer snowflakeRollback(log, l.cfg.Name, tx, &rollbackRequired)
	loaded, err := l.cfg.Ledger.LoadedKeys(ctx, tx, spec.Table, keyStrings)
	if err != nil {
		snowflakeRollback(log, l.cfg.Name, tx, &rollbackRequired)
		return report, &WarehouseLoadError{Table: report.Table, Err: errors.Wrap(err, "error reading ledger")}
	}
	entries := make([]LedgerEntry, 0, len(keys))
	for _, k := range keys { // for each file to load...
		if loaded[k.String()] {
			log.Info(l.cfg.Name, " skipping '", k, "' which is already in the ledger")
			report.Skipped = append(report.Skipped, k.String())
			continue
		}
		query := GetSqlSnowflakeCopyIntoFile(spec, k.PathInPrefix(), k.LoadedAt().Format(loadedAtLiteralFormat))
		log.Info(l.cfg.Name, " loading into table '", spec.Table, "' from stage '", spec.Stage, "' file name '", k.PathInPrefix(), "'")
		res, err := tx.ExecContext(ctx, query)
		n, err := assertExec(log, l.cfg.Name, tx, &rollbackRequired, query, res, err)
		if err != nil {
			return report, &WarehouseLoadError{Table: report.Table, Query: query, Err: err}
		}
		report.RowsLoaded += n
		report.Files = append(report.Files, k.String())
		entries = append(entries, LedgerEntry{FileKey: k.String(), TargetTable: spec.Table.String(), LoadedAt: k.LoadedAt()})
	}
	if err = l.cfg.Ledger.Record(ctx, tx, entries); err != nil {
		snowflakeRollback(log, l.cfg.Name, tx, &rollbackRequired)
		return report, &WarehouseLoadError{Table: report.Table, Err: err}
	}
	if err = l.commit(log, tx, &rollbackRequired); err != nil {
		return report, &WarehouseLoadError{Table: report.Table, Query: "commit", Err: err}
	}
	stats.AddFilesLoaded(report.Table, len(report.Files))
	if l.cfg.Archive { // skipped keys are moved too in case an earlier archival failed
		report.Archived = l.archive(ctx, log, keyStrings)
	}
	return report, nil
}

// begin starts a transaction with autocommit off.
func (l *SnowflakeLoader) begin(ctx context.Context, log logger.Logger) (tx rdbms.Transacter, rollbackRequired bool, err error) {
	tx, err = l.cfg.Db.Begin(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "error starting Snowflake transaction")
	}
	rollbackRequired = true
	query := "alter session set autocommit = false"
	res, err := tx.ExecContext(ctx, query)
	if _, err = assertExec(log, l.cfg.Name, tx, &rollbackRequired, query, res, err); err != nil {
		return nil, false, err
	}
	log.Debug(l.cfg.Name, " set autocommit false")
	return tx, rollbackRequired, nil
}

// commit commits tx. If we don't get here the deferred rollback runs.
func (l *SnowflakeLoader) commit(log logger.Logger, tx rdbms.Transacter, rollbackRequired *bool) error {
	if err := tx.Commit(); err != nil {
		snowflakeRollback(log, l.cfg.Name, tx, rollbackRequired)
		return errors.Wrap(err, "error while executing commit")
	}
	*rollbackRequired = false
	log.Debug(l.cfg.Name, " commit complete")
	return nil
}

// archive moves each key to {archivePrefix}/{key}. Failures are logged, not returned.
func (l *SnowflakeLoader) archive(ctx context.Context, log logger.Logger, keys []string) []string {
	moved := make([]string, 0, len(keys))
	for _, k := range keys {
		dst := l.cfg.ArchivePrefix + "/" + k
		if err := l.cfg.Storage.Move(ctx, k, dst); err != nil {
			log.Warn(l.cfg.Name, " unable to archive '", k, "': ", err)
			continue
		}
		moved = append(moved, dst)
	}
	log.Info(l.cfg.Name, " archived ", len(moved), " of ", len(keys), " files")
	return moved
}

// assertExec logs the rows affected and rolls back when err is set.
func assertExec(log logger.Logger, name string, tx rdbms.Transacter, rollbackRequired *bool, query string, res sql.Result, err error) (int64, error) {
	var i int64
	if res != nil {
		var e error
		i, e = res.RowsAffected()
		if e == nil { // if we have the number of rows affected...
			log.Info(name, " rows affected: ", i) // log it.
		} // else the error is only concerned with number of rows affected, which can be 0 for DDL, even COPY INTO is DDL.
	}
	if err != nil {
		snowflakeRollback(log, name, tx, rollbackRequired)
		return 0, errors.Wrapf(err, "error received while executing SQL: '%v'", query)
	}
	return i, nil
}

func snowflakeRollback(log logger.Logger, stepName string, tx rdbms.Transacter, rollbackRequired *bool) {
	log.Debug(stepName, " deferred rollback: required = ", *rollbackRequired)
	if *rollbackRequired { // if rollback is required...
		err := tx.Rollback()
		*rollbackRequired = false
		if err != nil {
			log.Error(stepName, " received error while executing rollback: ", err)
			return
		}
		log.Info(stepName, " rollback complete")
	}
}
