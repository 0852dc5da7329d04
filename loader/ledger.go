package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relloyd/trackpipe/logger"
	"github.com/relloyd/trackpipe/rdbms"
)

// LedgerEntry records one file copied into a target table.
type LedgerEntry struct {
	FileKey     string
	TargetTable string
	LoadedAt    time.Time
	RecordedAt  time.Time
}

// Ledger remembers which staged files were loaded into which table, independently of the
// warehouse's own load metadata and its retention.
type Ledger struct {
	log   logger.Logger
	table rdbms.SchemaTable
	now   func() time.Time
}

func NewLedger(log logger.Logger, table rdbms.SchemaTable) *Ledger {
	return &Ledger{log: log, table: table, now: time.Now}
}

func (l *Ledger) Table() rdbms.SchemaTable {
	return l.table
}

func getSqlLedgerCreate(table rdbms.SchemaTable) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %v (file_key STRING NOT NULL, target_table STRING NOT NULL, loaded_at TIMESTAMP_NTZ NOT NULL, recorded_at TIMESTAMP_NTZ NOT NULL)", table)
}

func getSqlLedgerSelect(table rdbms.SchemaTable, numKeys int) string {
	binds := strings.TrimSuffix(strings.Repeat("?, ", numKeys), ", ")
	return fmt.Sprintf("SELECT file_key FROM %v WHERE target_table = ? AND file_key IN (%v)", table, binds)
}

func getSqlLedgerInsert(table rdbms.SchemaTable) string {
	return fmt.Sprintf("INSERT INTO %v (file_key, target_table, loaded_at, recorded_at) VALUES (?, ?, ?, ?)", table)
}

// Init creates the ledger table if it does not exist.
func (l *Ledger) Init(ctx context.Context, db rdbms.Connector) error {
	q := getSqlLedgerCreate(l.table)
	if _, err := db.ExecContext(ctx, q); err != nil {
		return &WarehouseLoadError{Table: l.table.String(), Query: q, Err: err}
	}
	l.log.Info("ledger table ", l.table, " is ready")
	return nil
}

// LoadedKeys returns the subset of keys already recorded against target.
func (l *Ledger) LoadedKeys(ctx context.Context, db rdbms.Queryer, target rdbms.SchemaTable, keys []string) (map[string]bool, error) {
	loaded := make(map[string]bool)
	if len(keys) == 0 {
		return loaded, nil
	}
	args := make([]interface{}, 0, len(keys)+1)
	args = append(args, target.String())
	for _, k := range keys {
		args = append(args, k)
	}
	err := rdbms.SqlQuery(ctx, l.log, db, getSqlLedgerSelect(l.table, len(keys)), args, func(rows rdbms.Rows) error {
		var k string
		if err := rows.Scan(&k); err != nil {
			return err
		}
		loaded[k] = true
		return nil
	})
	return loaded, err
}

// Record inserts one ledger row per entry using tx, so the rows commit with the copies.
func (l *Ledger) Record(ctx context.Context, tx rdbms.Transacter, entries []LedgerEntry) error {
	q := getSqlLedgerInsert(l.table)
	for _, e := range entries {
		if e.RecordedAt.IsZero() {
			e.RecordedAt = l.now().UTC()
		}
		if _, err := tx.ExecContext(ctx, q, e.FileKey, e.TargetTable, e.LoadedAt, e.RecordedAt); err != nil {
			return fmt.Errorf("error recording %v in ledger: %w", e.FileKey, err)
		}
	}
	return nil
}
