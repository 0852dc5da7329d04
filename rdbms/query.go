package rdbms

import (
	"context"
	"fmt"

	"github.com/relloyd/trackpipe/logger"
)

// Queryer is satisfied by both Connector and Transacter.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
}

// RowHandler is called once per row; it should Scan the current row.
type RowHandler func(rows Rows) error

// SqlQuery executes sqltext with args and calls handleRow for every row returned.
// Iteration stops early if ctx is cancelled.
func SqlQuery(ctx context.Context, log logger.Logger, db Queryer, sqltext string, args []interface{}, handleRow RowHandler) error {
	log.Debug("executing query: ", sqltext, " args: ", args)
	rows, err := db.QueryContext(ctx, sqltext, args...)
	if err != nil {
		return fmt.Errorf("error during database query using SQL: '%v': %w", sqltext, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil { // quit if asked to...
			return err
		}
		if err := handleRow(rows); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error fetching rows using SQL: '%v': %w", sqltext, err)
	}
	log.Debug("fetched ", count, " rows")
	return nil
}
