package rdbms

import (
	"context"
	"database/sql"
)

// Connector abstracts the database/sql functionality used by the watermark store and the loader.
type Connector interface {
	Begin(ctx context.Context) (Transacter, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Close() error
	GetType() string
}

type Transacter interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	Commit() error
	Rollback() error
}

// Rows is the subset of *sql.Rows that callers iterate over.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}
