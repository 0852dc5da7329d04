package rdbms

import (
	"context"
	"database/sql"
	"errors"
)

// Connection wraps a Go native sql.DB.
type Connection struct {
	DbSql  *sql.DB
	DbType string
}

func (c *Connection) Begin(ctx context.Context) (Transacter, error) {
	if c.DbSql == nil {
		return nil, errors.New("connection was not configured correctly: DbSql is missing")
	}
	tx, err := c.DbSql.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{txSql: tx}, nil
}

func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.DbSql.ExecContext(ctx, query, args...)
}

func (c *Connection) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	r, err := c.DbSql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Connection) Close() error {
	return c.DbSql.Close()
}

func (c *Connection) GetType() string {
	return c.DbType
}

// Tx wraps a Go native sql.Tx.
type Tx struct {
	txSql *sql.Tx
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.txSql.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	r, err := t.txSql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (t *Tx) Commit() error {
	return t.txSql.Commit()
}

func (t *Tx) Rollback() error {
	return t.txSql.Rollback()
}
