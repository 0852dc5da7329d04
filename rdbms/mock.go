package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/relloyd/trackpipe/logger"
)

// MockConnection is a Connector that records every statement and answers queries from QueryFunc.
// It is used by tests in this and other packages.
type MockConnection struct {
	log        logger.Logger
	dbType     string
	resultChan chan string
	mu         sync.Mutex
	// QueryFunc answers QueryContext; nil means every query returns no rows.
	QueryFunc func(query string, args []interface{}) (Rows, error)
	// ExecFunc answers ExecContext; nil means every statement succeeds with 0 rows affected.
	ExecFunc   func(query string, args []interface{}) (sql.Result, error)
	Statements []MockStatement
	Commits    int
	Rollbacks  int
	Closed     bool
}

type MockStatement struct {
	SQL  string
	Args []interface{}
	InTx bool
}

// NewMockConnectionWithMockTx returns a mock Connector and a channel that receives alternating
// records of SQL text and its args (as a string) for every statement executed.
func NewMockConnectionWithMockTx(log logger.Logger, dbType string) (*MockConnection, chan string) {
	c := make(chan string, 10000)
	return &MockConnection{log: log, dbType: dbType, resultChan: c}, c
}

func (m *MockConnection) record(query string, args []interface{}, inTx bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debug("mock ", m.dbType, " statement: ", query)
	m.Statements = append(m.Statements, MockStatement{SQL: query, Args: args, InTx: inTx})
	m.resultChan <- query
	m.resultChan <- fmt.Sprint(args)
}

func (m *MockConnection) exec(query string, args []interface{}, inTx bool) (sql.Result, error) {
	m.record(query, args, inTx)
	if m.ExecFunc != nil {
		return m.ExecFunc(query, args)
	}
	return MockResult(0), nil
}

func (m *MockConnection) query(query string, args []interface{}, inTx bool) (Rows, error) {
	m.record(query, args, inTx)
	if m.QueryFunc != nil {
		return m.QueryFunc(query, args)
	}
	return NewMockRows(), nil
}

func (m *MockConnection) Begin(ctx context.Context) (Transacter, error) {
	return &mockTx{conn: m}, nil
}

func (m *MockConnection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return m.exec(query, args, false)
}

func (m *MockConnection) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return m.query(query, args, false)
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockConnection) GetType() string {
	return m.dbType
}

// SQL returns the text of every statement recorded so far.
func (m *MockConnection) SQL() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	retval := make([]string, len(m.Statements))
	for i, s := range m.Statements {
		retval[i] = s.SQL
	}
	return retval
}

type mockTx struct {
	conn *MockConnection
	done bool
}

func (t *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.conn.exec(query, args, true)
}

func (t *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return t.conn.query(query, args, true)
}

func (t *mockTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.conn.mu.Lock()
	t.conn.Commits++
	t.conn.mu.Unlock()
	return nil
}

func (t *mockTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.conn.mu.Lock()
	t.conn.Rollbacks++
	t.conn.mu.Unlock()
	return nil
}

// MockResult reports a fixed number of rows affected.
type MockResult int64

func (r MockResult) LastInsertId() (int64, error) { return 0, nil }
func (r MockResult) RowsAffected() (int64, error) { return int64(r), nil }

// MockRows iterates over canned rows. Values are assigned to sql.Scanner destinations via Scan
// and to other pointers by reflection.
type MockRows struct {
	data [][]interface{}
	idx  int
	err  error
}

func NewMockRows(rows ...[]interface{}) *MockRows {
	return &MockRows{data: rows, idx: -1}
}

// NewMockRowsWithError returns rows that fail with err once iteration ends.
func NewMockRowsWithError(err error, rows ...[]interface{}) *MockRows {
	return &MockRows{data: rows, idx: -1, err: err}
}

func (r *MockRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *MockRows) Scan(dest ...interface{}) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %v destination arguments in Scan, not %v", len(row), len(dest))
	}
	for i, d := range dest {
		if s, ok := d.(sql.Scanner); ok {
			if err := s.Scan(row[i]); err != nil {
				return err
			}
			continue
		}
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Ptr || dv.IsNil() {
			return fmt.Errorf("destination %v is not a pointer", i)
		}
		if row[i] == nil {
			dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
			continue
		}
		sv := reflect.ValueOf(row[i])
		if !sv.Type().AssignableTo(dv.Elem().Type()) {
			return fmt.Errorf("cannot scan %T into %T", row[i], d)
		}
		dv.Elem().Set(sv)
	}
	return nil
}

func (r *MockRows) Err() error   { return r.err }
func (r *MockRows) Close() error { return nil }
