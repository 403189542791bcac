package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// scanFn fills the destinations of one row.
type scanFn = func(dest ...any) error

// mockDB is a testify mock of DB. Expectations match on (ctx, sql, args),
// where args is the variadic slice as passed.
type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	ret := m.Called(ctx, sql, arguments)
	return ret.Get(0).(pgconn.CommandTag), ret.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	ret := m.Called(ctx, sql, arguments)
	rows, _ := ret.Get(0).(pgx.Rows)
	return rows, ret.Error(1)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	return m.Called(ctx, sql, arguments).Get(0).(pgx.Row)
}

type mockRow struct {
	scanFunc scanFn
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

var errScanWithoutRow = errors.New("scan called without a current row")

// mockRows yields one row per scan function, following the pgx cursor
// contract: Next positions on a row, Scan reads it, and exhaustion closes.
type mockRows struct {
	rows   []scanFn
	cur    int
	closed bool
	err    error
}

func newMockRows(rows ...scanFn) *mockRows {
	return &mockRows{rows: rows, cur: -1}
}

func newEmptyMockRows() *mockRows { return newMockRows() }

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.cur++
	if r.cur >= len(r.rows) {
		r.Close()
		return false
	}
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	if r.closed || r.cur < 0 || r.cur >= len(r.rows) {
		return errScanWithoutRow
	}
	return r.rows[r.cur](dest...)
}

func (r *mockRows) Close()     { r.closed = true }
func (r *mockRows) Err() error { return r.err }

func (r *mockRows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag("SELECT")
}

func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
