package store

import (
	"context"
	"database/sql"
)

// stubDB serves as DB, Tx or a bare Execer. Unset hooks succeed without touching dest.
// Every statement is appended to queries when it is non-nil.
type stubDB struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
	queries  *[]string
}

func (s stubDB) record(query string) {
	if s.queries != nil {
		*s.queries = append(*s.queries, query)
	}
}

func (s stubDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	s.record(query)
	if s.getFn == nil {
		return nil
	}
	return s.getFn(ctx, dest, query, args...)
}

func (s stubDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	s.record(query)
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

func (s stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.record(query)
	if s.execFn == nil {
		return sqlResult(1), nil
	}
	return s.execFn(ctx, query, args...)
}

type sqlResult int64

func (r sqlResult) LastInsertId() (int64, error) {
	return 0, nil
}

func (r sqlResult) RowsAffected() (int64, error) {
	return int64(r), nil
}
