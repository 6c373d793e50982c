package services

import (
	"context"
	"database/sql"
	"fmt"

	"licensegate/database"
)

// Querier is the subset of *sql.DB / *sql.Tx the services use. Queries are
// written with '?' placeholders and rebound for the active dialect.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLExecutor keeps the services independent of the concrete datastore.
type SQLExecutor interface {
	Querier
	Dialect() database.Dialect
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(q Querier) error) error
}

type sqlDBExecutor struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLExecutor wraps an opened store.
func NewSQLExecutor(store *database.Store) SQLExecutor {
	return &sqlDBExecutor{db: store.DB, dialect: store.Dialect}
}

func (s *sqlDBExecutor) Dialect() database.Dialect {
	return s.dialect
}

func (s *sqlDBExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, database.Rebind(s.dialect, query), args...)
}

func (s *sqlDBExecutor) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, database.Rebind(s.dialect, query), args...)
}

func (s *sqlDBExecutor) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, database.Rebind(s.dialect, query), args...)
}

func (s *sqlDBExecutor) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&txQuerier{tx: tx, dialect: s.dialect}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type txQuerier struct {
	tx      *sql.Tx
	dialect database.Dialect
}

func (t *txQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, database.Rebind(t.dialect, query), args...)
}

func (t *txQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, database.Rebind(t.dialect, query), args...)
}

func (t *txQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, database.Rebind(t.dialect, query), args...)
}
