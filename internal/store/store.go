// Package store implements core.Store on PostgreSQL with pgx.
//
// Project metadata (projects, columns, bindings, rule catalog, ingestion
// history) lives in the tables created by the embedded migrations. Project
// data tables live in a separate namespace and are addressed only through
// quoted identifiers; every value is bound as a parameter.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/validata/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PostgreSQL error codes handled explicitly.
const (
	codeUniqueViolation = "23505"
	codeUndefinedTable  = "42P01"
)

// Store is a core.Store backed by a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	namespace string
}

var _ core.Store = (*Store)(nil)

// New returns a Store over pool. namespace is the schema holding project
// tables; DeleteProjects drops tables there.
func New(pool *pgxpool.Pool, namespace string) *Store {
	if namespace == "" {
		namespace = core.DefaultNamespace
	}
	return &Store{pool: pool, namespace: namespace}
}

// Begin opens the transaction that scopes one ingestion attempt.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockProjects takes the per-project advisory locks used by ingestion, in id
// order so concurrent callers cannot deadlock.
func lockProjects(ctx context.Context, db DBTX, ids ...int64) error {
	for _, id := range sortedIDs(ids) {
		if _, err := db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", id); err != nil {
			return fmt.Errorf("lock project %d: %w", id, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}
