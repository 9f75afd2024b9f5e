package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/validata/internal/core"
)

// Tx is the core.Tx of one ingestion attempt.
type Tx struct {
	tx pgx.Tx
}

var _ core.Tx = (*Tx)(nil)

// LockProject takes the project's advisory lock until the transaction ends.
func (t *Tx) LockProject(ctx context.Context, id int64) error {
	return lockProjects(ctx, t.tx, id)
}

func (t *Tx) LoadProject(ctx context.Context, id int64) (core.Project, error) {
	return loadProject(ctx, t.tx, id)
}

// DeleteProject removes the project metadata. Its data table is kept.
func (t *Tx) DeleteProject(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
	}
	return nil
}

func (t *Tx) TableExists(ctx context.Context, ref core.TableRef) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, ref.Namespace, ref.Name,
	).Scan(&exists)
	return exists, err
}

func (t *Tx) CreateTable(ctx context.Context, def core.TableDef) error {
	_, err := t.tx.Exec(ctx, def.CreateStatement())
	return err
}

// PurgeTable deletes every row of ref and returns how many were removed.
func (t *Tx) PurgeTable(ctx context.Context, ref core.TableRef) (int64, error) {
	tag, err := t.tx.Exec(ctx, "DELETE FROM "+ref.Sanitize())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// InsertRows queues one parameterized INSERT per row and sends them as a
// single batch. Values follow def.Columns order.
func (t *Tx) InsertRows(ctx context.Context, def core.TableDef, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query := insertStatement(def)
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, row...)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	var total int64
	for i := range rows {
		tag, err := results.Exec()
		if err != nil {
			return total, fmt.Errorf("insert row %d of batch: %w", i+1, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func insertStatement(def core.TableDef) string {
	cols := make([]string, len(def.Columns))
	params := make([]string, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = pgx.Identifier{c.Name}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		def.Sanitize(), strings.Join(cols, ", "), strings.Join(params, ", "))
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *Tx) ReleaseSavepoint(ctx context.Context, name string) error {
	_, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+pgx.Identifier{name}.Sanitize())
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op once the transaction has been committed.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
