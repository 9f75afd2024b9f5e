package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/validata/internal/core"
)

// RecordIngestion appends one history row. A missing id is generated.
func (s *Store) RecordIngestion(ctx context.Context, rec core.IngestionRecord) error {
	id := toPgUUID(rec.ID)
	if !id.Valid {
		id = pgtype.UUID{Bytes: uuid.New(), Valid: true}
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_log (
			id, project_id, project_name, table_name, file_name, mode, outcome,
			kind, phase, total_rows, rows_inserted, error_count, message,
			project_deleted, actor, ip_address, user_agent, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		id, rec.ProjectID, rec.ProjectName, rec.TableName, rec.FileName,
		string(rec.Mode), string(rec.Outcome), string(rec.Kind), string(rec.Phase),
		rec.TotalRows, rec.RowsInserted, rec.ErrorCount, rec.Message,
		rec.ProjectDeleted, rec.Actor, rec.IPAddress, rec.UserAgent,
		rec.Duration.Milliseconds(), created,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion log: %w", err)
	}
	return nil
}

// ListIngestions returns the newest history rows of a project first.
func (s *Store) ListIngestions(ctx context.Context, projectID int64, limit int) ([]core.IngestionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, project_name, table_name, file_name, mode, outcome,
			kind, phase, total_rows, rows_inserted, error_count, message,
			project_deleted, actor, ip_address, user_agent, duration_ms, created_at
		FROM ingestion_log
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ingestion log: %w", err)
	}
	defer rows.Close()

	out := []core.IngestionRecord{}
	for rows.Next() {
		var (
			rec                        core.IngestionRecord
			id                         pgtype.UUID
			mode, outcome, kind, phase string
			durationMs                 int64
		)
		if err := rows.Scan(&id, &rec.ProjectID, &rec.ProjectName, &rec.TableName, &rec.FileName,
			&mode, &outcome, &kind, &phase, &rec.TotalRows, &rec.RowsInserted, &rec.ErrorCount,
			&rec.Message, &rec.ProjectDeleted, &rec.Actor, &rec.IPAddress, &rec.UserAgent,
			&durationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.ID = uuidToString(id)
		rec.Mode = core.IngestMode(mode)
		rec.Outcome = core.IngestionOutcome(outcome)
		rec.Kind = core.DiagnosticKind(kind)
		rec.Phase = core.IngestPhase(phase)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneIngestions deletes history recorded before cutoff.
func (s *Store) PruneIngestions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM ingestion_log WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune ingestion log: %w", err)
	}
	return tag.RowsAffected(), nil
}
