package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/validata/internal/logging"
)

// record appends the attempt to the ingestion history. History is written
// outside the ingestion transaction so it survives both rollback and project
// deletion. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, p Project, res *IngestResult, d *Diagnostic, start time.Time) {
	rec := IngestionRecord{
		ID:           res.IngestionID,
		ProjectID:    p.ID,
		ProjectName:  p.Name,
		TableName:    p.TableName,
		FileName:     res.FileName,
		Mode:         res.Mode,
		Outcome:      OutcomeCommitted,
		Phase:        PhaseCommitted,
		TotalRows:    res.TotalRows,
		RowsInserted: res.RowsInserted,
		Actor:        ActorFromContext(ctx),
		IPAddress:    IPAddressFromContext(ctx),
		UserAgent:    UserAgentFromContext(ctx),
		Duration:     s.now().Sub(start),
		CreatedAt:    start.UTC(),
	}
	if d != nil {
		rec.Outcome = OutcomeAborted
		rec.Kind = d.Kind
		rec.Phase = d.Phase
		rec.RowsInserted = 0
		rec.ErrorCount = len(d.Errors)
		rec.Message = truncate(d.Message, 1000)
		rec.ProjectDeleted = d.ProjectDeleted
	}

	cctx, cancel := cleanupContext(ctx)
	defer cancel()
	if err := s.store.RecordIngestion(cctx, rec); err != nil {
		logging.FromContext(ctx).Warn("failed to record ingestion", "error", err)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
