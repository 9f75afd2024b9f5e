package core

// scheduler.go provides background maintenance for the ingestion history.
//
// Every ingestion attempt appends a history row and rows are never updated,
// so the table only grows. The pruner deletes rows older than the retention
// window. It logs progress and errors but never stops the application when a
// prune fails.

import (
	"context"
	"time"

	"github.com/JonMunkholm/validata/internal/logging"
)

// RetentionConfig holds configuration for the history pruner.
type RetentionConfig struct {
	RetentionDays int           // Days of history to keep; 0 disables pruning
	CheckInterval time.Duration // How often to run (default: 24h)
}

// StartHistoryPruner periodically deletes ingestion history older than the
// retention window. It runs immediately, then every CheckInterval, until ctx
// is cancelled. Call it in its own goroutine.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg RetentionConfig) {
	log := logging.FromContext(ctx)
	if cfg.RetentionDays <= 0 {
		log.Info("history pruner disabled")
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	log.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval,
	)

	s.pruneHistory(ctx, cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.pruneHistory(ctx, cfg.RetentionDays)
		}
	}
}

// pruneHistory runs one prune cycle and returns the number of deleted rows.
func (s *Service) pruneHistory(ctx context.Context, retentionDays int) int64 {
	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	n, err := s.store.PruneIngestions(ctx, cutoff)
	if err != nil {
		logging.FromContext(ctx).Error("history prune failed", "error", err)
		return 0
	}
	logging.FromContext(ctx).Info("pruned ingestion history",
		"rows_deleted", n,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return n
}
