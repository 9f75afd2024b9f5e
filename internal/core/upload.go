package core

// upload.go implements the ingestion state machine:
//
//	ReceivingFile → MatchingSchema → ValidatingRows → ProvisioningTable → Inserting → Committed
//
// with Aborted reachable from every non-terminal state. Everything after the
// project is loaded runs in one transaction holding an advisory lock on the
// project id. A savepoint is taken right after the lock; an abort rolls back
// to it, applies the failure policy (possibly deleting the project) and then
// commits, so a failed attempt never leaves partial rows behind.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/validata/internal/logging"
)

const (
	ingestSavepoint = "ingest"

	// cleanupTimeout bounds rollback and project deletion after an abort.
	cleanupTimeout = 10 * time.Second
)

// IngestRequest is one uploaded file destined for a project.
type IngestRequest struct {
	ProjectID int64
	FileName  string
	Data      io.Reader // nil when no file part was sent
	Mode      IngestMode
}

// Ingest validates an uploaded file against a project and commits it to the
// project's table, or aborts with a *Diagnostic.
//
// On abort the returned result carries the same diagnostic and Phase is
// PhaseAborted. Errors that are not diagnostics (unknown project, no free
// ingestion slot, cancelled context before any work) come without a result.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := s.now()
	res := &IngestResult{
		IngestionID: uuid.NewString(),
		ProjectID:   req.ProjectID,
		FileName:    req.FileName,
		Mode:        req.Mode,
		Phase:       PhaseReceivingFile,
	}
	log := logging.WithFields(ctx,
		"project_id", req.ProjectID,
		"ingestion_id", res.IngestionID,
		"mode", req.Mode,
	)
	ctx = logging.NewContext(ctx, log)

	if d := s.checkRequest(req); d != nil {
		log.Info("upload rejected", "reason", d.Message)
		return s.finish(res, d, start), d
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	data, err := readLimited(req.Data, s.maxFileSize)
	if err != nil {
		d := requestError("%v", err)
		log.Info("upload rejected", "reason", d.Message)
		return s.finish(res, d, start), d
	}

	log.Info("ingestion started", "file", req.FileName, "bytes", len(data))

	tx, err := s.store.Begin(ctx)
	if err != nil {
		d := storageError(PhaseReceivingFile, fmt.Errorf("begin: %w", err))
		return s.finish(res, d, start), d
	}
	// Rollback after Commit is a no-op.
	defer func() {
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		_ = tx.Rollback(cctx)
	}()

	if err := tx.LockProject(ctx, req.ProjectID); err != nil {
		d := storageError(PhaseReceivingFile, fmt.Errorf("lock project: %w", err))
		return s.finish(res, d, start), d
	}
	project, err := tx.LoadProject(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, fmt.Errorf("ingest project %d: %w", req.ProjectID, err)
		}
		d := storageError(PhaseReceivingFile, fmt.Errorf("load project: %w", err))
		return s.finish(res, d, start), d
	}
	res.TableName = project.TableName

	if err := tx.Savepoint(ctx, ingestSavepoint); err != nil {
		d := storageError(PhaseReceivingFile, fmt.Errorf("savepoint: %w", err))
		return s.finish(res, d, start), d
	}

	if d := s.run(ctx, tx, project, req.Mode, data, res); d != nil {
		if err := s.abort(ctx, tx, project, req.Mode, d); err != nil {
			log.Error("abort cleanup failed", "kind", d.Kind, "error", err)
			d.Message = fmt.Sprintf("%s (cleanup failed: %v)", d.Message, err)
		}
		log.Warn("ingestion aborted",
			"kind", d.Kind,
			"phase", d.Phase,
			"row_errors", len(d.Errors),
			"project_deleted", d.ProjectDeleted,
		)
		s.record(ctx, project, res, d, start)
		return s.finish(res, d, start), d
	}

	if err := tx.ReleaseSavepoint(ctx, ingestSavepoint); err != nil {
		d := storageError(PhaseInserting, fmt.Errorf("release savepoint: %w", err))
		s.record(ctx, project, res, d, start)
		return s.finish(res, d, start), d
	}
	if err := tx.Commit(ctx); err != nil {
		d := storageError(PhaseInserting, fmt.Errorf("commit: %w", err))
		s.record(ctx, project, res, d, start)
		return s.finish(res, d, start), d
	}

	res.Phase = PhaseCommitted
	res.Duration = s.now().Sub(start)
	log.Info("ingestion committed",
		"table", project.TableName,
		"rows", res.RowsInserted,
		"purged", res.RowsPurged,
		"duration", res.Duration,
	)
	s.record(ctx, project, res, nil, start)
	return res, nil
}

// run walks the state machine from MatchingSchema to Inserting. A panic in
// any step becomes a storage diagnostic.
func (s *Service) run(ctx context.Context, tx Tx, p Project, mode IngestMode, data []byte, res *IngestResult) (d *Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("ingestion panic", "phase", res.Phase, "panic", r)
			d = storageError(res.Phase, fmt.Errorf("internal error: %v", r))
		}
	}()

	ds, err := ParseDataset(res.FileName, data)
	if err != nil {
		return parseError(err)
	}
	res.TotalRows = ds.Len()
	if s.maxRows > 0 && ds.Len() > s.maxRows {
		return requestError("too many rows: %d (limit %d)", ds.Len(), s.maxRows)
	}

	res.Phase = PhaseMatchingSchema
	if m := MatchSchema(p.ColumnNames(), ds.Columns); !m.Matched {
		return schemaMismatch(m)
	}

	res.Phase = PhaseValidatingRows
	validator, err := NewRowValidator(s.rules, p.Bindings, ds.Columns)
	if err != nil {
		if diag, ok := AsDiagnostic(err); ok {
			return diag
		}
		return storageError(res.Phase, err)
	}

	vctx := ctx
	if s.validationTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, s.validationTimeout)
		defer cancel()
	}
	rowErrs, err := validator.Validate(vctx, ds)
	if err != nil {
		d := requestError("validation did not finish: %v", err)
		d.Phase = PhaseValidatingRows
		return d
	}
	if len(rowErrs) > 0 {
		return rowErrors(rowErrs, countRows(rowErrs))
	}

	res.Phase = PhaseProvisioningTable
	def, purged, err := s.provisioner.Provision(ctx, tx, p, mode)
	if err != nil {
		if diag, ok := AsDiagnostic(err); ok {
			return diag
		}
		return storageError(res.Phase, err)
	}
	res.RowsPurged = purged

	res.Phase = PhaseInserting
	n, err := s.insert(ctx, tx, def, ds)
	if err != nil {
		return storageError(res.Phase, err)
	}
	res.RowsInserted = n
	return nil
}

// insert converts every row to storage values and sends them in batches.
func (s *Service) insert(ctx context.Context, tx Tx, def TableDef, ds *Dataset) (int64, error) {
	var total int64
	batch := make([][]any, 0, min(s.batchSize, ds.Len()))

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := tx.InsertRows(ctx, def, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for i, row := range ds.Rows {
		values := make([]any, len(def.Columns))
		for j, col := range def.Columns {
			v, err := StorageValue(col.Logical, row[col.Name])
			if err != nil {
				return total, fmt.Errorf("row %d, column %q: %w", i+1, col.Name, err)
			}
			values[j] = v
		}
		batch = append(batch, values)

		if len(batch) >= s.batchSize {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// abort rolls back to the savepoint, applies the failure policy and commits
// what is left (nothing, or the project deletion).
func (s *Service) abort(ctx context.Context, tx Tx, p Project, mode IngestMode, d *Diagnostic) error {
	cctx, cancel := cleanupContext(ctx)
	defer cancel()

	if err := tx.RollbackToSavepoint(cctx, ingestSavepoint); err != nil {
		return fmt.Errorf("rollback to savepoint: %w", err)
	}
	if s.policy.DeletesProject(d.Kind, mode) {
		if err := tx.DeleteProject(cctx, p.ID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
	}
	if err := tx.Commit(cctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	d.ProjectDeleted = s.policy.DeletesProject(d.Kind, mode)
	return nil
}

func (s *Service) checkRequest(req IngestRequest) *Diagnostic {
	switch {
	case req.Data == nil:
		return requestError("no file provided")
	case req.FileName == "":
		return requestError("no file provided: empty filename")
	case !AllowedFile(req.FileName, s.allowedExt):
		return requestError("extension not allowed: %q", Extension(req.FileName))
	case req.Mode != ModeCreateNew && req.Mode != ModeReuseExisting:
		return requestError("unknown ingestion mode %q", req.Mode)
	}
	return nil
}

func (s *Service) finish(res *IngestResult, d *Diagnostic, start time.Time) *IngestResult {
	res.Phase = PhaseAborted
	res.Diagnostic = d
	res.Duration = s.now().Sub(start)
	return res
}

// readLimited reads r fully, failing once more than limit bytes arrive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", limit)
	}
	return data, nil
}

// cleanupContext keeps request values but survives cancellation of ctx.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
