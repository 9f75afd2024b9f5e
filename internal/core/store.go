package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProjectNotFound is returned when a project id does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateProject is returned when a project name is already taken.
	ErrDuplicateProject = errors.New("project name already exists")

	// ErrInvalidProject is returned when a project definition fails validation.
	ErrInvalidProject = errors.New("invalid project definition")
)

// Store is the persistence boundary of the core: project metadata, the rule
// catalog, provisioned tables and ingestion history.
type Store interface {
	// Begin opens the transaction that scopes one ingestion attempt.
	Begin(ctx context.Context) (Tx, error)

	CreateProject(ctx context.Context, def ProjectDefinition) (int64, error)
	UpdateProject(ctx context.Context, id int64, def ProjectDefinition) error
	GetProject(ctx context.Context, id int64) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	// DeleteProjects removes all ids or none; ErrProjectNotFound if any is unknown.
	DeleteProjects(ctx context.Context, ids []int64) error

	ListRuleDefinitions(ctx context.Context) ([]RuleDefinition, error)
	UpsertRuleDefinitions(ctx context.Context, defs []RuleDefinition) error

	// ReadTable returns the rows of a provisioned table, nil if it does not exist.
	ReadTable(ctx context.Context, ref TableRef, limit int) (*TableData, error)

	RecordIngestion(ctx context.Context, rec IngestionRecord) error
	ListIngestions(ctx context.Context, projectID int64, limit int) ([]IngestionRecord, error)
	// PruneIngestions deletes history recorded before cutoff and returns the count.
	PruneIngestions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Tx is an explicitly passed transaction handle. Every method runs inside the
// same storage transaction; Commit or Rollback ends it.
type Tx interface {
	// LockProject serializes ingestions of one project until the transaction ends.
	LockProject(ctx context.Context, id int64) error
	LoadProject(ctx context.Context, id int64) (Project, error)
	DeleteProject(ctx context.Context, id int64) error

	TableExists(ctx context.Context, ref TableRef) (bool, error)
	CreateTable(ctx context.Context, def TableDef) error
	PurgeTable(ctx context.Context, ref TableRef) (int64, error)
	InsertRows(ctx context.Context, def TableDef, rows [][]any) (int64, error)

	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// IngestionOutcome is the terminal state recorded in history.
type IngestionOutcome string

const (
	OutcomeCommitted IngestionOutcome = "committed"
	OutcomeAborted   IngestionOutcome = "aborted"
)

// IngestionRecord is one row of the ingestion history.
type IngestionRecord struct {
	ID             string           `json:"id"`
	ProjectID      int64            `json:"project_id"`
	ProjectName    string           `json:"project_name"`
	TableName      string           `json:"table_name"`
	FileName       string           `json:"file_name"`
	Mode           IngestMode       `json:"mode"`
	Outcome        IngestionOutcome `json:"outcome"`
	Kind           DiagnosticKind   `json:"kind,omitempty"`
	Phase          IngestPhase      `json:"phase"`
	TotalRows      int              `json:"total_rows"`
	RowsInserted   int64            `json:"rows_inserted"`
	ErrorCount     int              `json:"error_count"`
	Message        string           `json:"message,omitempty"`
	ProjectDeleted bool             `json:"project_deleted"`
	Actor          string           `json:"actor,omitempty"`
	IPAddress      string           `json:"ip_address,omitempty"`
	UserAgent      string           `json:"user_agent,omitempty"`
	Duration       time.Duration    `json:"duration"`
	CreatedAt      time.Time        `json:"created_at"`
}
