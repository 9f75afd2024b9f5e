// Package core provides the business logic for validated dataset ingestion.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"strings"
	"time"
)

// LogicalType is the declared type of a schema column.
type LogicalType string

const (
	TypeInteger LogicalType = "integer"
	TypeVarchar LogicalType = "varchar"
	TypeDate    LogicalType = "date"
	// Any other value is stored as unbounded text.
	TypeText LogicalType = "text"
)

// ColumnDefinition declares one column of a project's schema.
type ColumnDefinition struct {
	Name          string      `json:"name"`
	Type          LogicalType `json:"type"`
	Required      bool        `json:"required"`
	MaxLength     *int        `json:"max_length,omitempty"`
	AllowedValues []string    `json:"allowed_values,omitempty"`
	PrimaryKey    bool        `json:"primary_key"`
	Unique        bool        `json:"unique"`
}

// RuleDefinition is a globally shared, named validation rule.
type RuleDefinition struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RuleBinding attaches a rule to a column of a project.
type RuleBinding struct {
	ID      int64  `json:"id,omitempty"`
	Column  string `json:"column"`
	Rule    string `json:"rule"`
	Params  Params `json:"params,omitempty"`
	Message string `json:"message"`
}

// DefaultBindingMessage is used when a binding is declared without a message.
const DefaultBindingMessage = "Error en la validación."

// Project owns a schema, a set of rule bindings and one storage table.
type Project struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	TableName  string             `json:"table_name"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	ModifiedBy string             `json:"modified_by"`
	Columns    []ColumnDefinition `json:"columns"`
	Bindings   []RuleBinding      `json:"bindings"`
}

// ColumnNames returns the declared column names in schema order.
func (p Project) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a declared column by name (case-insensitive).
func (p Project) Column(name string) (ColumnDefinition, bool) {
	name = normalizeName(name)
	for _, c := range p.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// ProjectDefinition is the caller-supplied shape of a project for create and update.
type ProjectDefinition struct {
	Name       string             `json:"name"`
	TableName  string             `json:"table_name"`
	ModifiedBy string             `json:"modified_by"`
	Columns    []ColumnDefinition `json:"columns"`
	Bindings   []RuleBinding      `json:"bindings"`
}

// ProjectDetail is a project together with the rows currently stored for it.
type ProjectDetail struct {
	Project
	Table *TableData `json:"table,omitempty"`
}

// TableData is a snapshot of a provisioned table's contents.
type TableData struct {
	Name    string           `json:"name"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// RowError describes one failed rule evaluation.
type RowError struct {
	Row     int    `json:"row"` // 1-based
	Column  string `json:"column"`
	Value   Cell   `json:"value"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"` // the rule's own explanation
}

// IngestMode selects how the storage table is provisioned.
type IngestMode string

const (
	ModeCreateNew     IngestMode = "create-new"
	ModeReuseExisting IngestMode = "reuse-existing"
)

// IngestPhase is a state of the ingestion state machine.
type IngestPhase string

const (
	PhaseReceivingFile     IngestPhase = "receiving_file"
	PhaseMatchingSchema    IngestPhase = "matching_schema"
	PhaseValidatingRows    IngestPhase = "validating_rows"
	PhaseProvisioningTable IngestPhase = "provisioning_table"
	PhaseInserting         IngestPhase = "inserting"
	PhaseCommitted         IngestPhase = "committed"
	PhaseAborted           IngestPhase = "aborted"
)

// IngestResult is the outcome of a single ingestion attempt.
type IngestResult struct {
	IngestionID  string        `json:"ingestion_id"`
	ProjectID    int64         `json:"project_id"`
	TableName    string        `json:"table_name,omitempty"`
	FileName     string        `json:"file_name"`
	Mode         IngestMode    `json:"mode"`
	Phase        IngestPhase   `json:"phase"`
	TotalRows    int           `json:"total_rows"`
	RowsInserted int64         `json:"rows_inserted"`
	RowsPurged   int64         `json:"rows_purged,omitempty"`
	Duration     time.Duration `json:"duration"`
	Diagnostic   *Diagnostic   `json:"diagnostic,omitempty"`
}

// Committed reports whether the attempt reached the terminal success state.
func (r *IngestResult) Committed() bool {
	return r != nil && r.Phase == PhaseCommitted
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
