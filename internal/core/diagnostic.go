package core

import (
	"errors"
	"fmt"
	"strings"
)

// DiagnosticKind classifies why an ingestion aborted.
type DiagnosticKind string

const (
	KindRequest           DiagnosticKind = "request"
	KindParse             DiagnosticKind = "parse"
	KindSchemaMismatch    DiagnosticKind = "schema_mismatch"
	KindRuleConfiguration DiagnosticKind = "rule_configuration"
	KindRowErrors         DiagnosticKind = "row_errors"
	KindTableExists       DiagnosticKind = "table_exists"
	KindStorage           DiagnosticKind = "storage"
)

// Diagnostic is the structured explanation of an aborted ingestion.
type Diagnostic struct {
	Kind            DiagnosticKind `json:"kind"`
	Phase           IngestPhase    `json:"phase"`
	Message         string         `json:"message"`
	ExpectedColumns []string       `json:"expected_columns,omitempty"`
	ActualColumns   []string       `json:"actual_columns,omitempty"`
	Errors          []RowError     `json:"errors,omitempty"`
	Rule            string         `json:"rule,omitempty"`
	Column          string         `json:"column,omitempty"`
	MissingParams   []string       `json:"missing_params,omitempty"`
	InvalidParams   []string       `json:"invalid_params,omitempty"`
	ProjectDeleted  bool           `json:"project_deleted"`

	cause error
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.cause }

// AsDiagnostic extracts a Diagnostic from err's chain.
func AsDiagnostic(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsClientError reports whether the abort was caused by the caller's file,
// schema or rule configuration rather than by storage.
func (d *Diagnostic) IsClientError() bool {
	return d.Kind != KindStorage
}

func requestError(format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:    KindRequest,
		Phase:   PhaseReceivingFile,
		Message: fmt.Sprintf(format, args...),
	}
}

func parseError(err error) *Diagnostic {
	return &Diagnostic{
		Kind:    KindParse,
		Phase:   PhaseReceivingFile,
		Message: err.Error(),
		cause:   err,
	}
}

func schemaMismatch(m SchemaMatch) *Diagnostic {
	var parts []string
	if len(m.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(m.Missing, ", "))
	}
	if len(m.Extra) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(m.Extra, ", "))
	}
	return &Diagnostic{
		Kind:            KindSchemaMismatch,
		Phase:           PhaseMatchingSchema,
		Message:         "uploaded columns do not match the project schema (" + strings.Join(parts, "; ") + ")",
		ExpectedColumns: m.Expected,
		ActualColumns:   m.Actual,
	}
}

func ruleConfigError(b RuleBinding, missing, invalid []string, cause error) *Diagnostic {
	d := &Diagnostic{
		Kind:          KindRuleConfiguration,
		Phase:         PhaseValidatingRows,
		Rule:          b.Rule,
		Column:        b.Column,
		MissingParams: missing,
		InvalidParams: invalid,
		cause:         cause,
	}
	switch {
	case cause != nil:
		d.Message = fmt.Sprintf("rule %q on column %q: %v", b.Rule, b.Column, cause)
	case len(missing) > 0:
		d.Message = fmt.Sprintf("rule %q on column %q is missing required params: %s",
			b.Rule, b.Column, strings.Join(missing, ", "))
	default:
		d.Message = fmt.Sprintf("rule %q on column %q has params of the wrong type: %s",
			b.Rule, b.Column, strings.Join(invalid, ", "))
	}
	return d
}

func rowErrors(errs []RowError, rows int) *Diagnostic {
	return &Diagnostic{
		Kind:    KindRowErrors,
		Phase:   PhaseValidatingRows,
		Message: fmt.Sprintf("%d validation errors in %d rows", len(errs), rows),
		Errors:  errs,
	}
}

func tableExists(table string) *Diagnostic {
	return &Diagnostic{
		Kind:    KindTableExists,
		Phase:   PhaseProvisioningTable,
		Message: fmt.Sprintf("table %q already exists", table),
	}
}

func storageError(phase IngestPhase, err error) *Diagnostic {
	return &Diagnostic{
		Kind:    KindStorage,
		Phase:   phase,
		Message: "storage error: " + err.Error(),
		cause:   err,
	}
}
