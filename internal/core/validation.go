package core

// validation.go evaluates rule bindings against every row of a dataset.
//
// Validation is exhaustive: every row and every binding is evaluated and every
// failure is collected, in row order then binding order. Configuration
// problems (unknown rule, rule without validator, missing or mistyped
// parameters, binding on an undeclared column) are not row failures. They
// abort validation before any row is evaluated.

import (
	"context"
	"fmt"
)

// ctxCheckInterval is how many rows are validated between context checks.
const ctxCheckInterval = 256

// boundRule is a binding whose rule has been resolved and checked.
type boundRule struct {
	binding RuleBinding
	column  string
	rule    Rule
}

// RowValidator validates datasets against a fixed set of rule bindings.
type RowValidator struct {
	bound []boundRule
}

// NewRowValidator resolves every binding against rules. columns is the set of
// columns present in the data; a binding on any other column is a
// configuration error. The returned error is always a *Diagnostic.
func NewRowValidator(rules *RuleRegistry, bindings []RuleBinding, columns []string) (*RowValidator, error) {
	present := nameSet(columns)
	v := &RowValidator{bound: make([]boundRule, 0, len(bindings))}

	for _, b := range bindings {
		rule, err := rules.Resolve(b.Rule)
		if err != nil {
			return nil, ruleConfigError(b, nil, nil, err)
		}

		missing, invalid := rule.CheckParams(b.Params)
		if len(missing) > 0 || len(invalid) > 0 {
			return nil, ruleConfigError(b, missing, invalid, nil)
		}

		col := normalizeName(b.Column)
		if _, ok := present[col]; !ok {
			return nil, ruleConfigError(b, nil, nil, fmt.Errorf("column %q is not part of the dataset", b.Column))
		}

		v.bound = append(v.bound, boundRule{binding: b, column: col, rule: rule})
	}
	return v, nil
}

// Validate returns every row error in ds. A non-nil error means validation
// did not finish (context cancelled or deadline exceeded).
func (v *RowValidator) Validate(ctx context.Context, ds *Dataset) ([]RowError, error) {
	var errs []RowError

	for i, row := range ds.Rows {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("validation stopped at row %d: %w", i+1, err)
			}
		}

		for _, br := range v.bound {
			value := row[br.column]
			out := br.rule.Validate(value, br.binding.Params)
			if out.Valid {
				continue
			}

			msg := br.binding.Message
			if msg == "" {
				msg = DefaultBindingMessage
			}
			errs = append(errs, RowError{
				Row:     i + 1,
				Column:  br.column,
				Value:   value,
				Rule:    br.rule.Name,
				Message: msg,
				Detail:  out.Message,
			})
		}
	}
	return errs, nil
}

// countRows returns the number of distinct rows in errs.
func countRows(errs []RowError) int {
	seen := make(map[int]struct{})
	for _, e := range errs {
		seen[e.Row] = struct{}{}
	}
	return len(seen)
}
