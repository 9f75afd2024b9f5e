package core

import (
	"context"
	"io"
	"sort"
)

// PreviewSummary contains the summary counts for an ingestion preview.
type PreviewSummary struct {
	TotalRows       int  `json:"total_rows"`
	ValidRows       int  `json:"valid_rows"`
	ErrorRows       int  `json:"error_rows"`
	ErrorCount      int  `json:"error_count"`
	DuplicateInFile int  `json:"duplicate_in_file"`
	WouldCommit     bool `json:"would_commit"`
}

// RuleErrorCount is the number of failures of one rule on one column.
type RuleErrorCount struct {
	Column string `json:"column"`
	Rule   string `json:"rule"`
	Count  int    `json:"count"`
}

// RowPreview is one valid row as it was read.
type RowPreview struct {
	Row    int             `json:"row"`
	Values map[string]Cell `json:"values"`
}

// DuplicatePreview lists the rows sharing one value of a primary-key or
// unique column.
type DuplicatePreview struct {
	Column string `json:"column"`
	Value  string `json:"value"`
	Rows   []int  `json:"rows"`
}

// PreviewResponse is the result of a dry-run ingestion.
type PreviewResponse struct {
	ProjectID        int64              `json:"project_id"`
	FileName         string             `json:"file_name"`
	Summary          PreviewSummary     `json:"summary"`
	Schema           SchemaMatch        `json:"schema"`
	ErrorsByRule     []RuleErrorCount   `json:"errors_by_rule,omitempty"`
	ErrorSamples     []RowError         `json:"error_samples,omitempty"`
	ValidSamples     []RowPreview       `json:"valid_samples,omitempty"`
	DuplicateSamples []DuplicatePreview `json:"duplicate_samples,omitempty"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

// Sample limits
const (
	maxErrorSamples     = 20
	maxValidSamples     = 10
	maxDuplicateSamples = 10
)

// Preview runs parsing, schema matching and row validation for a file without
// touching storage. The project is never deleted by a preview. Request-shape,
// parse and rule configuration problems are returned as *Diagnostic; a schema
// mismatch is reported in the response so the caller sees both column sets.
func (s *Service) Preview(ctx context.Context, projectID int64, fileName string, r io.Reader) (*PreviewResponse, error) {
	startTime := s.now()

	req := IngestRequest{ProjectID: projectID, FileName: fileName, Data: r, Mode: ModeCreateNew}
	if d := s.checkRequest(req); d != nil {
		return nil, d
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	data, err := readLimited(r, s.maxFileSize)
	if err != nil {
		return nil, requestError("%v", err)
	}
	ds, err := ParseDataset(fileName, data)
	if err != nil {
		return nil, parseError(err)
	}
	if s.maxRows > 0 && ds.Len() > s.maxRows {
		return nil, requestError("too many rows: %d (limit %d)", ds.Len(), s.maxRows)
	}

	resp := &PreviewResponse{
		ProjectID: projectID,
		FileName:  fileName,
		Summary:   PreviewSummary{TotalRows: ds.Len()},
		Schema:    MatchSchema(p.ColumnNames(), ds.Columns),
	}
	if !resp.Schema.Matched {
		resp.ProcessingTimeMs = s.now().Sub(startTime).Milliseconds()
		return resp, nil
	}

	validator, err := NewRowValidator(s.rules, p.Bindings, ds.Columns)
	if err != nil {
		return nil, err
	}

	vctx := ctx
	if s.validationTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, s.validationTimeout)
		defer cancel()
	}
	rowErrs, err := validator.Validate(vctx, ds)
	if err != nil {
		return nil, requestError("validation did not finish: %v", err)
	}

	resp.Summary.ErrorCount = len(rowErrs)
	resp.Summary.ErrorRows = countRows(rowErrs)
	resp.Summary.ValidRows = ds.Len() - resp.Summary.ErrorRows
	resp.ErrorsByRule = countByRule(rowErrs)
	if len(rowErrs) > maxErrorSamples {
		resp.ErrorSamples = rowErrs[:maxErrorSamples]
	} else {
		resp.ErrorSamples = rowErrs
	}

	failed := make(map[int]struct{}, resp.Summary.ErrorRows)
	for _, e := range rowErrs {
		failed[e.Row] = struct{}{}
	}
	for i, row := range ds.Rows {
		if len(resp.ValidSamples) >= maxValidSamples {
			break
		}
		if _, bad := failed[i+1]; bad {
			continue
		}
		resp.ValidSamples = append(resp.ValidSamples, RowPreview{Row: i + 1, Values: row})
	}

	resp.Summary.DuplicateInFile, resp.DuplicateSamples = findDuplicates(p, ds)
	resp.Summary.WouldCommit = len(rowErrs) == 0 && resp.Summary.DuplicateInFile == 0

	resp.ProcessingTimeMs = s.now().Sub(startTime).Milliseconds()
	return resp, nil
}

// countByRule aggregates row errors per (column, rule), most frequent first.
func countByRule(errs []RowError) []RuleErrorCount {
	type key struct{ column, rule string }
	counts := make(map[key]int)
	for _, e := range errs {
		counts[key{e.Column, e.Rule}]++
	}

	out := make([]RuleErrorCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, RuleErrorCount{Column: k.column, Rule: k.rule, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Column != out[j].Column {
			return out[i].Column < out[j].Column
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// findDuplicates reports repeated values in primary-key and unique columns.
// Missing cells never collide. It returns the number of extra occurrences.
func findDuplicates(p Project, ds *Dataset) (int, []DuplicatePreview) {
	var total int
	var samples []DuplicatePreview

	for _, col := range p.Columns {
		if !col.PrimaryKey && !col.Unique {
			continue
		}
		name := normalizeName(col.Name)
		seen := make(map[string][]int)
		var order []string
		for i, row := range ds.Rows {
			c := row[name]
			if c.IsMissing() {
				continue
			}
			v := c.String()
			if _, ok := seen[v]; !ok {
				order = append(order, v)
			}
			seen[v] = append(seen[v], i+1)
		}
		for _, v := range order {
			rows := seen[v]
			if len(rows) < 2 {
				continue
			}
			total += len(rows) - 1
			if len(samples) < maxDuplicateSamples {
				samples = append(samples, DuplicatePreview{Column: name, Value: v, Rows: rows})
			}
		}
	}
	return total, samples
}
