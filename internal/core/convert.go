package core

// convert.go holds the typed cell model shared by the dataset parser, the row
// validator and the inserter.
//
// A cell is one of three things: missing (empty or an NA marker), a number
// (the whole column parsed as numeric), or text. Conversion to storage values
// happens only after validation, driven by the column's declared logical type.

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CellKind classifies a parsed cell.
type CellKind uint8

const (
	CellMissing CellKind = iota
	CellNumber
	CellText
)

// DateLayout is the only accepted date format for date cells and rules.
const DateLayout = "2006-01-02"

// Cell is a parsed dataset value in its native representation.
type Cell struct {
	Kind   CellKind
	Number float64
	Text   string
}

// Missing returns the missing-value marker.
func Missing() Cell { return Cell{Kind: CellMissing} }

// Number returns a numeric cell.
func Number(f float64) Cell { return Cell{Kind: CellNumber, Number: f} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{Kind: CellText, Text: s} }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.Kind == CellMissing }

// String renders the cell the way it would be written back to a file.
func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return formatNumber(c.Number)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// Float returns the numeric value of the cell. Text cells are parsed.
func (c Cell) Float() (float64, bool) {
	switch c.Kind {
	case CellNumber:
		return c.Number, true
	case CellText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Value returns the cell as a plain Go value for JSON and diagnostics.
func (c Cell) Value() any {
	switch c.Kind {
	case CellNumber:
		if isIntegral(c.Number) {
			return int64(c.Number)
		}
		return c.Number
	case CellText:
		return c.Text
	default:
		return nil
	}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value())
}

// naMarkers are the tokens read as missing values.
var naMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
	"#n/a": {},
	"-nan": {},
}

// IsNAMarker reports whether raw is read as a missing value.
func IsNAMarker(raw string) bool {
	_, ok := naMarkers[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// parseNumber parses a numeric token. Thousands separators and currency
// symbols are not accepted.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<53
}

func formatNumber(f float64) string {
	if isIntegral(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// StorageValue converts a validated cell into the value bound for a column of
// the given logical type. Missing cells become NULL.
func StorageValue(t LogicalType, c Cell) (any, error) {
	if c.IsMissing() {
		return nil, nil
	}

	switch t {
	case TypeInteger:
		f, ok := c.Float()
		if !ok || !isIntegral(f) {
			return nil, fmt.Errorf("invalid integer %q", c.String())
		}
		return int64(f), nil
	case TypeDate:
		d, err := ParseDate(c.String())
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return c.String(), nil
	}
}

// ParseDate parses a YYYY-MM-DD date. A trailing midnight time component, as
// spreadsheets often write, is ignored.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) > len(DateLayout) {
		switch rest := s[len(DateLayout):]; rest {
		case " 00:00:00", "T00:00:00", "T00:00:00Z":
			s = s[:len(DateLayout)]
		}
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", raw)
	}
	return d, nil
}
