package core

// dataset.go turns uploaded bytes into a typed, fully materialized dataset.
//
// CSV and XLSX are supported, selected by file extension. The first non-blank
// row is the header. Blank rows are skipped. Column types are inferred per
// column: when every non-missing cell of a column parses as a number the
// column is numeric, otherwise every present cell is text.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ErrParse marks malformed uploads (bad structure or encoding).
var ErrParse = errors.New("parse error")

// DefaultAllowedExtensions is used when no allow-list is configured.
var DefaultAllowedExtensions = []string{"csv"}

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Row maps a column name to its cell.
type Row map[string]Cell

// Dataset is a parsed upload.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(name))), ".")
}

// AllowedFile reports whether name carries an extension from allowed.
func AllowedFile(name string, allowed []string) bool {
	if len(allowed) == 0 {
		allowed = DefaultAllowedExtensions
	}
	ext := Extension(name)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), ext) {
			return true
		}
	}
	return false
}

// ParseDataset parses data according to the extension of fileName.
func ParseDataset(fileName string, data []byte) (*Dataset, error) {
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, byteOrderMark))) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrParse)
	}

	var (
		records [][]string
		err     error
	)
	switch ext := Extension(fileName); ext {
	case "csv":
		records, err = readCSV(data)
	case "xlsx":
		records, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrParse, ext)
	}
	if err != nil {
		return nil, err
	}

	return buildDataset(records)
}

func readCSV(data []byte) ([][]string, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: encoding error: file is not valid UTF-8", ErrParse)
	}

	reader := bufio.NewReader(bytes.NewReader(data))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", ErrParse, err)
	}
	return records, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xlsx: %v", ErrParse, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrParse)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrParse, sheets[0], err)
	}
	return rows, nil
}

func buildDataset(records [][]string) (*Dataset, error) {
	records = dropBlankRows(records)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrParse)
	}

	header := headerNames(records[0])
	body := records[1:]
	width := len(header)

	for i, rec := range body {
		if len(rec) > width && !blankTail(rec[width:]) {
			return nil, fmt.Errorf("%w: invalid csv: row %d has %d fields, header has %d",
				ErrParse, i+1, len(rec), width)
		}
	}

	numeric := make([]bool, width)
	for col := range header {
		numeric[col] = columnIsNumeric(body, col)
	}

	ds := &Dataset{Columns: header, Rows: make([]Row, len(body))}
	for i, rec := range body {
		row := make(Row, width)
		for col, name := range header {
			raw := ""
			if col < len(rec) {
				raw = rec[col]
			}
			row[name] = makeCell(raw, numeric[col])
		}
		ds.Rows[i] = row
	}
	return ds, nil
}

// headerNames lower-cases and trims header cells. Blank headers become
// unnamed_<n> and repeated names get a .<k> suffix so neither can match a
// declared column by accident.
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := normalizeName(h)
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}

func columnIsNumeric(rows [][]string, col int) bool {
	present := false
	for _, rec := range rows {
		if col >= len(rec) || IsNAMarker(rec[col]) {
			continue
		}
		if _, ok := parseNumber(rec[col]); !ok {
			return false
		}
		present = true
	}
	return present
}

func makeCell(raw string, numeric bool) Cell {
	if IsNAMarker(raw) {
		return Missing()
	}
	if numeric {
		f, _ := parseNumber(raw)
		return Number(f)
	}
	return Text(raw)
}

func dropBlankRows(records [][]string) [][]string {
	out := records[:0:0]
	for _, rec := range records {
		if !blankTail(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func blankTail(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
