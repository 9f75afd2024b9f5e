package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/validata/internal/core"
)

// ReadTable returns up to limit rows of ref ordered by the first column, or
// nil when the table does not exist. A limit of zero or less reads all rows.
func (s *Store) ReadTable(ctx context.Context, ref core.TableRef, limit int) (*core.TableData, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY 1", ref.Sanitize())
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read table %s: %w", ref, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	data := &core.TableData{
		Name:    ref.Name,
		Columns: make([]string, len(fields)),
		Rows:    []map[string]any{},
	}
	for i, f := range fields {
		data.Columns[i] = f.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[data.Columns[i]] = displayValue(v)
		}
		data.Rows = append(data.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
