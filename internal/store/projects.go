package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/validata/internal/core"
)

const selectProjects = `
SELECT id, name, table_name, modified_by, created_at, updated_at
FROM projects`

const selectColumns = `
SELECT project_id, name, data_type, required, max_length, allowed_values, primary_key, is_unique
FROM project_columns`

const selectBindings = `
SELECT b.project_id, b.id, b.column_name, r.name, b.params, b.message
FROM rule_bindings b
JOIN rule_definitions r ON r.id = b.rule_id`

// CreateProject stores a project with its schema and bindings.
func (s *Store) CreateProject(ctx context.Context, def core.ProjectDefinition) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO projects (name, table_name, modified_by)
			VALUES ($1, $2, $3)
			RETURNING id`,
			def.Name, def.TableName, def.ModifiedBy,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrDuplicateProject
			}
			return fmt.Errorf("insert project: %w", err)
		}
		return insertChildren(ctx, tx, id, def)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateProject replaces name, modifying user, schema and bindings. The
// table name is left untouched.
func (s *Store) UpdateProject(ctx context.Context, id int64, def core.ProjectDefinition) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockProjects(ctx, tx, id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE projects
			SET name = $2, modified_by = $3, updated_at = now()
			WHERE id = $1`,
			id, def.Name, def.ModifiedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return core.ErrDuplicateProject
			}
			return fmt.Errorf("update project: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM rule_bindings WHERE project_id = $1", id); err != nil {
			return fmt.Errorf("clear bindings: %w", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM project_columns WHERE project_id = $1", id); err != nil {
			return fmt.Errorf("clear columns: %w", err)
		}
		return insertChildren(ctx, tx, id, def)
	})
}

// insertChildren writes columns and bindings of project id.
func insertChildren(ctx context.Context, tx pgx.Tx, id int64, def core.ProjectDefinition) error {
	for i, c := range def.Columns {
		_, err := tx.Exec(ctx, `
			INSERT INTO project_columns
				(project_id, position, name, data_type, required, max_length, allowed_values, primary_key, is_unique)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			id, i, c.Name, string(c.Type), c.Required, toPgInt4(c.MaxLength), c.AllowedValues, c.PrimaryKey, c.Unique,
		)
		if err != nil {
			return fmt.Errorf("insert column %q: %w", c.Name, err)
		}
	}

	for i, b := range def.Bindings {
		tag, err := tx.Exec(ctx, `
			INSERT INTO rule_bindings (project_id, position, column_name, rule_id, params, message)
			SELECT $1, $2, $3, r.id, $5, $6
			FROM rule_definitions r
			WHERE r.name = $4`,
			id, i, b.Column, b.Rule, paramsOrEmpty(b.Params), b.Message,
		)
		if err != nil {
			return fmt.Errorf("insert binding %d: %w", i+1, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: binding %d: %w: %q", core.ErrInvalidProject, i+1, core.ErrRuleNotFound, b.Rule)
		}
	}
	return nil
}

// GetProject returns one project with schema and bindings.
func (s *Store) GetProject(ctx context.Context, id int64) (core.Project, error) {
	return loadProject(ctx, s.pool, id)
}

// ListProjects returns every project ordered by id.
func (s *Store) ListProjects(ctx context.Context) ([]core.Project, error) {
	projects, err := queryProjects(ctx, s.pool, selectProjects+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return projects, nil
	}

	byID := make(map[int64]*core.Project, len(projects))
	for i := range projects {
		byID[projects[i].ID] = &projects[i]
	}
	if err := attachColumns(ctx, s.pool, byID, selectColumns+" ORDER BY project_id, position"); err != nil {
		return nil, err
	}
	if err := attachBindings(ctx, s.pool, byID, selectBindings+" ORDER BY b.project_id, b.position"); err != nil {
		return nil, err
	}
	return projects, nil
}

// DeleteProjects removes every id and drops their tables, or does nothing
// when any id is unknown.
func (s *Store) DeleteProjects(ctx context.Context, ids []int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockProjects(ctx, tx, ids...); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, "SELECT id, table_name FROM projects WHERE id = ANY($1)", ids)
		if err != nil {
			return fmt.Errorf("select projects: %w", err)
		}
		tables := make(map[int64]string, len(ids))
		for rows.Next() {
			var id int64
			var table string
			if err := rows.Scan(&id, &table); err != nil {
				rows.Close()
				return err
			}
			tables[id] = table
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range ids {
			if _, ok := tables[id]; !ok {
				return fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
			}
		}

		for _, id := range sortedIDs(ids) {
			ref := core.TableRef{Namespace: s.namespace, Name: tables[id]}
			if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ref.Sanitize()); err != nil {
				return fmt.Errorf("drop table %s: %w", ref, err)
			}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM projects WHERE id = ANY($1)", ids); err != nil {
			return fmt.Errorf("delete projects: %w", err)
		}
		return nil
	})
}

// loadProject reads one project through db, which may be the pool or the
// ingestion transaction.
func loadProject(ctx context.Context, db DBTX, id int64) (core.Project, error) {
	projects, err := queryProjects(ctx, db, selectProjects+" WHERE id = $1", id)
	if err != nil {
		return core.Project{}, err
	}
	if len(projects) == 0 {
		return core.Project{}, fmt.Errorf("project %d: %w", id, core.ErrProjectNotFound)
	}

	p := &projects[0]
	byID := map[int64]*core.Project{id: p}
	if err := attachColumns(ctx, db, byID, selectColumns+" WHERE project_id = $1 ORDER BY position", id); err != nil {
		return core.Project{}, err
	}
	if err := attachBindings(ctx, db, byID, selectBindings+" WHERE b.project_id = $1 ORDER BY b.position", id); err != nil {
		return core.Project{}, err
	}
	return *p, nil
}

func queryProjects(ctx context.Context, db DBTX, query string, args ...any) ([]core.Project, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []core.Project
	for rows.Next() {
		var p core.Project
		var created, updated time.Time
		if err := rows.Scan(&p.ID, &p.Name, &p.TableName, &p.ModifiedBy, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt, p.UpdatedAt = created.UTC(), updated.UTC()
		p.Columns = []core.ColumnDefinition{}
		p.Bindings = []core.RuleBinding{}
		out = append(out, p)
	}
	return out, rows.Err()
}

func attachColumns(ctx context.Context, db DBTX, byID map[int64]*core.Project, query string, args ...any) error {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			projectID int64
			c         core.ColumnDefinition
			dataType  string
			maxLength pgtype.Int4
		)
		if err := rows.Scan(&projectID, &c.Name, &dataType, &c.Required, &maxLength,
			&c.AllowedValues, &c.PrimaryKey, &c.Unique); err != nil {
			return err
		}
		c.Type = core.LogicalType(dataType)
		c.MaxLength = fromPgInt4(maxLength)
		if p, ok := byID[projectID]; ok {
			p.Columns = append(p.Columns, c)
		}
	}
	return rows.Err()
}

func attachBindings(ctx context.Context, db DBTX, byID map[int64]*core.Project, query string, args ...any) error {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			projectID int64
			b         core.RuleBinding
			params    map[string]any
		)
		if err := rows.Scan(&projectID, &b.ID, &b.Column, &b.Rule, &params, &b.Message); err != nil {
			return err
		}
		if len(params) > 0 {
			b.Params = core.Params(params)
		}
		if p, ok := byID[projectID]; ok {
			p.Bindings = append(p.Bindings, b)
		}
	}
	return rows.Err()
}
