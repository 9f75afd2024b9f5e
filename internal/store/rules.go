package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/validata/internal/core"
)

// ListRuleDefinitions returns the rule catalog ordered by name.
func (s *Store) ListRuleDefinitions(ctx context.Context) ([]core.RuleDefinition, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, description FROM rule_definitions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query rule definitions: %w", err)
	}
	defer rows.Close()

	out := []core.RuleDefinition{}
	for rows.Next() {
		var d core.RuleDefinition
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertRuleDefinitions inserts missing rules and refreshes descriptions.
// Ids of existing rules never change.
func (s *Store) UpsertRuleDefinitions(ctx context.Context, defs []core.RuleDefinition) error {
	if len(defs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range defs {
		batch.Queue(`
			INSERT INTO rule_definitions (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`,
			d.Name, d.Description)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, d := range defs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert rule %q: %w", d.Name, err)
		}
	}
	return nil
}
