package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateRule inserts a new targeting rule under flagID.
func (r *PostgresRepository) CreateRule(ctx context.Context, flagID string, rule Rule) (Rule, error) {
	var created Rule
	err := r.pool.QueryRow(ctx, `
		INSERT INTO flag_rules (flag_id, rule_type, rule_value, enabled, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, flag_id, rule_type, rule_value, enabled, priority, created_at
	`, flagID, rule.RuleType, rule.RuleValue, rule.Enabled, rule.Priority).Scan(
		&created.ID,
		&created.FlagID,
		&created.RuleType,
		&created.RuleValue,
		&created.Enabled,
		&created.Priority,
		&created.CreatedAt,
	)
	if err != nil {
		return Rule{}, fmt.Errorf("create rule: %w", err)
	}

	return created, nil
}

// ListRules returns all rules for a flag, enabled or not, ordered by
// descending priority then creation time.
func (r *PostgresRepository) ListRules(ctx context.Context, flagID string) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, flag_id, rule_type, rule_value, enabled, priority, created_at
		FROM flag_rules
		WHERE flag_id = $1
		ORDER BY priority DESC, created_at
	`, flagID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]Rule, 0)
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID, &rule.FlagID, &rule.RuleType, &rule.RuleValue,
			&rule.Enabled, &rule.Priority, &rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules rows: %w", err)
	}

	return rules, nil
}

// GetRule retrieves one rule by ID, scoped to its flag.
func (r *PostgresRepository) GetRule(ctx context.Context, flagID, ruleID string) (Rule, error) {
	var rule Rule
	err := r.pool.QueryRow(ctx, `
		SELECT id, flag_id, rule_type, rule_value, enabled, priority, created_at
		FROM flag_rules
		WHERE id = $1 AND flag_id = $2
	`, ruleID, flagID).Scan(
		&rule.ID, &rule.FlagID, &rule.RuleType, &rule.RuleValue,
		&rule.Enabled, &rule.Priority, &rule.CreatedAt,
	)
	if err != nil {
		return Rule{}, fmt.Errorf("get rule: %w", err)
	}

	return rule, nil
}

// UpdateRule updates the mutable fields of a rule. The rule type is fixed at
// creation.
func (r *PostgresRepository) UpdateRule(ctx context.Context, flagID string, rule Rule) (Rule, error) {
	var updated Rule
	err := r.pool.QueryRow(ctx, `
		UPDATE flag_rules
		SET rule_value = $3, enabled = $4, priority = $5
		WHERE id = $1 AND flag_id = $2
		RETURNING id, flag_id, rule_type, rule_value, enabled, priority, created_at
	`, rule.ID, flagID, rule.RuleValue, rule.Enabled, rule.Priority).Scan(
		&updated.ID,
		&updated.FlagID,
		&updated.RuleType,
		&updated.RuleValue,
		&updated.Enabled,
		&updated.Priority,
		&updated.CreatedAt,
	)
	if err != nil {
		return Rule{}, fmt.Errorf("update rule: %w", err)
	}

	return updated, nil
}

// DeleteRule removes a rule.
func (r *PostgresRepository) DeleteRule(ctx context.Context, flagID, ruleID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM flag_rules WHERE id = $1 AND flag_id = $2
	`, ruleID, flagID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete rule: %w", pgx.ErrNoRows)
	}
	return nil
}
