package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateFlag inserts a new flag row under environmentID and returns the
// created record with server-generated ID and timestamps.
func (r *PostgresRepository) CreateFlag(ctx context.Context, environmentID string, flag Flag) (Flag, error) {
	var created Flag
	err := r.pool.QueryRow(ctx, `
		INSERT INTO feature_flags (environment_id, name, key, description, enabled, rollout_percentage)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, environment_id, name, key, description, enabled, rollout_percentage, created_at, updated_at
	`,
		environmentID,
		flag.Name,
		flag.Key,
		flag.Description,
		flag.Enabled,
		flag.RolloutPercentage,
	).Scan(
		&created.ID,
		&created.EnvironmentID,
		&created.Name,
		&created.Key,
		&created.Description,
		&created.Enabled,
		&created.RolloutPercentage,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return Flag{}, fmt.Errorf("create flag: %w", err)
	}

	return created, nil
}

// ListFlags returns all flags in an environment ordered by key.
func (r *PostgresRepository) ListFlags(ctx context.Context, environmentID string) ([]Flag, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, environment_id, name, key, description, enabled, rollout_percentage, created_at, updated_at
		FROM feature_flags
		WHERE environment_id = $1
		ORDER BY key
	`, environmentID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	flags := make([]Flag, 0)
	for rows.Next() {
		var f Flag
		if err := rows.Scan(
			&f.ID, &f.EnvironmentID, &f.Name, &f.Key, &f.Description,
			&f.Enabled, &f.RolloutPercentage, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flags = append(flags, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list flags rows: %w", err)
	}

	return flags, nil
}

// GetFlag retrieves one flag by ID, scoped to its environment.
func (r *PostgresRepository) GetFlag(ctx context.Context, environmentID, flagID string) (Flag, error) {
	var f Flag
	err := r.pool.QueryRow(ctx, `
		SELECT id, environment_id, name, key, description, enabled, rollout_percentage, created_at, updated_at
		FROM feature_flags
		WHERE id = $1 AND environment_id = $2
	`, flagID, environmentID).Scan(
		&f.ID, &f.EnvironmentID, &f.Name, &f.Key, &f.Description,
		&f.Enabled, &f.RolloutPercentage, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return Flag{}, fmt.Errorf("get flag: %w", err)
	}

	return f, nil
}

// UpdateFlag updates the mutable fields of a flag and returns the updated
// record.
func (r *PostgresRepository) UpdateFlag(ctx context.Context, environmentID string, flag Flag) (Flag, error) {
	var updated Flag
	err := r.pool.QueryRow(ctx, `
		UPDATE feature_flags
		SET name = $3,
		    description = $4,
		    enabled = $5,
		    rollout_percentage = $6,
		    updated_at = NOW()
		WHERE id = $1 AND environment_id = $2
		RETURNING id, environment_id, name, key, description, enabled, rollout_percentage, created_at, updated_at
	`,
		flag.ID,
		environmentID,
		flag.Name,
		flag.Description,
		flag.Enabled,
		flag.RolloutPercentage,
	).Scan(
		&updated.ID,
		&updated.EnvironmentID,
		&updated.Name,
		&updated.Key,
		&updated.Description,
		&updated.Enabled,
		&updated.RolloutPercentage,
		&updated.CreatedAt,
		&updated.UpdatedAt,
	)
	if err != nil {
		return Flag{}, fmt.Errorf("update flag: %w", err)
	}

	return updated, nil
}

// DeleteFlag removes a flag and its rules.
func (r *PostgresRepository) DeleteFlag(ctx context.Context, environmentID, flagID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM feature_flags WHERE id = $1 AND environment_id = $2
	`, flagID, environmentID)
	if err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete flag: %w", pgx.ErrNoRows)
	}
	return nil
}

// ListEnabledRulesForFlags returns the enabled rules for every flag in
// flagIDs, grouped by flag ID and ordered by descending priority within each
// group. Grouping happens here so the evaluation path never filters rules by
// flag identity itself.
func (r *PostgresRepository) ListEnabledRulesForFlags(ctx context.Context, flagIDs []string) (map[string][]Rule, error) {
	grouped := make(map[string][]Rule, len(flagIDs))
	if len(flagIDs) == 0 {
		return grouped, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, flag_id, rule_type, rule_value, enabled, priority, created_at
		FROM flag_rules
		WHERE flag_id = ANY($1) AND enabled = TRUE
		ORDER BY flag_id, priority DESC, created_at
	`, flagIDs)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rule Rule
		if err := rows.Scan(
			&rule.ID, &rule.FlagID, &rule.RuleType, &rule.RuleValue,
			&rule.Enabled, &rule.Priority, &rule.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		grouped[rule.FlagID] = append(grouped[rule.FlagID], rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enabled rules rows: %w", err)
	}

	return grouped, nil
}

// InsertEvaluations writes a batch of evaluation audit records.
func (r *PostgresRepository) InsertEvaluations(ctx context.Context, evaluations []Evaluation) error {
	if len(evaluations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range evaluations {
		batch.Queue(`
			INSERT INTO flag_evaluations (flag_id, user_identifier, result)
			VALUES ($1, $2, $3)
		`, e.FlagID, e.UserIdentifier, e.Result)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range evaluations {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
	}

	return nil
}
