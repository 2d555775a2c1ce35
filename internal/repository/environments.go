package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreateEnvironment inserts a new environment under projectID.
func (r *PostgresRepository) CreateEnvironment(ctx context.Context, projectID string, env Environment) (Environment, error) {
	var created Environment
	err := r.pool.QueryRow(ctx, `
		INSERT INTO environments (project_id, name, key, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, project_id, name, key, description, created_at, updated_at
	`, projectID, env.Name, env.Key, env.Description).Scan(
		&created.ID,
		&created.ProjectID,
		&created.Name,
		&created.Key,
		&created.Description,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return Environment{}, fmt.Errorf("create environment: %w", err)
	}

	return created, nil
}

// ListEnvironments returns all environments in a project ordered by key.
func (r *PostgresRepository) ListEnvironments(ctx context.Context, projectID string) ([]Environment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, name, key, description, created_at, updated_at
		FROM environments
		WHERE project_id = $1
		ORDER BY key
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	environments := make([]Environment, 0)
	for rows.Next() {
		var e Environment
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Name, &e.Key, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan environment: %w", err)
		}
		environments = append(environments, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list environments rows: %w", err)
	}

	return environments, nil
}

// GetEnvironment retrieves one environment by ID, scoped to its project.
func (r *PostgresRepository) GetEnvironment(ctx context.Context, projectID, environmentID string) (Environment, error) {
	var e Environment
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, name, key, description, created_at, updated_at
		FROM environments
		WHERE id = $1 AND project_id = $2
	`, environmentID, projectID).Scan(
		&e.ID, &e.ProjectID, &e.Name, &e.Key, &e.Description, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Environment{}, fmt.Errorf("get environment: %w", err)
	}

	return e, nil
}

// GetEnvironmentByKey retrieves one environment by its key within a project.
// This is the lookup the SDK evaluate path uses.
func (r *PostgresRepository) GetEnvironmentByKey(ctx context.Context, projectID, key string) (Environment, error) {
	var e Environment
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, name, key, description, created_at, updated_at
		FROM environments
		WHERE project_id = $1 AND key = $2
	`, projectID, key).Scan(
		&e.ID, &e.ProjectID, &e.Name, &e.Key, &e.Description, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Environment{}, fmt.Errorf("get environment by key: %w", err)
	}

	return e, nil
}

// UpdateEnvironment updates the mutable fields of an environment.
func (r *PostgresRepository) UpdateEnvironment(ctx context.Context, projectID, environmentID, name, description string) (Environment, error) {
	var e Environment
	err := r.pool.QueryRow(ctx, `
		UPDATE environments
		SET name = $3, description = $4, updated_at = NOW()
		WHERE id = $1 AND project_id = $2
		RETURNING id, project_id, name, key, description, created_at, updated_at
	`, environmentID, projectID, name, description).Scan(
		&e.ID, &e.ProjectID, &e.Name, &e.Key, &e.Description, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Environment{}, fmt.Errorf("update environment: %w", err)
	}

	return e, nil
}

// DeleteEnvironment removes an environment and its flags.
func (r *PostgresRepository) DeleteEnvironment(ctx context.Context, projectID, environmentID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM environments WHERE id = $1 AND project_id = $2
	`, environmentID, projectID)
	if err != nil {
		return fmt.Errorf("delete environment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete environment: %w", pgx.ErrNoRows)
	}
	return nil
}
