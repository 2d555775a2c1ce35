// Package repository provides PostgreSQL-backed persistence for users,
// projects, environments, feature flags, targeting rules, and the evaluation
// audit trail. All queries run against a pgxpool connection pool; not-found
// conditions surface as wrapped [pgx.ErrNoRows] for the service layer to
// translate.
package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a dashboard account. PasswordHash is a bcrypt hash and is never
// serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Project is a tenant namespace for environments and flags. SDKKey is the
// opaque credential client applications present on the evaluate endpoint.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SDKKey      string    `json:"sdk_key"`
	CreatedBy   string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Environment is a deployment target within a project (e.g. "production").
type Environment struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Flag is a feature flag row scoped to one environment.
type Flag struct {
	ID                string    `json:"id"`
	EnvironmentID     string    `json:"environment_id"`
	Name              string    `json:"name"`
	Key               string    `json:"key"`
	Description       string    `json:"description"`
	Enabled           bool      `json:"enabled"`
	RolloutPercentage int       `json:"rollout_percentage"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Rule is a targeting rule row scoped to one flag.
type Rule struct {
	ID        string    `json:"id"`
	FlagID    string    `json:"flag_id"`
	RuleType  string    `json:"rule_type"`
	RuleValue string    `json:"rule_value"`
	Enabled   bool      `json:"enabled"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Evaluation is one audit record: which flag was decided for which resolved
// user identity, and what the decision was.
type Evaluation struct {
	FlagID         string `json:"flag_id"`
	UserIdentifier string `json:"user_identifier"`
	Result         bool   `json:"result"`
}

// PostgresRepository implements persistence backed by a pgxpool connection
// pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a [PostgresRepository] on top of pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Pool exposes the underlying connection pool for health checks and pool
// metrics.
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// CreateUser inserts a new dashboard account.
func (r *PostgresRepository) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	var created User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, password_hash, created_at, updated_at
	`, email, passwordHash).Scan(
		&created.ID,
		&created.Email,
		&created.PasswordHash,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}

	return created, nil
}

// GetUserByEmail retrieves a user by email. Returns pgx.ErrNoRows (wrapped)
// if not found.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}

	return user, nil
}

// UserEmailExists reports whether an account with the given email exists.
func (r *PostgresRepository) UserEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

// CreateProject inserts a new project owned by userID with a freshly
// generated SDK key.
func (r *PostgresRepository) CreateProject(ctx context.Context, userID, name, description string) (Project, error) {
	sdkKey, err := generateSDKKey()
	if err != nil {
		return Project{}, fmt.Errorf("generate sdk key: %w", err)
	}

	var created Project
	err = r.pool.QueryRow(ctx, `
		INSERT INTO projects (name, description, sdk_key, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, description, sdk_key, created_by, created_at, updated_at
	`, name, description, sdkKey, userID).Scan(
		&created.ID,
		&created.Name,
		&created.Description,
		&created.SDKKey,
		&created.CreatedBy,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}

	return created, nil
}

// ListProjects returns all projects owned by userID ordered by creation time.
func (r *PostgresRepository) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, sdk_key, created_by, created_at, updated_at
		FROM projects
		WHERE created_by = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.SDKKey, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects rows: %w", err)
	}

	return projects, nil
}

// GetProject retrieves a project by ID, scoped to its owner. Returns
// pgx.ErrNoRows (wrapped) if the project does not exist or belongs to
// another user.
func (r *PostgresRepository) GetProject(ctx context.Context, userID, projectID string) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, sdk_key, created_by, created_at, updated_at
		FROM projects
		WHERE id = $1 AND created_by = $2
	`, projectID, userID).Scan(
		&p.ID, &p.Name, &p.Description, &p.SDKKey, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("get project: %w", err)
	}

	return p, nil
}

// UpdateProject updates the mutable fields of a project.
func (r *PostgresRepository) UpdateProject(ctx context.Context, userID, projectID, name, description string) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		UPDATE projects
		SET name = $3, description = $4, updated_at = NOW()
		WHERE id = $1 AND created_by = $2
		RETURNING id, name, description, sdk_key, created_by, created_at, updated_at
	`, projectID, userID, name, description).Scan(
		&p.ID, &p.Name, &p.Description, &p.SDKKey, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}

	return p, nil
}

// DeleteProject removes a project and, via cascading constraints, everything
// under it.
func (r *PostgresRepository) DeleteProject(ctx context.Context, userID, projectID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND created_by = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project: %w", pgx.ErrNoRows)
	}
	return nil
}

// RegenerateSDKKey replaces a project's SDK key, invalidating the old one
// immediately.
func (r *PostgresRepository) RegenerateSDKKey(ctx context.Context, userID, projectID string) (Project, error) {
	sdkKey, err := generateSDKKey()
	if err != nil {
		return Project{}, fmt.Errorf("generate sdk key: %w", err)
	}

	var p Project
	err = r.pool.QueryRow(ctx, `
		UPDATE projects
		SET sdk_key = $3, updated_at = NOW()
		WHERE id = $1 AND created_by = $2
		RETURNING id, name, description, sdk_key, created_by, created_at, updated_at
	`, projectID, userID, sdkKey).Scan(
		&p.ID, &p.Name, &p.Description, &p.SDKKey, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("regenerate sdk key: %w", err)
	}

	return p, nil
}

// GetProjectBySDKKey resolves the project a client SDK key belongs to.
// Returns pgx.ErrNoRows (wrapped) for unknown keys.
func (r *PostgresRepository) GetProjectBySDKKey(ctx context.Context, sdkKey string) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, sdk_key, created_by, created_at, updated_at
		FROM projects
		WHERE sdk_key = $1
	`, sdkKey).Scan(
		&p.ID, &p.Name, &p.Description, &p.SDKKey, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return Project{}, fmt.Errorf("get project by sdk key: %w", err)
	}

	return p, nil
}

func generateSDKKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sdk_" + hex.EncodeToString(b), nil
}
