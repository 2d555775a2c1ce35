// Package service implements the application logic between the HTTP handlers
// and the repository: account management, project/environment/flag/rule
// authoring with validation, and flag evaluation for SDK clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/matt-riley/switchboard/internal/core"
	"github.com/matt-riley/switchboard/internal/repository"
)

const (
	maxKeyLength        = 64
	defaultAuditTimeout = 2 * time.Second
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidKey         = errors.New("invalid key")
	ErrInvalidRollout     = errors.New("rollout percentage must be between 0 and 100")
	ErrInvalidRuleType    = errors.New("invalid rule type")
	ErrInvalidRuleValue   = errors.New("invalid rule value")
)

// Repository is the persistence surface the service depends on. The
// PostgresRepository satisfies it; tests supply fakes.
type Repository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (repository.User, error)
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	UserEmailExists(ctx context.Context, email string) (bool, error)

	CreateProject(ctx context.Context, userID, name, description string) (repository.Project, error)
	ListProjects(ctx context.Context, userID string) ([]repository.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (repository.Project, error)
	UpdateProject(ctx context.Context, userID, projectID, name, description string) (repository.Project, error)
	DeleteProject(ctx context.Context, userID, projectID string) error
	RegenerateSDKKey(ctx context.Context, userID, projectID string) (repository.Project, error)
	GetProjectBySDKKey(ctx context.Context, sdkKey string) (repository.Project, error)

	CreateEnvironment(ctx context.Context, projectID string, env repository.Environment) (repository.Environment, error)
	ListEnvironments(ctx context.Context, projectID string) ([]repository.Environment, error)
	GetEnvironment(ctx context.Context, projectID, environmentID string) (repository.Environment, error)
	GetEnvironmentByKey(ctx context.Context, projectID, key string) (repository.Environment, error)
	UpdateEnvironment(ctx context.Context, projectID, environmentID, name, description string) (repository.Environment, error)
	DeleteEnvironment(ctx context.Context, projectID, environmentID string) error

	CreateFlag(ctx context.Context, environmentID string, flag repository.Flag) (repository.Flag, error)
	ListFlags(ctx context.Context, environmentID string) ([]repository.Flag, error)
	GetFlag(ctx context.Context, environmentID, flagID string) (repository.Flag, error)
	UpdateFlag(ctx context.Context, environmentID string, flag repository.Flag) (repository.Flag, error)
	DeleteFlag(ctx context.Context, environmentID, flagID string) error
	ListEnabledRulesForFlags(ctx context.Context, flagIDs []string) (map[string][]repository.Rule, error)
	InsertEvaluations(ctx context.Context, evaluations []repository.Evaluation) error

	CreateRule(ctx context.Context, flagID string, rule repository.Rule) (repository.Rule, error)
	ListRules(ctx context.Context, flagID string) ([]repository.Rule, error)
	GetRule(ctx context.Context, flagID, ruleID string) (repository.Rule, error)
	UpdateRule(ctx context.Context, flagID string, rule repository.Rule) (repository.Rule, error)
	DeleteRule(ctx context.Context, flagID, ruleID string) error
}

// Option configures optional Service parameters.
type Option func(*Service)

// WithLogger sets the logger used for best-effort failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAuditTimeout overrides the deadline for best-effort evaluation audit
// writes.
func WithAuditTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.auditTimeout = d
		}
	}
}

// WithOnAuditFailure registers a callback invoked whenever an evaluation
// audit write fails (e.g. to increment a Prometheus counter).
func WithOnAuditFailure(fn func()) Option {
	return func(s *Service) { s.onAuditFailure = fn }
}

// WithOnEvaluation registers a callback invoked once per evaluated flag with
// the decision outcome.
func WithOnEvaluation(fn func(enabled bool)) Option {
	return func(s *Service) { s.onEvaluation = fn }
}

type Service struct {
	repo           Repository
	logger         *slog.Logger
	auditTimeout   time.Duration
	onAuditFailure func()
	onEvaluation   func(enabled bool)
}

func New(repo Repository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repository is nil")
	}

	svc := &Service{
		repo:         repo,
		logger:       slog.Default(),
		auditTimeout: defaultAuditTimeout,
	}
	for _, o := range opts {
		o(svc)
	}

	return svc, nil
}

// notFound reports whether err is the repository's not-found condition.
func notFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// validateKey checks the key format shared by environments and flags:
// non-empty, at most 64 characters, lowercase letters, digits, underscores,
// and hyphens.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidKey)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key exceeds %d characters", ErrInvalidKey, maxKeyLength)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("%w: key may only contain lowercase letters, digits, underscores, and hyphens", ErrInvalidKey)
		}
	}
	return nil
}

func validateRollout(percentage int) error {
	if percentage < 0 || percentage > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidRollout, percentage)
	}
	return nil
}

// validateRule checks the rule type against the closed set and the value
// against the type's format.
func validateRule(ruleType, ruleValue string) error {
	value := strings.TrimSpace(ruleValue)
	if value == "" {
		return fmt.Errorf("%w: value is required", ErrInvalidRuleValue)
	}

	switch core.RuleType(ruleType) {
	case core.RuleUserID:
	case core.RuleUserEmail:
		if !strings.Contains(value, "@") {
			return fmt.Errorf("%w: user_email value must contain '@'", ErrInvalidRuleValue)
		}
	case core.RuleEmailDomain:
		if !strings.HasPrefix(value, "@") {
			return fmt.Errorf("%w: email_domain value must start with '@'", ErrInvalidRuleValue)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRuleType, ruleType)
	}

	return nil
}
