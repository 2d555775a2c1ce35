package server

import (
	"context"

	"github.com/matt-riley/switchboard/internal/core"
	"github.com/matt-riley/switchboard/internal/repository"
	"github.com/matt-riley/switchboard/internal/service"
)

// Service is the application surface the HTTP handlers call into.
type Service interface {
	Register(ctx context.Context, email, password string) (repository.User, error)
	Authenticate(ctx context.Context, email, password string) (repository.User, error)

	CreateProject(ctx context.Context, userID, name, description string) (repository.Project, error)
	ListProjects(ctx context.Context, userID string) ([]repository.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (repository.Project, error)
	UpdateProject(ctx context.Context, userID, projectID, name, description string) (repository.Project, error)
	DeleteProject(ctx context.Context, userID, projectID string) error
	RegenerateSDKKey(ctx context.Context, userID, projectID string) (repository.Project, error)

	CreateEnvironment(ctx context.Context, userID, projectID string, env repository.Environment) (repository.Environment, error)
	ListEnvironments(ctx context.Context, userID, projectID string) ([]repository.Environment, error)
	GetEnvironment(ctx context.Context, userID, projectID, environmentID string) (repository.Environment, error)
	UpdateEnvironment(ctx context.Context, userID, projectID, environmentID, name, description string) (repository.Environment, error)
	DeleteEnvironment(ctx context.Context, userID, projectID, environmentID string) error

	CreateFlag(ctx context.Context, userID, projectID, environmentID string, flag repository.Flag) (repository.Flag, error)
	ListFlags(ctx context.Context, userID, projectID, environmentID string) ([]repository.Flag, error)
	GetFlag(ctx context.Context, userID, projectID, environmentID, flagID string) (repository.Flag, error)
	UpdateFlag(ctx context.Context, userID, projectID, environmentID string, flag repository.Flag) (repository.Flag, error)
	DeleteFlag(ctx context.Context, userID, projectID, environmentID, flagID string) error

	CreateRule(ctx context.Context, userID, projectID, environmentID, flagID string, rule repository.Rule) (repository.Rule, error)
	ListRules(ctx context.Context, userID, projectID, environmentID, flagID string) ([]repository.Rule, error)
	GetRule(ctx context.Context, userID, projectID, environmentID, flagID, ruleID string) (repository.Rule, error)
	UpdateRule(ctx context.Context, userID, projectID, environmentID, flagID string, rule repository.Rule) (repository.Rule, error)
	DeleteRule(ctx context.Context, userID, projectID, environmentID, flagID, ruleID string) error

	Evaluate(ctx context.Context, projectID, environmentKey string, userContext core.UserContext) (map[string]core.Evaluation, error)
}

// TokenIssuer mints a bearer token for an authenticated user.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

var _ Service = (*service.Service)(nil)
