package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/matt-riley/switchboard/internal/repository"
)

// CreateProject creates a project owned by userID. The repository generates
// the SDK key.
func (s *Service) CreateProject(ctx context.Context, userID, name, description string) (repository.Project, error) {
	if strings.TrimSpace(name) == "" {
		return repository.Project{}, fmt.Errorf("%w: project name is required", ErrInvalidArgument)
	}

	project, err := s.repo.CreateProject(ctx, userID, name, description)
	if err != nil {
		return repository.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context, userID string) ([]repository.Project, error) {
	projects, err := s.repo.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

func (s *Service) GetProject(ctx context.Context, userID, projectID string) (repository.Project, error) {
	project, err := s.repo.GetProject(ctx, userID, projectID)
	if err != nil {
		if notFound(err) {
			return repository.Project{}, ErrNotFound
		}
		return repository.Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (s *Service) UpdateProject(ctx context.Context, userID, projectID, name, description string) (repository.Project, error) {
	if strings.TrimSpace(name) == "" {
		return repository.Project{}, fmt.Errorf("%w: project name is required", ErrInvalidArgument)
	}

	project, err := s.repo.UpdateProject(ctx, userID, projectID, name, description)
	if err != nil {
		if notFound(err) {
			return repository.Project{}, ErrNotFound
		}
		return repository.Project{}, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

func (s *Service) DeleteProject(ctx context.Context, userID, projectID string) error {
	if err := s.repo.DeleteProject(ctx, userID, projectID); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// RegenerateSDKKey rotates a project's SDK key. The old key stops working
// immediately.
func (s *Service) RegenerateSDKKey(ctx context.Context, userID, projectID string) (repository.Project, error) {
	project, err := s.repo.RegenerateSDKKey(ctx, userID, projectID)
	if err != nil {
		if notFound(err) {
			return repository.Project{}, ErrNotFound
		}
		return repository.Project{}, fmt.Errorf("regenerate sdk key: %w", err)
	}
	return project, nil
}

// ValidateSDKKey resolves an SDK key to its project ID. It satisfies the
// middleware's SDKKeyValidator interface.
func (s *Service) ValidateSDKKey(ctx context.Context, sdkKey string) (string, error) {
	project, err := s.repo.GetProjectBySDKKey(ctx, sdkKey)
	if err != nil {
		if notFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("validate sdk key: %w", err)
	}
	return project.ID, nil
}

// ownProject verifies the caller owns projectID before any nested resource is
// touched.
func (s *Service) ownProject(ctx context.Context, userID, projectID string) error {
	_, err := s.GetProject(ctx, userID, projectID)
	return err
}

func (s *Service) CreateEnvironment(ctx context.Context, userID, projectID string, env repository.Environment) (repository.Environment, error) {
	if err := s.ownProject(ctx, userID, projectID); err != nil {
		return repository.Environment{}, err
	}
	if strings.TrimSpace(env.Name) == "" {
		return repository.Environment{}, fmt.Errorf("%w: environment name is required", ErrInvalidArgument)
	}
	if err := validateKey(env.Key); err != nil {
		return repository.Environment{}, err
	}

	created, err := s.repo.CreateEnvironment(ctx, projectID, env)
	if err != nil {
		return repository.Environment{}, fmt.Errorf("create environment: %w", err)
	}
	return created, nil
}

func (s *Service) ListEnvironments(ctx context.Context, userID, projectID string) ([]repository.Environment, error) {
	if err := s.ownProject(ctx, userID, projectID); err != nil {
		return nil, err
	}

	environments, err := s.repo.ListEnvironments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	return environments, nil
}

func (s *Service) GetEnvironment(ctx context.Context, userID, projectID, environmentID string) (repository.Environment, error) {
	if err := s.ownProject(ctx, userID, projectID); err != nil {
		return repository.Environment{}, err
	}

	env, err := s.repo.GetEnvironment(ctx, projectID, environmentID)
	if err != nil {
		if notFound(err) {
			return repository.Environment{}, ErrNotFound
		}
		return repository.Environment{}, fmt.Errorf("get environment: %w", err)
	}
	return env, nil
}

func (s *Service) UpdateEnvironment(ctx context.Context, userID, projectID, environmentID, name, description string) (repository.Environment, error) {
	if err := s.ownProject(ctx, userID, projectID); err != nil {
		return repository.Environment{}, err
	}
	if strings.TrimSpace(name) == "" {
		return repository.Environment{}, fmt.Errorf("%w: environment name is required", ErrInvalidArgument)
	}

	env, err := s.repo.UpdateEnvironment(ctx, projectID, environmentID, name, description)
	if err != nil {
		if notFound(err) {
			return repository.Environment{}, ErrNotFound
		}
		return repository.Environment{}, fmt.Errorf("update environment: %w", err)
	}
	return env, nil
}

func (s *Service) DeleteEnvironment(ctx context.Context, userID, projectID, environmentID string) error {
	if err := s.ownProject(ctx, userID, projectID); err != nil {
		return err
	}

	if err := s.repo.DeleteEnvironment(ctx, projectID, environmentID); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete environment: %w", err)
	}
	return nil
}

// ownEnvironment verifies the caller owns the project and the environment
// belongs to it.
func (s *Service) ownEnvironment(ctx context.Context, userID, projectID, environmentID string) error {
	_, err := s.GetEnvironment(ctx, userID, projectID, environmentID)
	return err
}

func (s *Service) CreateFlag(ctx context.Context, userID, projectID, environmentID string, flag repository.Flag) (repository.Flag, error) {
	if err := s.ownEnvironment(ctx, userID, projectID, environmentID); err != nil {
		return repository.Flag{}, err
	}
	if strings.TrimSpace(flag.Name) == "" {
		return repository.Flag{}, fmt.Errorf("%w: flag name is required", ErrInvalidArgument)
	}
	if err := validateKey(flag.Key); err != nil {
		return repository.Flag{}, err
	}
	if err := validateRollout(flag.RolloutPercentage); err != nil {
		return repository.Flag{}, err
	}

	created, err := s.repo.CreateFlag(ctx, environmentID, flag)
	if err != nil {
		return repository.Flag{}, fmt.Errorf("create flag: %w", err)
	}
	return created, nil
}

func (s *Service) ListFlags(ctx context.Context, userID, projectID, environmentID string) ([]repository.Flag, error) {
	if err := s.ownEnvironment(ctx, userID, projectID, environmentID); err != nil {
		return nil, err
	}

	flags, err := s.repo.ListFlags(ctx, environmentID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	return flags, nil
}

func (s *Service) GetFlag(ctx context.Context, userID, projectID, environmentID, flagID string) (repository.Flag, error) {
	if err := s.ownEnvironment(ctx, userID, projectID, environmentID); err != nil {
		return repository.Flag{}, err
	}

	flag, err := s.repo.GetFlag(ctx, environmentID, flagID)
	if err != nil {
		if notFound(err) {
			return repository.Flag{}, ErrNotFound
		}
		return repository.Flag{}, fmt.Errorf("get flag: %w", err)
	}
	return flag, nil
}

func (s *Service) UpdateFlag(ctx context.Context, userID, projectID, environmentID string, flag repository.Flag) (repository.Flag, error) {
	if err := s.ownEnvironment(ctx, userID, projectID, environmentID); err != nil {
		return repository.Flag{}, err
	}
	if strings.TrimSpace(flag.Name) == "" {
		return repository.Flag{}, fmt.Errorf("%w: flag name is required", ErrInvalidArgument)
	}
	if err := validateRollout(flag.RolloutPercentage); err != nil {
		return repository.Flag{}, err
	}

	updated, err := s.repo.UpdateFlag(ctx, environmentID, flag)
	if err != nil {
		if notFound(err) {
			return repository.Flag{}, ErrNotFound
		}
		return repository.Flag{}, fmt.Errorf("update flag: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteFlag(ctx context.Context, userID, projectID, environmentID, flagID string) error {
	if err := s.ownEnvironment(ctx, userID, projectID, environmentID); err != nil {
		return err
	}

	if err := s.repo.DeleteFlag(ctx, environmentID, flagID); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete flag: %w", err)
	}
	return nil
}

// ownFlag verifies the full ownership chain down to the flag.
func (s *Service) ownFlag(ctx context.Context, userID, projectID, environmentID, flagID string) error {
	_, err := s.GetFlag(ctx, userID, projectID, environmentID, flagID)
	return err
}

func (s *Service) CreateRule(ctx context.Context, userID, projectID, environmentID, flagID string, rule repository.Rule) (repository.Rule, error) {
	if err := s.ownFlag(ctx, userID, projectID, environmentID, flagID); err != nil {
		return repository.Rule{}, err
	}
	if err := validateRule(rule.RuleType, rule.RuleValue); err != nil {
		return repository.Rule{}, err
	}

	created, err := s.repo.CreateRule(ctx, flagID, rule)
	if err != nil {
		return repository.Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return created, nil
}

func (s *Service) ListRules(ctx context.Context, userID, projectID, environmentID, flagID string) ([]repository.Rule, error) {
	if err := s.ownFlag(ctx, userID, projectID, environmentID, flagID); err != nil {
		return nil, err
	}

	rules, err := s.repo.ListRules(ctx, flagID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *Service) GetRule(ctx context.Context, userID, projectID, environmentID, flagID, ruleID string) (repository.Rule, error) {
	if err := s.ownFlag(ctx, userID, projectID, environmentID, flagID); err != nil {
		return repository.Rule{}, err
	}

	rule, err := s.repo.GetRule(ctx, flagID, ruleID)
	if err != nil {
		if notFound(err) {
			return repository.Rule{}, ErrNotFound
		}
		return repository.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// UpdateRule updates a rule's value, enabled state, and priority. The rule
// type is fixed at creation, so the stored type is what gets validated
// against the new value.
func (s *Service) UpdateRule(ctx context.Context, userID, projectID, environmentID, flagID string, rule repository.Rule) (repository.Rule, error) {
	if err := s.ownFlag(ctx, userID, projectID, environmentID, flagID); err != nil {
		return repository.Rule{}, err
	}

	existing, err := s.repo.GetRule(ctx, flagID, rule.ID)
	if err != nil {
		if notFound(err) {
			return repository.Rule{}, ErrNotFound
		}
		return repository.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	if err := validateRule(existing.RuleType, rule.RuleValue); err != nil {
		return repository.Rule{}, err
	}

	updated, err := s.repo.UpdateRule(ctx, flagID, rule)
	if err != nil {
		if notFound(err) {
			return repository.Rule{}, ErrNotFound
		}
		return repository.Rule{}, fmt.Errorf("update rule: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteRule(ctx context.Context, userID, projectID, environmentID, flagID, ruleID string) error {
	if err := s.ownFlag(ctx, userID, projectID, environmentID, flagID); err != nil {
		return err
	}

	if err := s.repo.DeleteRule(ctx, flagID, ruleID); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}
