package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/matt-riley/switchboard/internal/repository"
)

const minPasswordLength = 8

// Register creates a dashboard account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password string) (repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return repository.User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidArgument)
	}
	if len(password) < minPasswordLength {
		return repository.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLength)
	}

	taken, err := s.repo.UserEmailExists(ctx, email)
	if err != nil {
		return repository.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return repository.User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return repository.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, string(hash))
	if err != nil {
		return repository.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies email/password credentials and returns the account.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (repository.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if notFound(err) {
			return repository.User{}, ErrInvalidCredentials
		}
		return repository.User{}, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return repository.User{}, ErrInvalidCredentials
	}

	return user, nil
}
