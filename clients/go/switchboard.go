// Package switchboard provides client interfaces and domain types for the
// switchboard feature flag service.
//
// Use the sub-packages to create transport-specific clients:
//
//	import sbhttp "github.com/matt-riley/switchboard/clients/go/http"
package switchboard

import "context"

// Evaluator resolves every flag in an environment for one user context.
type Evaluator interface {
	Evaluate(ctx context.Context, environment string, user UserContext) (map[string]Result, error)
}

// UserContext carries the identity an evaluation is performed for. Empty
// strings mean "not provided"; a context with neither a user ID nor an email
// is bucketed as anonymous.
type UserContext struct {
	UserID     string            `json:"user_id,omitempty"`
	UserEmail  string            `json:"user_email,omitempty"`
	Attributes map[string]string `json:"custom_attributes,omitempty"`
}

// Result is the outcome of evaluating one flag.
type Result struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}
