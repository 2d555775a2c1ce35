package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	errMissingAuthorizationHeader = errors.New("missing authorization header")
	errInvalidAuthorizationHeader = errors.New("invalid authorization header")
)

// TokenValidator validates a dashboard bearer token and returns the user ID
// it belongs to.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// SDKKeyValidator resolves an SDK key to the project ID it belongs to.
type SDKKeyValidator interface {
	ValidateSDKKey(ctx context.Context, sdkKey string) (string, error)
}

// AuthOption configures optional auth middleware parameters.
type AuthOption func(*authConfig)

type authConfig struct {
	onFailure   func()
	rateLimiter *RateLimiter
}

// WithOnAuthFailure registers a callback invoked on every authentication
// failure (e.g. to increment a Prometheus counter).
func WithOnAuthFailure(fn func()) AuthOption {
	return func(c *authConfig) { c.onFailure = fn }
}

// WithRateLimiter attaches a per-IP rate limiter that throttles repeated
// authentication failures.
func WithRateLimiter(rl *RateLimiter) AuthOption {
	return func(c *authConfig) { c.rateLimiter = rl }
}

// JWTAuthMiddleware enforces bearer-token auth for the management API. On
// success the authenticated user ID is stored in the request context.
func JWTAuthMiddleware(validator TokenValidator, opts ...AuthOption) func(http.Handler) http.Handler {
	cfg := authConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authorizeBearer(r.Header.Get("Authorization"), validator)
			if err != nil {
				if denied := cfg.recordFailure(w, r); denied {
					return
				}
				writeHTTPUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContextWithUserID(r.Context(), userID)))
		})
	}
}

// SDKKeyMiddleware enforces X-SDK-Key auth for the SDK API. On success the
// resolved project ID is stored in the request context.
func SDKKeyMiddleware(validator SDKKeyValidator, opts ...AuthOption) func(http.Handler) http.Handler {
	cfg := authConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sdkKey := strings.TrimSpace(r.Header.Get("X-SDK-Key"))
			if sdkKey == "" || validator == nil {
				if denied := cfg.recordFailure(w, r); denied {
					return
				}
				http.Error(w, "missing X-SDK-Key header", http.StatusUnauthorized)
				return
			}

			projectID, err := validator.ValidateSDKKey(r.Context(), sdkKey)
			if err != nil || strings.TrimSpace(projectID) == "" {
				if denied := cfg.recordFailure(w, r); denied {
					return
				}
				http.Error(w, "invalid SDK key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithProjectID(r.Context(), projectID)))
		})
	}
}

// recordFailure runs the failure callback and rate limiter. It reports true
// if the request was already rejected with 429.
func (c *authConfig) recordFailure(w http.ResponseWriter, r *http.Request) bool {
	if c.onFailure != nil {
		c.onFailure()
	}
	if c.rateLimiter != nil {
		ip := ExtractIP(r.RemoteAddr)
		if !c.rateLimiter.RecordFailureAndAllow(ip) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return true
		}
	}
	return false
}

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	projectIDKey contextKey = "project_id"
)

// UserIDFromContext retrieves the authenticated dashboard user ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// NewContextWithUserID returns a new context carrying the given user ID.
func NewContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// ProjectIDFromContext retrieves the SDK-authenticated project ID.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(projectIDKey).(string)
	return id, ok
}

// NewContextWithProjectID returns a new context carrying the given project ID.
func NewContextWithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectIDKey, projectID)
}

func authorizeBearer(authorizationHeader string, validator TokenValidator) (string, error) {
	if validator == nil {
		return "", errors.New("token validator is nil")
	}
	if strings.TrimSpace(authorizationHeader) == "" {
		return "", errMissingAuthorizationHeader
	}

	tokenString, err := parseBearerToken(authorizationHeader)
	if err != nil {
		return "", err
	}
	userID, err := validator.Validate(tokenString)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" {
		return "", errInvalidAuthorizationHeader
	}
	return userID, nil
}

func parseBearerToken(authorizationHeader string) (string, error) {
	parts := strings.Fields(authorizationHeader)
	if len(parts) != 2 {
		return "", errInvalidAuthorizationHeader
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", errInvalidAuthorizationHeader
	}
	if parts[1] == "" {
		return "", errInvalidAuthorizationHeader
	}

	return parts[1], nil
}

func writeHTTPUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
