// Package config loads server configuration from environment variables.
//
// Required variables:
//   - DATABASE_URL: PostgreSQL connection string.
//   - JWT_SECRET: HMAC signing key for bearer tokens, at least 32 characters.
//
// Optional variables:
//   - HTTP_ADDR: listen address for the HTTP server (default ":8080").
//   - LOG_LEVEL: minimum log level (default "info").
//   - TOKEN_TTL: bearer token lifetime (default "24h", must be > 0 if set).
//   - AUTH_RATE_LIMIT: max failed auth attempts per IP per minute
//     (default "10", must be > 0 if set).
//   - MAX_JSON_BODY_SIZE: max HTTP JSON request body size in bytes
//     (default "1048576", must be > 0 if set).
//   - EVAL_AUDIT_TIMEOUT: deadline for best-effort evaluation audit writes
//     (default "2s", must be > 0 if set).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr               = ":8080"
	defaultTokenTTL               = 24 * time.Hour
	defaultAuthRateLimit          = 10
	defaultMaxJSONBodySize  int64 = 1 << 20 // 1MB
	defaultEvalAuditTimeout       = 2 * time.Second

	minJWTSecretLength = 32
)

// Config holds the runtime configuration for the switchboard server.
type Config struct {
	DatabaseURL      string
	HTTPAddr         string
	LogLevel         string
	JWTSecret        string
	TokenTTL         time.Duration
	AuthRateLimit    int
	MaxJSONBodySize  int64
	EvalAuditTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where
// appropriate. It returns an error if required variables are missing or if
// optional values fail validation.
func Load() (Config, error) {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if len(jwtSecret) < minJWTSecretLength {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}

	tokenTTL := defaultTokenTTL
	if value := strings.TrimSpace(os.Getenv("TOKEN_TTL")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse TOKEN_TTL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("TOKEN_TTL must be > 0")
		}
		tokenTTL = parsed
	}

	authRateLimit := defaultAuthRateLimit
	if value := strings.TrimSpace(os.Getenv("AUTH_RATE_LIMIT")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse AUTH_RATE_LIMIT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("AUTH_RATE_LIMIT must be > 0")
		}
		authRateLimit = parsed
	}

	maxJSONBodySize := defaultMaxJSONBodySize
	if v := strings.TrimSpace(os.Getenv("MAX_JSON_BODY_SIZE")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return Config{}, errors.New("MAX_JSON_BODY_SIZE must be a positive integer (bytes)")
		}
		maxJSONBodySize = n
	}

	evalAuditTimeout := defaultEvalAuditTimeout
	if v := strings.TrimSpace(os.Getenv("EVAL_AUDIT_TIMEOUT")); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse EVAL_AUDIT_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("EVAL_AUDIT_TIMEOUT must be > 0")
		}
		evalAuditTimeout = parsed
	}

	return Config{
		DatabaseURL:      databaseURL,
		HTTPAddr:         envOrDefault("HTTP_ADDR", defaultHTTPAddr),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		JWTSecret:        jwtSecret,
		TokenTTL:         tokenTTL,
		AuthRateLimit:    authRateLimit,
		MaxJSONBodySize:  maxJSONBodySize,
		EvalAuditTimeout: evalAuditTimeout,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
