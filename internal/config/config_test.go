package config

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestLoad_RequiredDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", testSecret)
	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when DATABASE_URL is empty")
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when JWT_SECRET is empty")
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "too-short")
	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail when JWT_SECRET < 32 chars")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("AUTH_RATE_LIMIT", "")
	t.Setenv("MAX_JSON_BODY_SIZE", "")
	t.Setenv("EVAL_AUDIT_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.AuthRateLimit != 10 {
		t.Errorf("AuthRateLimit = %d, want 10", cfg.AuthRateLimit)
	}
	if cfg.MaxJSONBodySize != 1<<20 {
		t.Errorf("MaxJSONBodySize = %d, want %d", cfg.MaxJSONBodySize, 1<<20)
	}
	if cfg.EvalAuditTimeout != 2*time.Second {
		t.Errorf("EvalAuditTimeout = %v, want 2s", cfg.EvalAuditTimeout)
	}
}

func TestLoad_TokenTTL_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_TTL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for invalid TOKEN_TTL")
	}
}

func TestLoad_TokenTTL_Zero(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_TTL", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for zero TOKEN_TTL")
	}
}

func TestLoad_AuthRateLimit_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_RATE_LIMIT", "-3")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for negative AUTH_RATE_LIMIT")
	}
}

func TestLoad_MaxJSONBodySize_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_JSON_BODY_SIZE", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for zero MAX_JSON_BODY_SIZE")
	}
}

func TestLoad_EvalAuditTimeout_Invalid(t *testing.T) {
	setRequired(t)
	t.Setenv("EVAL_AUDIT_TIMEOUT", "-1s")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for negative EVAL_AUDIT_TIMEOUT")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":3000")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("EVAL_AUDIT_TIMEOUT", "500ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q, want :3000", cfg.HTTPAddr)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL = %v, want 1h", cfg.TokenTTL)
	}
	if cfg.EvalAuditTimeout != 500*time.Millisecond {
		t.Errorf("EvalAuditTimeout = %v, want 500ms", cfg.EvalAuditTimeout)
	}
}

func TestEnvOrDefault_EmptyReturnsDefault(t *testing.T) {
	t.Setenv("TEST_KEY", "")
	got := envOrDefault("TEST_KEY", "fallback")
	if got != "fallback" {
		t.Errorf("envOrDefault() = %q, want %q", got, "fallback")
	}
}

func TestEnvOrDefault_WhitespaceReturnsDefault(t *testing.T) {
	t.Setenv("TEST_KEY", "   ")
	got := envOrDefault("TEST_KEY", "fallback")
	if got != "fallback" {
		t.Errorf("envOrDefault() = %q, want %q", got, "fallback")
	}
}

func TestEnvOrDefault_ValueReturnsValue(t *testing.T) {
	t.Setenv("TEST_KEY", " value ")
	got := envOrDefault("TEST_KEY", "value")
	if got != "value" {
		t.Errorf("envOrDefault() = %q, want %q", got, "value")
	}
}
