package config

import (
	"strings"
	"testing"
	"time"
)

func FuzzEnvOrDefault(f *testing.F) {
	f.Add("", ":8080")
	f.Add("  :9090  ", ":8080")

	f.Fuzz(func(t *testing.T, value, fallback string) {
		if strings.ContainsRune(value, '\x00') {
			t.Skip()
		}

		const key = "SWITCHBOARD_TEST_ENV_OR_DEFAULT"
		t.Setenv(key, value)

		got := envOrDefault(key, fallback)
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			if got != fallback {
				t.Fatalf("envOrDefault() = %q, want fallback %q", got, fallback)
			}
			return
		}

		if got != trimmed {
			t.Fatalf("envOrDefault() = %q, want trimmed value %q", got, trimmed)
		}
	})
}

func FuzzLoadTokenTTL(f *testing.F) {
	f.Add("")
	f.Add("24h")
	f.Add("0s")
	f.Add("-1s")
	f.Add("not-a-duration")

	f.Fuzz(func(t *testing.T, tokenTTL string) {
		if strings.ContainsRune(tokenTTL, '\x00') {
			t.Skip()
		}

		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("HTTP_ADDR", "")
		t.Setenv("TOKEN_TTL", tokenTTL)

		cfg, err := Load()
		trimmed := strings.TrimSpace(tokenTTL)
		if trimmed == "" {
			if err != nil {
				t.Fatalf("Load() error = %v, want nil for empty TOKEN_TTL", err)
			}
			if cfg.TokenTTL != defaultTokenTTL {
				t.Fatalf("TokenTTL = %s, want %s", cfg.TokenTTL, defaultTokenTTL)
			}
			return
		}

		parsed, parseErr := time.ParseDuration(trimmed)
		if parseErr != nil || parsed <= 0 {
			if err == nil {
				t.Fatalf("Load() error = nil, want non-nil for TOKEN_TTL=%q", tokenTTL)
			}
			return
		}

		if err != nil {
			t.Fatalf("Load() error = %v, want nil for TOKEN_TTL=%q", err, tokenTTL)
		}
		if cfg.TokenTTL != parsed {
			t.Fatalf("TokenTTL = %s, want %s", cfg.TokenTTL, parsed)
		}
	})
}
