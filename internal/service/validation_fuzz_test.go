package service

import (
	"errors"
	"strings"
	"testing"
)

func FuzzValidateKey(f *testing.F) {
	f.Add("new-checkout")
	f.Add("")
	f.Add("UPPER")
	f.Add("with space")
	f.Add(strings.Repeat("a", 65))
	f.Add("emoji-\U0001F600")

	f.Fuzz(func(t *testing.T, key string) {
		err := validateKey(key)
		if err != nil {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("validateKey(%q) error = %v, want wrapped ErrInvalidKey", key, err)
			}
			return
		}

		if key == "" || len(key) > maxKeyLength {
			t.Fatalf("validateKey(%q) accepted an out-of-bounds key", key)
		}
		for _, r := range key {
			ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
			if !ok {
				t.Fatalf("validateKey(%q) accepted forbidden rune %q", key, r)
			}
		}
	})
}

func FuzzValidateRule(f *testing.F) {
	f.Add("user_id", "user-42")
	f.Add("user_email", "a@b.com")
	f.Add("email_domain", "@corp.com")
	f.Add("percent_of_fleet", "50")
	f.Add("user_email", "no-at-sign")

	f.Fuzz(func(t *testing.T, ruleType, ruleValue string) {
		err := validateRule(ruleType, ruleValue)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrInvalidRuleType) && !errors.Is(err, ErrInvalidRuleValue) {
			t.Fatalf("validateRule(%q, %q) error = %v, want a wrapped sentinel", ruleType, ruleValue, err)
		}
	})
}
