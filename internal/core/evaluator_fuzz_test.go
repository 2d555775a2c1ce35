package core

import (
	"strings"
	"testing"
)

func FuzzInRolloutDeterminism(f *testing.F) {
	f.Add("test_flag", "user123", 50)
	f.Add("", "", 0)
	f.Add("flag:with:colons", "user:with:colons", 99)
	f.Add("flag", AnonymousIdentifier, -7)
	f.Add("flag", "u", 1000)

	f.Fuzz(func(t *testing.T, flagKey, identifier string, percentage int) {
		first := InRollout(flagKey, identifier, percentage)
		if InRollout(flagKey, identifier, percentage) != first {
			t.Fatalf("InRollout(%q, %q, %d) is not deterministic", flagKey, identifier, percentage)
		}
		if percentage <= 0 && first {
			t.Fatalf("InRollout(%q, %q, %d) = true, want false for non-positive percentage", flagKey, identifier, percentage)
		}
		if percentage >= 100 && !first {
			t.Fatalf("InRollout(%q, %q, %d) = false, want true for full percentage", flagKey, identifier, percentage)
		}
	})
}

func FuzzEvaluateIsTotal(f *testing.F) {
	f.Add("test_flag", true, 50, "user_id", "user123", true, 10, "user123", "a@b.com")
	f.Add("", false, -1, "email_domain", "@company.com", false, -10, "", "")
	f.Add("k", true, 101, "unknown_type", "", true, 0, "u", "u@company.com")

	f.Fuzz(func(t *testing.T, flagKey string, enabled bool, percentage int,
		ruleType, ruleValue string, ruleEnabled bool, priority int,
		userID, userEmail string) {
		flag := FlagSnapshot{Key: flagKey, Enabled: enabled, RolloutPercentage: percentage}
		rules := []RuleSnapshot{{
			Type:     RuleType(ruleType),
			Value:    ruleValue,
			Enabled:  ruleEnabled,
			Priority: priority,
		}}
		context := UserContext{UserID: userID, UserEmail: userEmail}

		got := Evaluate(flag, rules, context)
		if got.Reason == "" {
			t.Fatalf("Evaluate() produced an empty reason")
		}
		if !enabled && got.Enabled {
			t.Fatalf("Evaluate() enabled a globally disabled flag: %+v", got)
		}
		if !enabled && !strings.Contains(got.Reason, "globally disabled") {
			t.Fatalf("Evaluate() reason %q for a disabled flag", got.Reason)
		}

		again := Evaluate(flag, rules, context)
		if again != got {
			t.Fatalf("Evaluate() is not deterministic: %+v then %+v", got, again)
		}
	})
}
