package core

import (
	"fmt"
	"testing"
)

func BenchmarkEvaluate_NoRules(b *testing.B) {
	flag := FlagSnapshot{Key: "feature-no-rules", Enabled: true}
	ctx := UserContext{UserID: "user-42", UserEmail: "user42@company.com"}

	b.ResetTimer()
	for b.Loop() {
		Evaluate(flag, nil, ctx)
	}
}

func BenchmarkEvaluate_Rollout(b *testing.B) {
	flag := FlagSnapshot{Key: "feature-rollout", Enabled: true, RolloutPercentage: 50}
	ctx := UserContext{UserID: "user-42"}

	b.ResetTimer()
	for b.Loop() {
		Evaluate(flag, nil, ctx)
	}
}

func BenchmarkEvaluate_ManyRules(b *testing.B) {
	rules := make([]RuleSnapshot, 15)
	for i := range rules {
		rules[i] = RuleSnapshot{
			Type:     RuleUserID,
			Value:    fmt.Sprintf("user-%d", i),
			Enabled:  true,
			Priority: i,
		}
	}
	flag := FlagSnapshot{Key: "feature-many-rules", Enabled: true}

	b.Run("MatchHighest", func(b *testing.B) {
		ctx := UserContext{UserID: "user-14"}
		b.ResetTimer()
		for b.Loop() {
			Evaluate(flag, rules, ctx)
		}
	})

	b.Run("MatchLowest", func(b *testing.B) {
		ctx := UserContext{UserID: "user-0"}
		b.ResetTimer()
		for b.Loop() {
			Evaluate(flag, rules, ctx)
		}
	})

	b.Run("NoMatch", func(b *testing.B) {
		ctx := UserContext{UserID: "stranger"}
		b.ResetTimer()
		for b.Loop() {
			Evaluate(flag, rules, ctx)
		}
	})
}

func BenchmarkEvaluateBatch(b *testing.B) {
	flags := make([]FlagSnapshot, 100)
	rulesByFlag := make(map[string][]RuleSnapshot, len(flags))
	for i := range flags {
		key := fmt.Sprintf("flag-%03d", i)
		flags[i] = FlagSnapshot{
			Key:               key,
			Enabled:           i%10 != 0,
			RolloutPercentage: (i * 7) % 100,
		}
		if i%2 == 0 {
			rulesByFlag[key] = []RuleSnapshot{
				{Type: RuleEmailDomain, Value: "@company.com", Enabled: true, Priority: 5},
			}
		}
	}
	ctx := UserContext{UserID: "user-42", UserEmail: "user42@company.com"}

	b.ResetTimer()
	for b.Loop() {
		EvaluateBatch(flags, rulesByFlag, ctx)
	}
}
