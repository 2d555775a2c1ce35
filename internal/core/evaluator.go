package core

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Evaluate decides whether flag is enabled for context. The decision walks a
// fixed order of checks, each of which may terminate evaluation:
//
//  1. a globally disabled flag is off for everyone;
//  2. the highest-priority matching rule turns the flag on;
//  3. a rollout percentage > 0 buckets the user in or out;
//  4. otherwise the flag is on.
//
// Evaluate is a pure function of its inputs and never fails: unknown rule
// types, missing context fields, and out-of-range percentages all have
// defined non-error outcomes.
func Evaluate(flag FlagSnapshot, rules []RuleSnapshot, context UserContext) Evaluation {
	if !flag.Enabled {
		return Evaluation{Enabled: false, Reason: "Flag is globally disabled"}
	}

	if rule, ok := matchRules(rules, context); ok {
		// A matched rule can only enable the flag; a rule's own enabled
		// flag gates participation, not the outcome.
		return Evaluation{
			Enabled: true,
			Reason:  fmt.Sprintf("Matched %s rule: %s", rule.Type, rule.Value),
		}
	}

	if flag.RolloutPercentage > 0 {
		if InRollout(flag.Key, context.Identifier(), flag.RolloutPercentage) {
			return Evaluation{
				Enabled: true,
				Reason:  fmt.Sprintf("User in %d%% rollout", flag.RolloutPercentage),
			}
		}
		return Evaluation{
			Enabled: false,
			Reason:  fmt.Sprintf("User not in %d%% rollout", flag.RolloutPercentage),
		}
	}

	return Evaluation{Enabled: true, Reason: "Flag enabled globally, no specific rules applied"}
}

// EvaluateBatch evaluates every flag in flags against one context, looking up
// each flag's rules in rulesByFlag by flag key. Flags are independent, so the
// result for each key is identical to calling [Evaluate] on it alone.
func EvaluateBatch(flags []FlagSnapshot, rulesByFlag map[string][]RuleSnapshot, context UserContext) map[string]Evaluation {
	results := make(map[string]Evaluation, len(flags))

	for _, flag := range flags {
		results[flag.Key] = Evaluate(flag, rulesByFlag[flag.Key], context)
	}

	return results
}

// matchRules returns the highest-priority enabled rule that matches context.
// Equal priorities keep their input order; scanning stops at the first match.
func matchRules(rules []RuleSnapshot, context UserContext) (RuleSnapshot, bool) {
	if len(rules) == 0 {
		return RuleSnapshot{}, false
	}

	sorted := make([]RuleSnapshot, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for _, rule := range sorted {
		if !rule.Enabled {
			continue
		}
		if ruleMatches(rule, context) {
			return rule, true
		}
	}

	return RuleSnapshot{}, false
}

func ruleMatches(rule RuleSnapshot, context UserContext) bool {
	switch rule.Type {
	case RuleUserID:
		return context.UserID != "" && context.UserID == rule.Value
	case RuleUserEmail:
		return context.UserEmail != "" && context.UserEmail == rule.Value
	case RuleEmailDomain:
		// Values are expected to carry a leading "@" (enforced at
		// authoring time, not here).
		return context.UserEmail != "" && strings.HasSuffix(context.UserEmail, rule.Value)
	default:
		// Unknown rule type, likely from a newer deploy. Never matches.
		return false
	}
}

// InRollout reports whether userIdentifier falls inside a percentage rollout
// of flagKey. Percentages at or below 0 always exclude; at or above 100
// always include. In between, the user's bucket is the 64-bit FNV-1a hash of
// "<flagKey>:<userIdentifier>" mod 100, and the user is in the rollout iff
// bucket < percentage.
//
// FNV-1a is fixed deliberately: the bucket assignment must be reproducible
// across restarts, hosts, and independent client implementations.
func InRollout(flagKey, userIdentifier string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= 100 {
		return true
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(flagKey))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(userIdentifier))

	return h.Sum64()%100 < uint64(percentage)
}
