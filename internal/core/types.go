package core

// RuleType identifies how a targeting rule compares its value against the
// user context. The set is closed; anything else is treated as a rule type
// from a newer deploy and never matches.
type RuleType string

const (
	RuleUserID      RuleType = "user_id"
	RuleUserEmail   RuleType = "user_email"
	RuleEmailDomain RuleType = "email_domain"
)

// AnonymousIdentifier is the bucketing identity used when a context carries
// neither a user ID nor an email. All anonymous users share one bucket per
// flag.
const AnonymousIdentifier = "anonymous"

// UserContext is the per-request identity used for rule matching and rollout
// bucketing. Empty strings mean "not provided". Attributes is an open map
// reserved for future rule types; no current rule type reads it.
type UserContext struct {
	UserID     string            `json:"user_id,omitempty"`
	UserEmail  string            `json:"user_email,omitempty"`
	Attributes map[string]string `json:"custom_attributes,omitempty"`
}

// Identifier resolves the identity string fed to the rollout bucketer:
// user ID first, then email, then [AnonymousIdentifier].
func (c UserContext) Identifier() string {
	if c.UserID != "" {
		return c.UserID
	}
	if c.UserEmail != "" {
		return c.UserEmail
	}
	return AnonymousIdentifier
}

// FlagSnapshot is the read-only view of a flag needed for one evaluation.
type FlagSnapshot struct {
	Key               string `json:"key"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rollout_percentage"`
}

// RuleSnapshot is the read-only view of a targeting rule, already scoped to
// one flag. Higher priority rules are checked first; ties keep the order the
// rules were supplied in.
type RuleSnapshot struct {
	Type     RuleType `json:"rule_type"`
	Value    string   `json:"rule_value"`
	Enabled  bool     `json:"enabled"`
	Priority int      `json:"priority"`
}

// Evaluation is the outcome of evaluating one flag for one context.
type Evaluation struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason"`
}
