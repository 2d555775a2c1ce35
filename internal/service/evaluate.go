package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/matt-riley/switchboard/internal/core"
	"github.com/matt-riley/switchboard/internal/repository"
)

// Evaluate decides every flag in the named environment for one user context.
// projectID comes from SDK-key authentication, environmentKey from the
// request body. The returned map is keyed by flag key.
//
// Evaluation results are recorded to the audit trail best-effort: a failed
// write is logged and counted but never fails the evaluation.
func (s *Service) Evaluate(ctx context.Context, projectID, environmentKey string, userContext core.UserContext) (map[string]core.Evaluation, error) {
	env, err := s.repo.GetEnvironmentByKey(ctx, projectID, environmentKey)
	if err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get environment: %w", err)
	}

	flags, err := s.repo.ListFlags(ctx, env.ID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	snapshots := make([]core.FlagSnapshot, 0, len(flags))
	flagIDs := make([]string, 0, len(flags))
	idByKey := make(map[string]string, len(flags))
	for _, flag := range flags {
		snapshots = append(snapshots, core.FlagSnapshot{
			Key:               flag.Key,
			Enabled:           flag.Enabled,
			RolloutPercentage: flag.RolloutPercentage,
		})
		flagIDs = append(flagIDs, flag.ID)
		idByKey[flag.Key] = flag.ID
	}

	rulesByFlag, err := s.repo.ListEnabledRulesForFlags(ctx, flagIDs)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rulesByKey := make(map[string][]core.RuleSnapshot, len(rulesByFlag))
	for _, flag := range flags {
		for _, rule := range rulesByFlag[flag.ID] {
			rulesByKey[flag.Key] = append(rulesByKey[flag.Key], core.RuleSnapshot{
				Type:     core.RuleType(rule.RuleType),
				Value:    rule.RuleValue,
				Enabled:  rule.Enabled,
				Priority: rule.Priority,
			})
		}
	}

	results := core.EvaluateBatch(snapshots, rulesByKey, userContext)

	identifier := userContext.Identifier()
	audits := make([]repository.Evaluation, 0, len(results))
	for key, result := range results {
		if s.onEvaluation != nil {
			s.onEvaluation(result.Enabled)
		}
		audits = append(audits, repository.Evaluation{
			FlagID:         idByKey[key],
			UserIdentifier: identifier,
			Result:         result.Enabled,
		})
	}
	s.recordEvaluationsBestEffort(ctx, audits)

	return results, nil
}

// recordEvaluationsBestEffort writes audit records on a detached context so
// the write survives the request ending, bounded by the audit timeout.
func (s *Service) recordEvaluationsBestEffort(ctx context.Context, audits []repository.Evaluation) {
	if len(audits) == 0 {
		return
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()

	if err := s.repo.InsertEvaluations(auditCtx, audits); err != nil {
		s.logger.WarnContext(ctx, "evaluation audit write failed",
			slog.Int("records", len(audits)),
			slog.String("error", err.Error()),
		)
		if s.onAuditFailure != nil {
			s.onAuditFailure()
		}
	}
}
