package policy

import (
	"context"
	"fmt"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Engine evaluates a boolean policy expression against the verdict
// environment. Implementations are safe for concurrent use and cache
// compiled programs.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Evaluator applies configured policy rules to a verdict. Rules can only
// escalate the verdict toward rejection or manual review; nothing a rule
// does can turn a rejection into an approval.
type Evaluator struct {
	engines map[string]Engine
}

// NewEvaluator creates an evaluator with the expr and CEL engines installed.
func NewEvaluator() *Evaluator {
	ev := &Evaluator{engines: make(map[string]Engine)}
	ev.engines["expr"] = NewExprEngine()
	if celEngine, err := NewCELEngine(); err == nil {
		ev.engines["cel"] = celEngine
	}
	return ev
}

// Apply evaluates every rule against the verdict environment and returns the
// escalated status plus the reasons for each triggered rule. A rule whose
// expression fails to compile or evaluate is reported as an error; rules
// after it still run.
func (ev *Evaluator) Apply(ctx context.Context, rules []schema.PolicyRule, verdict *schema.Verdict) (schema.VerdictStatus, []string, error) {
	status := verdict.Status
	var reasons []string
	var firstErr error

	env := buildEnv(verdict)
	for _, rule := range rules {
		engine, ok := ev.engines[rule.Engine]
		if !ok {
			if firstErr == nil {
				firstErr = schema.NewErrorf(schema.ErrCodeConfigValidation,
					"policy rule %q uses unknown engine %q", rule.Name, rule.Engine)
			}
			continue
		}

		out, err := engine.Evaluate(ctx, rule.Expression, env)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		triggered, ok := out.(bool)
		if !ok {
			if firstErr == nil {
				firstErr = schema.NewErrorf(schema.ErrCodeConfigValidation,
					"policy rule %q returned %T, want bool", rule.Name, out)
			}
			continue
		}
		if !triggered {
			continue
		}

		reasons = append(reasons, fmt.Sprintf("policy rule %q triggered", rule.Name))
		status = escalate(status, rule.Action)
	}
	return status, reasons, firstErr
}

// escalate moves the status strictly toward rejection. Ordering, weakest to
// strongest: APPROVED < MANUAL_REVIEW < REJECTED. The infrastructure FAILED
// verdict is never touched by policy.
func escalate(current schema.VerdictStatus, action string) schema.VerdictStatus {
	if current == schema.VerdictFailed {
		return current
	}
	switch action {
	case "reject":
		return schema.VerdictRejected
	case "review":
		if current == schema.VerdictRejected {
			return current
		}
		return schema.VerdictManualReview
	}
	return current
}

// buildEnv exposes the verdict to rule expressions as plain maps:
//
//	verdict: aggregated status string
//	passed, failed, review, errors, total: outcome counters
//	checks: map of check name to its outcome {status, reason}
func buildEnv(verdict *schema.Verdict) map[string]any {
	checks := make(map[string]any, len(verdict.CheckResults))
	var failed, review, errCount int
	for _, o := range verdict.CheckResults {
		checks[o.Check] = map[string]any{
			"status": string(o.Status),
			"reason": o.Reason,
		}
		switch o.Status {
		case schema.StatusFailed:
			failed++
		case schema.StatusNeedsReview:
			review++
		case schema.StatusError, schema.StatusTimeout:
			errCount++
		}
	}

	return map[string]any{
		"verdict": string(verdict.Status),
		"passed":  verdict.ChecksPassed,
		"failed":  failed,
		"review":  review,
		"errors":  errCount,
		"total":   verdict.TotalChecks,
		"checks":  checks,
	}
}
