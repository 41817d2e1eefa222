package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

func approvedVerdict() *schema.Verdict {
	return &schema.Verdict{
		Status:       schema.VerdictApproved,
		ChecksPassed: 3,
		TotalChecks:  4,
		CheckResults: []schema.Outcome{
			{Check: "blurriness", Status: schema.StatusPassed},
			{Check: "lighting", Status: schema.StatusPassed},
			{Check: "background", Status: schema.StatusPassed},
			{Check: "accessories", Status: schema.StatusNeedsReview, Reason: "glasses detected"},
		},
	}
}

func TestApply_NoRules(t *testing.T) {
	ev := NewEvaluator()
	status, reasons, err := ev.Apply(context.Background(), nil, approvedVerdict())
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictApproved, status)
	assert.Empty(t, reasons)
}

func TestApply_ExprRuleEscalatesToReview(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{Name: "review-on-advisory", Engine: "expr", Expression: "review > 0", Action: "review"},
	}

	status, reasons, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictManualReview, status)
	require.Len(t, reasons, 1)
}

func TestApply_CELRuleRejects(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{Name: "strict", Engine: "cel", Expression: "passed < total", Action: "reject"},
	}

	status, _, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictRejected, status)
}

func TestApply_ExprChecksMapAccess(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{
			Name:       "accessory-review",
			Engine:     "expr",
			Expression: `checks["accessories"].status == "NEEDS_REVIEW"`,
			Action:     "review",
		},
	}

	status, _, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictManualReview, status)
}

func TestApply_UntriggeredRuleLeavesVerdict(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{Name: "never", Engine: "expr", Expression: "failed > 10", Action: "reject"},
	}

	status, reasons, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictApproved, status)
	assert.Empty(t, reasons)
}

func TestApply_ReviewNeverDowngradesRejection(t *testing.T) {
	ev := NewEvaluator()
	verdict := approvedVerdict()
	verdict.Status = schema.VerdictRejected

	rules := []schema.PolicyRule{
		{Name: "soften", Engine: "expr", Expression: "true", Action: "review"},
	}

	status, _, err := ev.Apply(context.Background(), rules, verdict)
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictRejected, status)
}

func TestApply_InfrastructureFailureIsUntouchable(t *testing.T) {
	ev := NewEvaluator()
	verdict := approvedVerdict()
	verdict.Status = schema.VerdictFailed

	rules := []schema.PolicyRule{
		{Name: "reject-all", Engine: "expr", Expression: "true", Action: "reject"},
	}

	status, _, err := ev.Apply(context.Background(), rules, verdict)
	require.NoError(t, err)
	assert.Equal(t, schema.VerdictFailed, status)
}

func TestApply_BadExpressionReportsErrorAndContinues(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{Name: "broken", Engine: "expr", Expression: "((", Action: "reject"},
		{Name: "working", Engine: "expr", Expression: "passed > 0", Action: "review"},
	}

	status, reasons, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.Error(t, err)
	assert.Equal(t, schema.VerdictManualReview, status)
	require.Len(t, reasons, 1)
}

func TestApply_UnknownEngine(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{Name: "lua", Engine: "lua", Expression: "true", Action: "reject"},
	}

	status, _, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.Error(t, err)
	assert.Equal(t, schema.VerdictApproved, status)
}

func TestApply_NonBoolResult(t *testing.T) {
	ev := NewEvaluator()
	rules := []schema.PolicyRule{
		{Name: "numeric", Engine: "expr", Expression: "passed + 1", Action: "reject"},
	}

	status, _, err := ev.Apply(context.Background(), rules, approvedVerdict())
	require.Error(t, err)
	assert.Equal(t, schema.VerdictApproved, status)
}

func TestExprEngine_CachesPrograms(t *testing.T) {
	e := NewExprEngine()
	data := map[string]any{"passed": 1}

	for i := 0; i < 3; i++ {
		out, err := e.Evaluate(context.Background(), "passed > 0", data)
		require.NoError(t, err)
		assert.Equal(t, true, out)
	}
	assert.Len(t, e.cache, 1)
}

func TestCELEngine_MissingKeysDefault(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	out, err := e.Evaluate(context.Background(), "failed == 0 && total == 0", nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}
