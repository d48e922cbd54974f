package review

import (
	"testing"

	reactiveEngine "github.com/c360studio/semstreams/processor/reactive"

	"github.com/c360studio/clausereview/store"
	"github.com/stretchr/testify/require"
)

// TestGraph_Definition walks the declared workflow, checking the
// Definition's id, state bucket, iteration cap, and the exact rule set
// agree with what graph's doc comment promises and what dispatchNode's
// node switch in machine.go actually handles. A rule renamed or dropped
// here without a matching dispatchNode change should fail this test.
func TestGraph_Definition(t *testing.T) {
	cfg := DefaultConfig()
	def := graph(cfg)

	require.Equal(t, "clause-review", def.ID)
	require.Equal(t, store.BucketSnapshots, def.StateBucket)
	require.Equal(t, cfg.ClauseRetryLimit, def.MaxIterations)

	wantRules := []string{
		"setup-to-plan",
		"plan-to-clause-context",
		"clause-context-to-analyze",
		"analyze-to-validate",
		"validate-strategy-pass",
		"validate-strategy-retry",
		"validate-strategy-exhausted",
		"generate-diffs-to-approval",
		"approval-to-save-clause",
		"save-clause-regenerate",
		"save-clause-advance",
		"next-clause-to-context",
		"next-clause-to-finalize",
	}
	require.Len(t, def.Rules, len(wantRules))
	for i, want := range wantRules {
		require.Equal(t, want, def.Rules[i].ID, "rule[%d]", i)
	}
}

func TestWithinRetryLimit(t *testing.T) {
	require.True(t, withinRetryLimit(0, 2))
	require.True(t, withinRetryLimit(1, 2))
	require.False(t, withinRetryLimit(2, 2))
	require.False(t, withinRetryLimit(3, 2))
}

func TestChecklistExhausted(t *testing.T) {
	cond := checklistExhausted()

	exhausted := &reviewState{ClauseCursor: 2, PlanLen: 2}
	require.True(t, cond(&reactiveEngine.RuleContext{State: exhausted}))

	remaining := &reviewState{ClauseCursor: 1, PlanLen: 2}
	require.False(t, cond(&reactiveEngine.RuleContext{State: remaining}))
}
