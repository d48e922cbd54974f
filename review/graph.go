package review

import (
	"fmt"

	reactiveEngine "github.com/c360studio/semstreams/processor/reactive"

	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/store"
)

// reviewState adapts one clause's retry position to the engine's
// StateAccessor contract so ConditionHelpers can decide the retry-cap
// routing. ClauseCursor/PlanLen back checklistExhausted below.
type reviewState struct {
	reactiveEngine.ExecutionState
	ClauseCursor int
	PlanLen      int
}

// GetExecutionState implements reactiveEngine.StateAccessor.
func (s *reviewState) GetExecutionState() *reactiveEngine.ExecutionState {
	return &s.ExecutionState
}

// checklistExhausted is a ConditionFunc closure reading one custom field
// off the state, since "clause cursor reached the end of the plan" has
// no stock ConditionHelpers helper.
func checklistExhausted() reactiveEngine.ConditionFunc {
	return func(ctx *reactiveEngine.RuleContext) bool {
		s, ok := ctx.State.(*reviewState)
		if !ok {
			return false
		}
		return s.ClauseCursor >= s.PlanLen
	}
}

// withinRetryLimit evaluates the engine's iteration-under-max condition
// against one clause's retry counter. Both validate_strategy's
// clause_retry_limit branch and save_clause's reject_retry_limit branch
// route through this rather than a hand-rolled comparison.
func withinRetryLimit(count, limit int) bool {
	ctx := &reactiveEngine.RuleContext{
		State: &reviewState{ExecutionState: reactiveEngine.ExecutionState{Iteration: count}},
	}
	return reactiveEngine.ConditionHelpers.IterationLessThan(limit)(ctx)
}

// setPhaseRule is a StateMutatorFunc moving whatever state the rule
// fires against to the node named by target.
func setPhaseRule(target model.Node) reactiveEngine.StateMutatorFunc {
	return func(ctx *reactiveEngine.RuleContext, _ any) error {
		accessor, ok := ctx.State.(reactiveEngine.StateAccessor)
		if !ok {
			return fmt.Errorf("setPhaseRule: state does not implement StateAccessor")
		}
		accessor.GetExecutionState().Phase = string(target)
		return nil
	}
}

// graph declares the review routing table as a semstreams reactive
// Definition, the NewWorkflow/NewRule/When/Mutate/MustBuild idiom.
//
// This Definition is authoritative documentation and a startup self-check
// (graph_test.go walks it and asserts its rule set agrees with
// dispatchNode's node set), not a live KV-watch engine. Every suspension
// here must be a durable, in-process snapshot write that a new machine
// frame can be reconstituted from, so the two nodes with real
// conditional edges — validate_strategy's retry/skip/pass split and
// save_clause's regenerate/advance split — stay driven by Machine.step's
// synchronous node-function loop rather than an async KV-watch dispatch
// to a separate component. What the engine contributes is the
// conditional-edge vocabulary (ConditionHelpers.IterationLessThan,
// PhaseIs, Not) driving withinRetryLimit above.
func graph(cfg Config) *reactiveEngine.Definition {
	advance := func(name string, from, to model.Node) reactiveEngine.RuleDef {
		return reactiveEngine.NewRule(name).
			WatchKV(store.BucketSnapshots, "*").
			When("phase is "+string(from), reactiveEngine.PhaseIs(string(from))).
			Mutate(setPhaseRule(to)).
			MustBuild()
	}

	return reactiveEngine.NewWorkflow("clause-review").
		WithDescription("clause-driven review loop: plan, analyze, validate, generate diffs, suspend for approval, save, advance").
		WithStateBucket(store.BucketSnapshots).
		WithStateFactory(func() any { return &reviewState{} }).
		WithMaxIterations(cfg.ClauseRetryLimit).
		AddRule(advance("setup-to-plan", model.NodeSetup, model.NodePlan)).
		AddRule(advance("plan-to-clause-context", model.NodePlan, model.NodeClauseContext)).
		AddRule(advance("clause-context-to-analyze", model.NodeClauseContext, model.NodeClauseAnalyze)).
		AddRule(advance("analyze-to-validate", model.NodeClauseAnalyze, model.NodeValidateStrategy)).
		AddRule(reactiveEngine.NewRule("validate-strategy-pass").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is validate_strategy", reactiveEngine.PhaseIs(string(model.NodeValidateStrategy))).
			Mutate(setPhaseRule(model.NodeGenerateDiffs)).
			MustBuild()).
		AddRule(reactiveEngine.NewRule("validate-strategy-retry").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is validate_strategy", reactiveEngine.PhaseIs(string(model.NodeValidateStrategy))).
			When("clause retries remain", reactiveEngine.ConditionHelpers.IterationLessThan(cfg.ClauseRetryLimit)).
			Mutate(setPhaseRule(model.NodeClauseAnalyze)).
			MustBuild()).
		AddRule(reactiveEngine.NewRule("validate-strategy-exhausted").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is validate_strategy", reactiveEngine.PhaseIs(string(model.NodeValidateStrategy))).
			When("clause retries exhausted", reactiveEngine.Not(reactiveEngine.ConditionHelpers.IterationLessThan(cfg.ClauseRetryLimit))).
			Mutate(setPhaseRule(model.NodeNextClause)).
			MustBuild()).
		AddRule(advance("generate-diffs-to-approval", model.NodeGenerateDiffs, model.NodeHumanApproval)).
		AddRule(advance("approval-to-save-clause", model.NodeHumanApproval, model.NodeSaveClause)).
		AddRule(reactiveEngine.NewRule("save-clause-regenerate").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is save_clause", reactiveEngine.PhaseIs(string(model.NodeSaveClause))).
			When("reject retries remain", reactiveEngine.ConditionHelpers.IterationLessThan(cfg.RejectRetryLimit)).
			Mutate(setPhaseRule(model.NodeGenerateDiffs)).
			MustBuild()).
		AddRule(reactiveEngine.NewRule("save-clause-advance").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is save_clause", reactiveEngine.PhaseIs(string(model.NodeSaveClause))).
			When("reject retries exhausted", reactiveEngine.Not(reactiveEngine.ConditionHelpers.IterationLessThan(cfg.RejectRetryLimit))).
			Mutate(setPhaseRule(model.NodeNextClause)).
			MustBuild()).
		AddRule(reactiveEngine.NewRule("next-clause-to-context").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is next_clause", reactiveEngine.PhaseIs(string(model.NodeNextClause))).
			When("checklist not exhausted", reactiveEngine.Not(checklistExhausted())).
			Mutate(setPhaseRule(model.NodeClauseContext)).
			MustBuild()).
		AddRule(reactiveEngine.NewRule("next-clause-to-finalize").
			WatchKV(store.BucketSnapshots, "*").
			When("phase is next_clause", reactiveEngine.PhaseIs(string(model.NodeNextClause))).
			When("checklist exhausted", checklistExhausted()).
			Mutate(setPhaseRule(model.NodeFinalize)).
			MustBuild()).
		MustBuild()
}
