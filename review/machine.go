// Package review implements the clause-driven review state machine: it
// plans work from a domain checklist, dispatches skills through the
// skill registry, accumulates findings, proposes diffs, suspends for
// human approval, and resumes with injected decisions. Every node
// boundary writes a durable snapshot, so a machine frame is always
// reconstituted from storage rather than from a paused stack.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	reactiveEngine "github.com/c360studio/semstreams/processor/reactive"

	"github.com/c360studio/clausereview/metrics"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/skill"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
	"github.com/c360studio/clausereview/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Deps bundles every collaborator the machine needs; components never
// construct their own logger, store, or dispatcher.
type Deps struct {
	Store   *store.Store
	Events  *streamevt.Stream
	Skills  *skill.Dispatcher
	Domains DomainResolver
	Blobs   model.BlobStore
	Logger  *slog.Logger
	Config  Config
	Metrics *metrics.Metrics
}

// DomainResolver is the subset of domainplugin.Registry the machine needs,
// kept as an interface so tests can substitute a fake without a live
// dispatcher wiring.
type DomainResolver interface {
	Checklist(domainID string) []model.ReviewChecklistItem
	Baseline(domainID, clauseID string) (string, bool)
}

// Machine drives one or more tasks through the review node graph. It
// holds no per-task state itself — all state lives in
// the persisted model.MachineSnapshot — so one Machine value is safe to
// share across goroutines advancing different tasks concurrently.
type Machine struct {
	deps  Deps
	graph *reactiveEngine.Definition
}

// New builds a Machine over the given dependencies.
func New(deps Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.ClauseRetryLimit == 0 && deps.Config.RejectRetryLimit == 0 {
		deps.Config = DefaultConfig()
	}
	return &Machine{deps: deps, graph: graph(deps.Config)}
}

// Graph returns the node routing table declared in graph.go as a
// semstreams reactive Definition: the directed graph of nodes with
// conditional edges, which graph_test.go walks against dispatchNode's
// switch as a startup self-check.
func (m *Machine) Graph() *reactiveEngine.Definition {
	return m.graph
}

// nodeResult is what every node function returns: the (possibly advanced)
// snapshot, whether the machine should suspend after persisting it, and
// an error that fails the task.
type nodeResult struct {
	snapshot *model.MachineSnapshot
	suspend  bool
	err      error
}

// Start begins a fresh review run for a task that has just transitioned
// into PhaseReviewing. It runs synchronously
// to the next suspension point or terminal node; callers that want
// fire-and-forget execution should invoke it from their own goroutine —
// the machine itself makes no concurrency decisions about its caller.
func (m *Machine) Start(ctx context.Context, taskID string) error {
	snap := &model.MachineSnapshot{
		TaskID: taskID,
		Node:   model.NodeSetup,
	}
	return m.drive(ctx, taskID, snap, nil)
}

// Recover reinstantiates a machine frame from the latest persisted
// snapshot and continues. It refuses to
// recover a task parked at save_clause — that means it is suspended
// awaiting human decisions, which only pkg/approval may supply.
func (m *Machine) Recover(ctx context.Context, taskID string) error {
	snap, err := m.deps.Store.LatestSnapshot(ctx, taskID)
	if err != nil {
		return fmt.Errorf("review: recover %s: %w", taskID, err)
	}
	if snap.Node == model.NodeSaveClause {
		return ErrAwaitingApproval
	}
	return m.drive(ctx, taskID, snap, nil)
}

// ContinueFromSaveClause implements approval.Resumer: it loads the latest
// snapshot, injects the decision map the approval coordinator collected,
// and resumes at save_clause.
func (m *Machine) ContinueFromSaveClause(ctx context.Context, taskID string, decisions map[string]model.Decision) error {
	snap, err := m.deps.Store.LatestSnapshot(ctx, taskID)
	if err != nil {
		return fmt.Errorf("review: resume %s: %w", taskID, err)
	}
	if snap.Node != model.NodeSaveClause {
		return fmt.Errorf("review: resume %s: expected node %s, snapshot is at %s", taskID, model.NodeSaveClause, snap.Node)
	}
	return m.drive(ctx, taskID, snap, decisions)
}

// drive runs nodes in sequence, persisting a new snapshot after every
// boundary, until the machine suspends, reaches finalize, or errors.
func (m *Machine) drive(ctx context.Context, taskID string, snap *model.MachineSnapshot, injected map[string]model.Decision) error {
	if len(injected) > 0 {
		if snap.Decisions == nil {
			snap.Decisions = make(map[string]model.Decision, len(injected))
		}
		for diffID, d := range injected {
			snap.Decisions[diffID] = d
		}
	}

	for {
		if cancelled, err := m.taskCancelled(ctx, taskID); err != nil {
			return err
		} else if cancelled {
			// The current node already finished and wrote its
			// snapshot on the prior iteration; the
			// cancel itself moved the task to failed out of band, so this
			// loop simply stops advancing.
			return nil
		}

		res := m.step(ctx, taskID, snap)
		if res.err != nil {
			m.failTask(ctx, taskID, snap, res.err)
			return res.err
		}
		snap = res.snapshot

		snap.Seq++
		snap.UpdatedAt = time.Now()
		if err := m.deps.Store.PutSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("review: persist snapshot for %s: %w", taskID, err)
		}
		if err := m.deps.Store.SetLatestSnapshotSeq(ctx, taskID, snap.Seq); err != nil {
			return fmt.Errorf("review: record latest snapshot seq for %s: %w", taskID, err)
		}

		if res.suspend || snap.Node == model.NodeFinalize {
			return nil
		}
	}
}

func (m *Machine) taskCancelled(ctx context.Context, taskID string) (bool, error) {
	task, err := m.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return false, fmt.Errorf("review: load task %s: %w", taskID, err)
	}
	return task.Phase == model.PhaseFailed, nil
}

// step dispatches one node by name. Every case returns through nodeResult
// so drive's persistence and suspension handling stays in one place. Each
// call is wrapped in a trace span and, when configured, a node-transition
// counter.
func (m *Machine) step(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	ctx, span := telemetry.StartSpan(ctx, "review.node."+string(snap.Node),
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.Int("clause.cursor", snap.ClauseCursor),
		),
	)
	defer span.End()

	if m.deps.Metrics != nil {
		m.deps.Metrics.NodeTransitions.WithLabelValues(string(snap.Node)).Inc()
	}

	res := m.dispatchNode(ctx, taskID, snap)
	telemetry.SetSpanError(span, res.err)
	if res.err == nil {
		telemetry.SetSpanOK(span)
	}
	return res
}

// dispatchNode is the actual node switch, separated from step so the
// tracing/metrics wrapper above stays a thin shell around it.
func (m *Machine) dispatchNode(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	switch snap.Node {
	case model.NodeSetup:
		return m.nodeSetup(ctx, taskID, snap)
	case model.NodePlan:
		return m.nodePlan(ctx, taskID, snap)
	case model.NodeClauseContext:
		return m.nodeClauseContext(ctx, taskID, snap)
	case model.NodeClauseAnalyze:
		return m.nodeClauseAnalyze(ctx, taskID, snap)
	case model.NodeValidateStrategy:
		return m.nodeValidateStrategy(ctx, taskID, snap)
	case model.NodeGenerateDiffs:
		return m.nodeGenerateDiffs(ctx, taskID, snap)
	case model.NodeHumanApproval:
		return m.nodeHumanApproval(ctx, taskID, snap)
	case model.NodeSaveClause:
		return m.nodeSaveClause(ctx, taskID, snap)
	case model.NodeNextClause:
		return m.nodeNextClause(ctx, taskID, snap)
	case model.NodeFinalize:
		return m.nodeFinalize(ctx, taskID, snap)
	default:
		return nodeResult{err: fmt.Errorf("%w: %q", ErrUnknownNode, snap.Node)}
	}
}

// failTask marks a task failed and emits task_failed. It never returns an
// error itself — a failure recording a failure is logged and swallowed,
// since the original error is already what the caller will see.
func (m *Machine) failTask(ctx context.Context, taskID string, snap *model.MachineSnapshot, cause error) {
	reason := cause.Error()
	if _, err := m.deps.Store.UpdateTaskPhase(ctx, taskID, model.PhaseFailed, reason); err != nil {
		m.deps.Logger.Error("review: failed to record task failure", "task_id", taskID, "cause", reason, "error", err)
	}
	if m.deps.Events != nil {
		if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindTaskFailed, taskFailedPayload{Reason: reason}); err != nil {
			m.deps.Logger.Error("review: failed to publish task_failed", "task_id", taskID, "error", err)
		}
	}
}

// callSkill marshals input, dispatches through the skill registry, and
// unmarshals the output into out. Non-transient failures are returned as
// (false, err) for the caller to decide whether the clause should be
// degraded rather than the task failed.
func (m *Machine) callSkill(ctx context.Context, skillID string, input, out any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("review: marshal input for skill %s: %w", skillID, err)
	}
	result, err := m.deps.Skills.Call(ctx, skillID, raw, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("review: unmarshal output from skill %s: %w", skillID, err)
	}
	return nil
}

// isDegradable reports whether err should mark a clause degraded and let
// the machine continue, versus failing the task outright. Execution
// failures, timeouts, and an unavailable backend are per-skill outcomes
// that degrade the clause; a skill that was never registered or rejected
// its input is a programmer error, fatal for the current node.
func isDegradable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, skill.ErrSkillNotRegistered) || errors.Is(err, skill.ErrInputInvalid) {
		return false
	}
	return true
}
