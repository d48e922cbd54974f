// Package approval is the only writer of decisions on suspended review
// machines: validate a diff's state, record the decision durably, and
// only then let the workflow continue.
package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/clausereview/metrics"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
)

// Resumer is the review state machine's resume hook. Approval never
// drives state machine logic directly; it only signals once every
// decision the machine is waiting on has been recorded.
type Resumer interface {
	ContinueFromSaveClause(ctx context.Context, taskID string, decisions map[string]model.Decision) error
}

// Coordinator implements approve / approve_batch / resume.
type Coordinator struct {
	store   *store.Store
	events  *streamevt.Stream
	resumer Resumer
	metrics *metrics.Metrics
}

// New builds a Coordinator.
func New(s *store.Store, events *streamevt.Stream, resumer Resumer) *Coordinator {
	return &Coordinator{store: s, events: events, resumer: resumer}
}

// WithMetrics attaches a metrics.Metrics instance so every recorded
// decision increments approval_decisions_total. Returns c for chaining at
// construction time.
func (c *Coordinator) WithMetrics(m *metrics.Metrics) *Coordinator {
	c.metrics = m
	return c
}

// diffResolvedPayload is published on streamevt after each decision.
type diffResolvedPayload struct {
	DiffID   string         `json:"diff_id"`
	Decision model.Decision `json:"decision"`
}

// Approve records one decision against a pending diff on a suspended task.
// It does not resume the task.
func (c *Coordinator) Approve(ctx context.Context, taskID, diffID string, decision model.Decision, actor, feedback, userModifiedText string) error {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if task.Phase != model.PhaseInterrupted {
		return ErrTaskNotSuspended
	}

	diff, err := c.store.GetDiff(ctx, diffID)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	if diff.Status != model.DiffPending {
		return ErrDiffNotPending
	}

	if _, err := c.store.RecordDecision(ctx, diffID, taskID, decision, actor, feedback, userModifiedText); err != nil {
		return fmt.Errorf("approve: record decision: %w", err)
	}
	if c.metrics != nil {
		c.metrics.ApprovalDecisions.WithLabelValues(string(decision)).Inc()
	}

	if c.events != nil {
		if _, err := c.events.Publish(ctx, taskID, streamevt.KindDiffResolved, diffResolvedPayload{DiffID: diffID, Decision: decision}); err != nil {
			return fmt.Errorf("approve: publish diff_resolved: %w", err)
		}
	}
	return nil
}

// BatchDecision is one entry of an approve_batch call.
type BatchDecision struct {
	DiffID           string
	Decision         model.Decision
	Actor            string
	Feedback         string
	UserModifiedText string
}

// ApproveBatch applies each decision independently, atomic per diff —
// one diff's rejection does not prevent the
// others in the batch from being recorded. Returns one error per input
// decision, in the same order, nil where that decision succeeded.
func (c *Coordinator) ApproveBatch(ctx context.Context, taskID string, decisions []BatchDecision) []error {
	errs := make([]error, len(decisions))
	for i, d := range decisions {
		errs[i] = c.Approve(ctx, taskID, d.DiffID, d.Decision, d.Actor, d.Feedback, d.UserModifiedText)
	}
	return errs
}

// Resume performs the completeness check and, if every pending diff has
// a decision, signals the review state machine to continue from
// save_clause.
func (c *Coordinator) Resume(ctx context.Context, taskID string) error {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if task.Phase != model.PhaseInterrupted {
		return ErrTaskNotSuspended
	}

	snap, err := c.store.LatestSnapshot(ctx, taskID)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	decisions := make(map[string]model.Decision, len(snap.Pending))
	for _, diffID := range snap.Pending {
		diff, err := c.store.GetDiff(ctx, diffID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("resume: %w: diff %s referenced by snapshot missing", ErrApprovalIncomplete, diffID)
			}
			return fmt.Errorf("resume: %w", err)
		}
		switch diff.Status {
		case model.DiffApproved:
			decisions[diffID] = model.DecisionApprove
		case model.DiffRejected:
			decisions[diffID] = model.DecisionReject
		default:
			return ErrApprovalIncomplete
		}
	}

	if _, err := c.store.UpdateTaskPhase(ctx, taskID, model.PhaseReviewing, ""); err != nil {
		return fmt.Errorf("resume: %w", err)
	}

	if err := c.resumer.ContinueFromSaveClause(ctx, taskID, decisions); err != nil {
		return fmt.Errorf("resume: continue from save_clause: %w", err)
	}
	return nil
}
