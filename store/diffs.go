package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/clausereview/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// CreateDiff persists a newly generated diff in DiffPending status.
func (s *Store) CreateDiff(ctx context.Context, d *model.DocumentDiff) error {
	d.ID = uuid.New().String()
	d.Status = model.DiffPending
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal diff: %w", err)
	}
	if _, err := s.diffs.Create(ctx, d.ID, data); err != nil {
		return fmt.Errorf("store diff: %w", err)
	}
	return nil
}

// GetDiff retrieves a diff by id.
func (s *Store) GetDiff(ctx context.Context, diffID string) (*model.DocumentDiff, error) {
	entry, err := s.diffs.Get(ctx, diffID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get diff: %w", err)
	}
	var d model.DocumentDiff
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal diff: %w", err)
	}
	return &d, nil
}

// ListDiffsByTask returns every diff recorded for a task, regardless of
// status.
func (s *Store) ListDiffsByTask(ctx context.Context, taskID string) ([]*model.DocumentDiff, error) {
	keys, err := s.diffs.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list diff keys: %w", err)
	}

	out := make([]*model.DocumentDiff, 0)
	for _, key := range keys {
		entry, err := s.diffs.Get(ctx, key)
		if err != nil {
			continue
		}
		var d model.DocumentDiff
		if err := json.Unmarshal(entry.Value(), &d); err != nil {
			continue
		}
		if d.TaskID == taskID {
			out = append(out, &d)
		}
	}
	return out, nil
}

// RecordDecision is the single transactional boundary for a decision:
// audit entry and diff status change commit together.
// JetStream KV gives per-key compare-and-swap rather than cross-key
// transactions, so this writes the diff's new status (CAS'd on its current
// revision) first — the definitive state change — then appends the audit
// entry. If the audit write fails after a successful status change the
// error is returned to the caller (the approval coordinator) so it can
// retry recording the audit entry without risk of double-applying the
// decision, since RecordDecision is a no-op once the diff is no longer
// pending.
func (s *Store) RecordDecision(ctx context.Context, diffID, taskID string, decision model.Decision, actor, feedback, userModifiedText string) (*model.DocumentDiff, error) {
	entry, err := s.diffs.Get(ctx, diffID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get diff: %w", err)
	}

	var d model.DocumentDiff
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal diff: %w", err)
	}

	var target model.DiffStatus
	switch decision {
	case model.DecisionApprove:
		target = model.DiffApproved
	case model.DecisionReject:
		target = model.DiffRejected
	default:
		return nil, fmt.Errorf("record decision: unknown decision %q", decision)
	}

	if !d.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("record decision: diff %s is %s, not pending", diffID, d.Status)
	}

	d.Status = target
	d.UserFeedback = feedback
	d.UserModifiedText = userModifiedText
	d.UpdatedAt = time.Now()

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal diff: %w", err)
	}
	if _, err := s.diffs.Update(ctx, diffID, data, entry.Revision()); err != nil {
		return nil, fmt.Errorf("update diff status: %w", ErrConflict)
	}

	audit := model.ApprovalAudit{
		DiffID:    diffID,
		TaskID:    taskID,
		Decision:  decision,
		Actor:     actor,
		Feedback:  feedback,
		Timestamp: d.UpdatedAt,
	}
	auditData, err := json.Marshal(audit)
	if err != nil {
		return nil, fmt.Errorf("marshal audit: %w", err)
	}
	auditKey := fmt.Sprintf("%s.%s", taskID, uuid.New().String())
	if _, err := s.approvalAudit.Create(ctx, auditKey, auditData); err != nil {
		return nil, fmt.Errorf("store audit entry: %w", err)
	}

	return &d, nil
}

// ListAuditByTask returns every audit entry recorded for a task, in no
// particular order (consumers sort by Timestamp if ordering matters).
func (s *Store) ListAuditByTask(ctx context.Context, taskID string) ([]*model.ApprovalAudit, error) {
	keys, err := s.approvalAudit.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list audit keys: %w", err)
	}

	prefix := taskID + "."
	out := make([]*model.ApprovalAudit, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.approvalAudit.Get(ctx, key)
		if err != nil {
			continue
		}
		var a model.ApprovalAudit
		if err := json.Unmarshal(entry.Value(), &a); err != nil {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}
