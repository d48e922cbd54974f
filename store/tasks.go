package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/clausereview/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// CreateTask stores a new task and returns its generated id.
func (s *Store) CreateTask(ctx context.Context, reviewingParty, language, domainID string) (*model.Task, error) {
	now := time.Now()
	t := &model.Task{
		ID:             uuid.New().String(),
		ReviewingParty: reviewingParty,
		Language:       language,
		DomainID:       domainID,
		Phase:          model.PhaseCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	if _, err := s.tasks.Create(ctx, t.ID, data); err != nil {
		return nil, fmt.Errorf("store task: %w", err)
	}
	return t, nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	entry, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	var t model.Task
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	return &t, nil
}

// UpdateTaskPhase transitions a task's phase, validating legality via
// model.Phase.CanTransitionTo, and persists the change.
func (s *Store) UpdateTaskPhase(ctx context.Context, taskID string, target model.Phase, failureReason string) (*model.Task, error) {
	entry, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	var t model.Task
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}

	if !t.Phase.CanTransitionTo(target) {
		return nil, fmt.Errorf("task %s: illegal phase transition %s -> %s", taskID, t.Phase, target)
	}

	t.Phase = target
	t.FailureReason = failureReason
	t.UpdatedAt = time.Now()

	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	if _, err := s.tasks.Update(ctx, taskID, data, entry.Revision()); err != nil {
		return nil, fmt.Errorf("update task: %w", ErrConflict)
	}
	return &t, nil
}

// SetLatestSnapshotSeq records which snapshot sequence is authoritative for
// recovery.
func (s *Store) SetLatestSnapshotSeq(ctx context.Context, taskID string, seq int64) error {
	entry, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("get task: %w", err)
	}
	var t model.Task
	if err := json.Unmarshal(entry.Value(), &t); err != nil {
		return fmt.Errorf("unmarshal task: %w", err)
	}
	t.LatestSnapshotSeq = seq
	t.UpdatedAt = time.Now()

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if _, err := s.tasks.Update(ctx, taskID, data, entry.Revision()); err != nil {
		return fmt.Errorf("update task: %w", ErrConflict)
	}
	return nil
}

// DeleteTask removes a task record. Callers are responsible for deciding
// whether to cascade-delete documents/diffs/snapshots.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ListTasks returns every stored task. Intended for introspection /
// the CLI's list surfaces, not the hot path.
func (s *Store) ListTasks(ctx context.Context) ([]*model.Task, error) {
	keys, err := s.tasks.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list task keys: %w", err)
	}

	out := make([]*model.Task, 0, len(keys))
	for _, key := range keys {
		entry, err := s.tasks.Get(ctx, key)
		if err != nil {
			continue
		}
		var t model.Task
		if err := json.Unmarshal(entry.Value(), &t); err != nil {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}
