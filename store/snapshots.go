package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/clausereview/model"
	"github.com/nats-io/nats.go/jetstream"
)

// snapshotKey encodes task id and sequence number so keys sort
// lexicographically in sequence order for a fixed-width seq.
func snapshotKey(taskID string, seq int64) string {
	return fmt.Sprintf("%s.%020d", taskID, seq)
}

// PutSnapshot writes a new machine snapshot. Snapshots are immutable once
// written so this is a
// Create, never an Update; a seq collision means the caller computed the
// next seq incorrectly and is treated as a bug, not a retryable conflict.
func (s *Store) PutSnapshot(ctx context.Context, snap *model.MachineSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := s.snapshots.Create(ctx, snapshotKey(snap.TaskID, snap.Seq), data); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the highest-seq snapshot recorded for a task, the
// sole input to crash recovery.
func (s *Store) LatestSnapshot(ctx context.Context, taskID string) (*model.MachineSnapshot, error) {
	keys, err := s.snapshotKeysForTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	sort.Strings(keys)
	latest := keys[len(keys)-1]

	entry, err := s.snapshots.Get(ctx, latest)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap model.MachineSnapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// GetSnapshot returns a specific historical snapshot by sequence number,
// used by the event stream's replay-from-seq semantics.
func (s *Store) GetSnapshot(ctx context.Context, taskID string, seq int64) (*model.MachineSnapshot, error) {
	entry, err := s.snapshots.Get(ctx, snapshotKey(taskID, seq))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap model.MachineSnapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// PruneSnapshots deletes all but the snapshotHistoryLimit most recent
// snapshots for a task, called on a schedule by the janitor.
func (s *Store) PruneSnapshots(ctx context.Context, taskID string) error {
	keys, err := s.snapshotKeysForTask(ctx, taskID)
	if err != nil {
		return err
	}
	if len(keys) <= snapshotHistoryLimit {
		return nil
	}
	sort.Strings(keys)
	toDelete := keys[:len(keys)-snapshotHistoryLimit]
	for _, key := range toDelete {
		if err := s.snapshots.Delete(ctx, key); err != nil && !isNotFound(err) {
			return fmt.Errorf("prune snapshot %s: %w", key, err)
		}
	}
	return nil
}

func (s *Store) snapshotKeysForTask(ctx context.Context, taskID string) ([]string, error) {
	keys, err := s.snapshots.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshot keys: %w", err)
	}
	prefix := taskID + "."
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out, nil
}
