package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/clausereview/model"
	"github.com/nats-io/nats.go/jetstream"
)

// findingsKey namespaces clause_findings by task, mirroring documentKey.
func findingsKey(taskID, clauseID string) string {
	return taskID + "." + clauseID
}

// PutClauseFindings writes (creating or overwriting) the findings record
// for one clause within a task. Findings are owned by the review state
// machine, which holds the authoritative in-memory copy inside its
// MachineSnapshot and flushes here after each clause completes — so
// last-writer-wins is sufficient and no CAS is needed.
func (s *Store) PutClauseFindings(ctx context.Context, taskID, clauseID string, f *model.ClauseFindings) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal clause findings: %w", err)
	}
	if _, err := s.clauseFindings.Put(ctx, findingsKey(taskID, clauseID), data); err != nil {
		return fmt.Errorf("put clause findings: %w", err)
	}
	return nil
}

// GetClauseFindings retrieves the findings record for one clause.
func (s *Store) GetClauseFindings(ctx context.Context, taskID, clauseID string) (*model.ClauseFindings, error) {
	entry, err := s.clauseFindings.Get(ctx, findingsKey(taskID, clauseID))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get clause findings: %w", err)
	}
	var f model.ClauseFindings
	if err := json.Unmarshal(entry.Value(), &f); err != nil {
		return nil, fmt.Errorf("unmarshal clause findings: %w", err)
	}
	return &f, nil
}

// ListClauseFindings returns every clause findings record stored for a
// task, used to assemble the final review report.
func (s *Store) ListClauseFindings(ctx context.Context, taskID string) (map[string]*model.ClauseFindings, error) {
	keys, err := s.clauseFindings.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return map[string]*model.ClauseFindings{}, nil
		}
		return nil, fmt.Errorf("list clause findings keys: %w", err)
	}

	prefix := taskID + "."
	out := make(map[string]*model.ClauseFindings)
	for _, key := range keys {
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		entry, err := s.clauseFindings.Get(ctx, key)
		if err != nil {
			continue
		}
		var f model.ClauseFindings
		if err := json.Unmarshal(entry.Value(), &f); err != nil {
			continue
		}
		out[f.ClauseID] = &f
	}
	return out, nil
}
