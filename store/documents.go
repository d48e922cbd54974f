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

// documentKey namespaces task_documents keys by task, so ListDocuments can
// use a KV watch/keys prefix scan without a secondary index.
func documentKey(taskID, documentID string) string {
	return taskID + "." + documentID
}

// CreateDocument binds a new document to a task, enforcing the
// at-most-one-primary and at-most-one-standard invariant.
func (s *Store) CreateDocument(ctx context.Context, taskID string, role model.DocumentRole, filename, blobHandle string) (*model.TaskDocument, error) {
	if role.IsSingleton() {
		existing, err := s.ListDocuments(ctx, taskID)
		if err != nil {
			return nil, err
		}
		for _, d := range existing {
			if d.Role == role {
				return nil, ErrDuplicateRole
			}
		}
	}

	d := &model.TaskDocument{
		ID:         uuid.New().String(),
		TaskID:     taskID,
		Role:       role,
		Filename:   filename,
		BlobHandle: blobHandle,
		CreatedAt:  time.Now(),
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if _, err := s.taskDocuments.Create(ctx, documentKey(taskID, d.ID), data); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	return d, nil
}

// GetDocument retrieves one document by task id and document id.
func (s *Store) GetDocument(ctx context.Context, taskID, documentID string) (*model.TaskDocument, error) {
	entry, err := s.taskDocuments.Get(ctx, documentKey(taskID, documentID))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	var d model.TaskDocument
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &d, nil
}

// ListDocuments returns all documents bound to a task.
func (s *Store) ListDocuments(ctx context.Context, taskID string) ([]*model.TaskDocument, error) {
	keys, err := s.taskDocuments.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list document keys: %w", err)
	}

	prefix := taskID + "."
	out := make([]*model.TaskDocument, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.taskDocuments.Get(ctx, key)
		if err != nil {
			continue
		}
		var d model.TaskDocument
		if err := json.Unmarshal(entry.Value(), &d); err != nil {
			continue
		}
		out = append(out, &d)
	}
	return out, nil
}

// PrimaryDocument returns the task's single primary document, or ErrNotFound
// if none has been uploaded yet.
func (s *Store) PrimaryDocument(ctx context.Context, taskID string) (*model.TaskDocument, error) {
	docs, err := s.ListDocuments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Role == model.RolePrimary {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

// SetDocumentStructure attaches the parsed DocumentStructure to a document
// once the parser collaborator completes.
func (s *Store) SetDocumentStructure(ctx context.Context, taskID, documentID string, structure *model.DocumentStructure) error {
	entry, err := s.taskDocuments.Get(ctx, documentKey(taskID, documentID))
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("get document: %w", err)
	}
	var d model.TaskDocument
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	d.Structure = structure

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if _, err := s.taskDocuments.Update(ctx, documentKey(taskID, documentID), data, entry.Revision()); err != nil {
		return fmt.Errorf("update document: %w", ErrConflict)
	}

	// Also persist a standalone blob keyed by document id, useful
	// when the structure is large enough to warrant independent access
	// without loading the owning TaskDocument record.
	blobData, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("marshal structure: %w", err)
	}
	if _, err := s.docStructures.Put(ctx, documentID, blobData); err != nil {
		return fmt.Errorf("put document structure: %w", err)
	}
	return nil
}

// GetDocumentStructure reads the standalone structure blob by document id.
func (s *Store) GetDocumentStructure(ctx context.Context, documentID string) (*model.DocumentStructure, error) {
	entry, err := s.docStructures.Get(ctx, documentID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document structure: %w", err)
	}
	var d model.DocumentStructure
	if err := json.Unmarshal(entry.Value(), &d); err != nil {
		return nil, fmt.Errorf("unmarshal document structure: %w", err)
	}
	return &d, nil
}
