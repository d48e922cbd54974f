// Package store provides the durable persistence adapter for the
// clause-review core: tasks, documents, document structures, clause
// findings, diffs, approval audit, and machine snapshots, all backed by
// NATS JetStream key-value buckets, one per logical table.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

// Bucket names, one per logical table.
const (
	BucketTasks          = "CLAUSEREVIEW_TASKS"
	BucketTaskDocuments  = "CLAUSEREVIEW_TASK_DOCUMENTS"
	BucketDocStructures  = "CLAUSEREVIEW_DOCUMENT_STRUCTURES"
	BucketClauseFindings = "CLAUSEREVIEW_CLAUSE_FINDINGS"
	BucketDiffs          = "CLAUSEREVIEW_DIFFS"
	BucketApprovalAudit  = "CLAUSEREVIEW_APPROVAL_AUDIT"
	BucketSnapshots      = "CLAUSEREVIEW_MACHINE_SNAPSHOTS"
	BucketDocumentChunks = "CLAUSEREVIEW_DOCUMENT_CHUNKS"
)

// snapshotHistoryLimit bounds the rolling history kept per task.
const snapshotHistoryLimit = 20

// Store is the JetStream-KV-backed persistence adapter.
type Store struct {
	tasks          jetstream.KeyValue
	taskDocuments  jetstream.KeyValue
	docStructures  jetstream.KeyValue
	clauseFindings jetstream.KeyValue
	diffs          jetstream.KeyValue
	approvalAudit  jetstream.KeyValue
	snapshots      jetstream.KeyValue
	documentChunks jetstream.KeyValue
}

// New creates a Store, provisioning any bucket that does not yet exist.
func New(ctx context.Context, js jetstream.JetStream) (*Store, error) {
	s := &Store{}
	var err error

	if s.tasks, err = getOrCreateBucket(ctx, js, BucketTasks, 5); err != nil {
		return nil, fmt.Errorf("tasks bucket: %w", err)
	}
	if s.taskDocuments, err = getOrCreateBucket(ctx, js, BucketTaskDocuments, 5); err != nil {
		return nil, fmt.Errorf("task_documents bucket: %w", err)
	}
	if s.docStructures, err = getOrCreateBucket(ctx, js, BucketDocStructures, 1); err != nil {
		return nil, fmt.Errorf("document_structures bucket: %w", err)
	}
	if s.clauseFindings, err = getOrCreateBucket(ctx, js, BucketClauseFindings, 5); err != nil {
		return nil, fmt.Errorf("clause_findings bucket: %w", err)
	}
	if s.diffs, err = getOrCreateBucket(ctx, js, BucketDiffs, 10); err != nil {
		return nil, fmt.Errorf("diffs bucket: %w", err)
	}
	// approval_audit is append-only; history depth is irrelevant since keys
	// are never overwritten, but JetStream still requires a value >= 1.
	if s.approvalAudit, err = getOrCreateBucket(ctx, js, BucketApprovalAudit, 1); err != nil {
		return nil, fmt.Errorf("approval_audit bucket: %w", err)
	}
	if s.snapshots, err = getOrCreateBucket(ctx, js, BucketSnapshots, snapshotHistoryLimit); err != nil {
		return nil, fmt.Errorf("machine_snapshots bucket: %w", err)
	}
	if s.documentChunks, err = getOrCreateBucket(ctx, js, BucketDocumentChunks, 1); err != nil {
		return nil, fmt.Errorf("document_chunks bucket: %w", err)
	}

	return s, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, history uint8) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("clausereview %s storage", strings.ToLower(name)),
		History:     history,
	})
}

func isNotFound(err error) bool {
	return err != nil && (err == jetstream.ErrKeyNotFound || strings.Contains(err.Error(), "key not found"))
}
