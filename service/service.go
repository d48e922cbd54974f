// Package service exposes the task-lifecycle command surface:
// create_task, upload_document, start_review, get_status, approve_diff /
// approve_batch / resume, cancel_task, list_domains, list_skills. It is
// the only thing external callers (the CLI, or any future transport)
// talk to — everything else in this module is an internal collaborator
// wired together here. A bounded
// semaphore gates how many review machines advance concurrently, one
// goroutine per admitted task, so multiple tasks advance in parallel
// across the process bounded by the worker-pool size.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/clausereview/approval"
	"github.com/c360studio/clausereview/domainplugin"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/review"
	"github.com/c360studio/clausereview/skill"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
)

// DefaultMaxConcurrentTasks bounds how many review machines this process
// advances at once.
const DefaultMaxConcurrentTasks = 8

// Service wires the persistence adapter, skill dispatcher, domain
// registry, review machine, approval coordinator, and event stream into
// one call surface.
type Service struct {
	Store    *store.Store
	Events   *streamevt.Stream
	Skills   *skill.Dispatcher
	Domains  *domainplugin.Registry
	Machine  *review.Machine
	Approval *approval.Coordinator
	Blobs    model.BlobStore
	Logger   *slog.Logger

	sem chan struct{}
}

// New builds a Service. maxConcurrent <= 0 uses DefaultMaxConcurrentTasks.
func New(s *store.Store, events *streamevt.Stream, skills *skill.Dispatcher, domains *domainplugin.Registry, machine *review.Machine, approvalCoord *approval.Coordinator, blobs model.BlobStore, logger *slog.Logger, maxConcurrent int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentTasks
	}
	return &Service{
		Store:    s,
		Events:   events,
		Skills:   skills,
		Domains:  domains,
		Machine:  machine,
		Approval: approvalCoord,
		Blobs:    blobs,
		Logger:   logger,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// CreateTask creates a task in the created phase.
func (s *Service) CreateTask(ctx context.Context, domainID, ourParty, language string) (*model.Task, error) {
	task, err := s.Store.CreateTask(ctx, ourParty, language, domainID)
	if err != nil {
		return nil, fmt.Errorf("service: create_task: %w", err)
	}
	if _, err := s.Store.UpdateTaskPhase(ctx, task.ID, model.PhaseUploading, ""); err != nil {
		return nil, fmt.Errorf("service: create_task: %w", err)
	}
	task.Phase = model.PhaseUploading
	return task, nil
}

// UploadDocument binds an uploaded document to a task under the given
// role. Bytes are already resident in the
// blob store under blobHandle — writing raw bytes into the out-of-scope
// BlobStore collaborator is not this core's concern.
func (s *Service) UploadDocument(ctx context.Context, taskID string, role model.DocumentRole, filename, blobHandle string) (*model.TaskDocument, error) {
	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("service: upload_document: %w", err)
	}
	if task.Phase != model.PhaseCreated && task.Phase != model.PhaseUploading {
		return nil, fmt.Errorf("service: upload_document: task %s is in phase %s, not accepting uploads", taskID, task.Phase)
	}

	doc, err := s.Store.CreateDocument(ctx, taskID, role, filename, blobHandle)
	if err != nil {
		return nil, fmt.Errorf("service: upload_document: %w", err)
	}
	return doc, nil
}

// StartReview requires phase == uploading with at least a primary
// document, transitions to
// reviewing, and admits the task into the bounded worker pool to advance
// the review machine.
func (s *Service) StartReview(ctx context.Context, taskID string) error {
	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("service: start_review: %w", err)
	}
	if task.Phase != model.PhaseUploading {
		return fmt.Errorf("service: start_review: task %s is in phase %s, expected uploading", taskID, task.Phase)
	}
	if _, err := s.Store.PrimaryDocument(ctx, taskID); err != nil {
		return fmt.Errorf("service: start_review: %w", err)
	}

	if _, err := s.Store.UpdateTaskPhase(ctx, taskID, model.PhaseReviewing, ""); err != nil {
		return fmt.Errorf("service: start_review: %w", err)
	}

	s.runAsync(taskID, func(runCtx context.Context) error {
		return s.Machine.Start(runCtx, taskID)
	})
	return nil
}

// Resume continues a suspended task once every pending diff has a
// decision, admitting the continuation into the same bounded worker
// pool StartReview uses.
func (s *Service) Resume(ctx context.Context, taskID string) error {
	// The completeness check and the actual decision-map handoff happen
	// synchronously inside the coordinator so callers get ApprovalIncomplete
	// immediately; only the machine's subsequent node-walk runs async.
	errCh := make(chan error, 1)
	s.runAsync(taskID, func(runCtx context.Context) error {
		err := s.Approval.Resume(runCtx, taskID)
		errCh <- err
		return err
	})
	return <-errCh
}

// runAsync admits one task run into the bounded pool — blocking the
// caller's goroutine (not the request, which has already returned by the
// time callers care) until a slot is free — then runs fn in its own
// goroutine, logging rather than propagating any error: the review
// machine's own failure semantics already record the
// outcome durably and emit task_failed, so there is nothing further for
// this caller to do with the error except observe it happened.
func (s *Service) runAsync(taskID string, fn func(ctx context.Context) error) {
	go func() {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go s.heartbeat(ctx, taskID)

		if err := fn(ctx); err != nil {
			s.Logger.Error("service: task run failed", "task_id", taskID, "error", err)
		}
	}()
}

// heartbeat publishes a heartbeat event every 30 seconds while a task run
// is in flight, so subscribed clients can distinguish a long-running
// skill call from a dead stream. Stops when the run's context is
// cancelled.
func (s *Service) heartbeat(ctx context.Context, taskID string) {
	if s.Events == nil {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Events.Publish(ctx, taskID, streamevt.KindHeartbeat, nil); err != nil {
				s.Logger.Warn("service: heartbeat publish failed", "task_id", taskID, "error", err)
			}
		}
	}
}

// CancelTask moves the task to failed with reason "cancelled". The
// currently-running node (if any) finishes and writes its snapshot
// before the machine's drive loop notices the phase change and stops.
func (s *Service) CancelTask(ctx context.Context, taskID string) error {
	if _, err := s.Store.UpdateTaskPhase(ctx, taskID, model.PhaseFailed, "cancelled"); err != nil {
		return fmt.Errorf("service: cancel_task: %w", err)
	}
	return nil
}

// StatusResult is what GetStatus returns.
type StatusResult struct {
	Phase         model.Phase `json:"phase"`
	CurrentClause string      `json:"current_clause,omitempty"`
	PendingCount  int         `json:"pending_count"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

// GetStatus reports a task's phase, current clause, and pending-diff
// count.
func (s *Service) GetStatus(ctx context.Context, taskID string) (*StatusResult, error) {
	task, err := s.Store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("service: get_status: %w", err)
	}
	result := &StatusResult{Phase: task.Phase, FailureReason: task.FailureReason}

	snap, err := s.Store.LatestSnapshot(ctx, taskID)
	if err != nil {
		if err == store.ErrNotFound {
			return result, nil
		}
		return nil, fmt.Errorf("service: get_status: %w", err)
	}
	result.PendingCount = len(snap.Pending)
	if item := snap.CurrentPlanItem(); item != nil {
		result.CurrentClause = item.ClauseID
	}
	return result, nil
}

// ApproveDiff records one decision against a pending diff.
func (s *Service) ApproveDiff(ctx context.Context, taskID, diffID string, decision model.Decision, actor, feedback, userModifiedText string) error {
	return s.Approval.Approve(ctx, taskID, diffID, decision, actor, feedback, userModifiedText)
}

// ApproveBatch records several decisions, validated per diff.
func (s *Service) ApproveBatch(ctx context.Context, taskID string, decisions []approval.BatchDecision) []error {
	return s.Approval.ApproveBatch(ctx, taskID, decisions)
}

// ListDomains lists every registered domain plugin.
func (s *Service) ListDomains(ctx context.Context) []model.DomainDescriptor {
	return s.Domains.List()
}

// ListSkills lists registered skills, optionally filtered by domain.
func (s *Service) ListSkills(ctx context.Context, domainFilter string) []model.SkillRegistration {
	return s.Skills.List(domainFilter, "")
}

// DeleteTask destroys a task on explicit user request — the only way a
// task is ever destroyed. It lives here alongside the rest of the
// command surface rather than leaving callers
// to reach into pkg/store directly.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.Store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("service: delete_task: %w", err)
	}
	return nil
}
