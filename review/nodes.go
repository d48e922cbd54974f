package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360studio/clausereview/domainplugin"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/streamevt"
	"golang.org/x/sync/errgroup"
)

// nodeSetup validates inputs, loads the primary document's structure, and
// resolves the domain checklist. Any failure here is
// structural: missing primary document or unparsed structure is not
// retryable at this layer.
func (m *Machine) nodeSetup(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	task, err := m.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: setup: load task: %w", err)}
	}

	primary, err := m.deps.Store.PrimaryDocument(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: setup: %w: %v", ErrNoPrimaryDocument, err)}
	}
	if primary.Structure == nil {
		return nodeResult{err: fmt.Errorf("review: setup: %w: primary document %s not yet parsed", ErrNoPrimaryDocument, primary.ID)}
	}

	if m.deps.Events != nil {
		if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindTaskStarted, taskStartedPayload{DomainID: task.DomainID}); err != nil {
			return nodeResult{err: fmt.Errorf("review: setup: publish task_started: %w", err)}
		}
	}

	snap.Node = model.NodePlan
	return nodeResult{snapshot: snap}
}

// nodePlan produces the ordered (clause_id, [skill_ids]) execution plan
// from the resolved checklist, filtered by the clause ids actually present
// in the primary document. An empty checklist — no
// domain plugin registered — falls back to one plan item per clause using
// Config.GenericSkillIDs.
func (m *Machine) nodePlan(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	task, err := m.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: plan: load task: %w", err)}
	}
	primary, err := m.deps.Store.PrimaryDocument(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: plan: %w", err)}
	}
	clauseIDs := primary.Structure.ClauseIDs()

	checklist := m.deps.Domains.Checklist(task.DomainID)

	var plan []model.PlanItem
	if len(checklist) == 0 {
		for _, id := range clauseIDs {
			plan = append(plan, model.PlanItem{ClauseID: id, SkillIDs: m.deps.Config.GenericSkillIDs})
		}
	} else {
		for _, item := range checklist {
			for _, id := range domainplugin.MatchingClauseIDs(item, clauseIDs) {
				plan = append(plan, model.PlanItem{ClauseID: id, SkillIDs: item.RequiredSkill})
			}
		}
	}

	snap.Plan = plan
	snap.ClauseCursor = 0
	if len(plan) == 0 {
		snap.Node = model.NodeFinalize
	} else {
		snap.Node = model.NodeClauseContext
	}
	return nodeResult{snapshot: snap}
}

// clauseContextFor assembles the merged clause context: the primary
// clause's text plus any baseline or supplement text bearing on the same
// clause id.
func (m *Machine) clauseContextFor(ctx context.Context, taskID, domainID, clauseID string) (clauseSkillInput, error) {
	primary, err := m.deps.Store.PrimaryDocument(ctx, taskID)
	if err != nil {
		return clauseSkillInput{}, fmt.Errorf("clause context: %w", err)
	}
	node := primary.Structure.FindClause(clauseID)
	if node == nil {
		return clauseSkillInput{}, fmt.Errorf("clause context: clause %s not found in primary structure", clauseID)
	}

	text, err := m.deps.Blobs.ReadSpan(ctx, primary.BlobHandle, node.Span)
	if err != nil {
		return clauseSkillInput{}, fmt.Errorf("clause context: read primary span: %w", err)
	}

	input := clauseSkillInput{TaskID: taskID, ClauseID: clauseID, DocumentID: primary.ID, ClauseText: text}

	if baseline, ok := m.deps.Domains.Baseline(domainID, clauseID); ok {
		input.BaselineText = baseline
	}

	docs, err := m.deps.Store.ListDocuments(ctx, taskID)
	if err != nil {
		return clauseSkillInput{}, fmt.Errorf("clause context: list documents: %w", err)
	}

	// Supplement documents (baseline/supplement/reference/standard) are
	// read concurrently via errgroup, bounded to this one clause's fetch.
	// Clause-level serialization covers ClauseFindings mutation, not how
	// many blob reads one clause's context assembly may issue in parallel.
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, d := range docs {
		if d.Role == model.RolePrimary || d.Structure == nil {
			continue
		}
		d := d
		supNode := d.Structure.FindClause(clauseID)
		if supNode == nil {
			continue
		}
		eg.Go(func() error {
			supText, err := m.deps.Blobs.ReadSpan(egCtx, d.BlobHandle, supNode.Span)
			if err != nil {
				return nil // a supplement document that can't be read degrades, doesn't fail setup
			}
			mu.Lock()
			input.Supplements = append(input.Supplements, clauseSupplementInput{
				DocumentID: d.ID,
				Role:       string(d.Role),
				Text:       supText,
			})
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait() // every goroutine above returns nil; Wait only joins them

	return input, nil
}

// nodeClauseContext fetches the merged clause context to confirm it's
// retrievable and emits clause_started. The context
// itself is recomputed by clause_analyze rather than carried in the
// snapshot, keeping snapshots small; nothing here is lost on recovery
// since BlobStore reads are idempotent.
func (m *Machine) nodeClauseContext(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	item := snap.CurrentPlanItem()
	if item == nil {
		snap.Node = model.NodeFinalize
		return nodeResult{snapshot: snap}
	}

	task, err := m.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: clause_context: load task: %w", err)}
	}

	if _, err := m.clauseContextFor(ctx, taskID, task.DomainID, item.ClauseID); err != nil {
		return nodeResult{err: fmt.Errorf("review: clause_context: %w", err)}
	}

	if m.deps.Events != nil {
		if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindClauseStarted, clauseStartedPayload{ClauseID: item.ClauseID}); err != nil {
			return nodeResult{err: fmt.Errorf("review: clause_context: publish clause_started: %w", err)}
		}
	}

	snap.Node = model.NodeClauseAnalyze
	return nodeResult{snapshot: snap}
}

// nodeClauseAnalyze calls every required skill for the current clause in
// order, writing outcomes into the clause's findings. A non-transient
// skill failure degrades the clause rather than failing the task.
func (m *Machine) nodeClauseAnalyze(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	item := snap.CurrentPlanItem()
	if item == nil {
		snap.Node = model.NodeNextClause
		return nodeResult{snapshot: snap}
	}

	task, err := m.deps.Store.GetTask(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: clause_analyze: load task: %w", err)}
	}

	input, err := m.clauseContextFor(ctx, taskID, task.DomainID, item.ClauseID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: clause_analyze: %w", err)}
	}
	input.Scratchpad = scratchpadSnapshot(snap)

	findings := snap.FindingsFor(item.ClauseID)

	for _, skillID := range item.SkillIDs {
		if m.deps.Events != nil {
			if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindSkillInvoked, skillInvokedPayload{ClauseID: item.ClauseID, SkillID: skillID}); err != nil {
				return nodeResult{err: fmt.Errorf("review: clause_analyze: publish skill_invoked: %w", err)}
			}
		}

		start := time.Now()
		var out clauseSkillOutput
		callErr := m.callSkill(ctx, skillID, input, &out)
		duration := time.Since(start)

		outcome := model.SkillOutcome{SkillID: skillID, Duration: duration}
		status := "ok"
		reason := ""
		if callErr != nil {
			if !isDegradable(callErr) {
				return nodeResult{err: fmt.Errorf("review: clause_analyze: skill %s: %w", skillID, callErr)}
			}
			status = "failed"
			reason = callErr.Error()
			outcome.Status = status
			outcome.Reason = reason
			findings.RecordSkillOutcome(outcome)
		} else {
			outcome.Status = status
			findings.RecordSkillOutcome(outcome)
			findings.Risks = append(findings.Risks, out.Risks...)
			findings.FinancialTerms = append(findings.FinancialTerms, out.FinancialTerms...)
			findings.BaselineDeviations = append(findings.BaselineDeviations, out.BaselineDeviations...)
			findings.CrossRefIssues = append(findings.CrossRefIssues, out.CrossRefIssues...)
			if out.Note != "" {
				findings.AddScratchpad(out.Note)
			}
		}

		if m.deps.Events != nil {
			if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindSkillCompleted, skillCompletedPayload{ClauseID: item.ClauseID, SkillID: skillID, Status: status, Reason: reason}); err != nil {
				return nodeResult{err: fmt.Errorf("review: clause_analyze: publish skill_completed: %w", err)}
			}
		}
	}

	snap.Node = model.NodeValidateStrategy
	return nodeResult{snapshot: snap}
}

// scratchpadSnapshot flattens the cross-clause findings scratchpad into
// clause id -> notes, the shape skills read to see earlier clauses'
// observations.
func scratchpadSnapshot(snap *model.MachineSnapshot) map[string][]string {
	out := make(map[string][]string, len(snap.Findings))
	for id, f := range snap.Findings {
		if len(f.Scratchpad) > 0 {
			out[id] = f.Scratchpad
		}
	}
	return out
}

// nodeValidateStrategy calls the configured validate_strategy skill and
// routes on its outcome.
func (m *Machine) nodeValidateStrategy(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	item := snap.CurrentPlanItem()
	if item == nil {
		snap.Node = model.NodeNextClause
		return nodeResult{snapshot: snap}
	}
	findings := snap.FindingsFor(item.ClauseID)

	var out validateStrategyOutcome
	err := m.callSkill(ctx, m.deps.Config.ValidateStrategySkillID, validateStrategyInput{
		TaskID:   taskID,
		ClauseID: item.ClauseID,
		Findings: findings,
	}, &out)
	if err != nil {
		if !isDegradable(err) {
			return nodeResult{err: fmt.Errorf("review: validate_strategy: %w", err)}
		}
		// An unreachable validate_strategy skill degrades to "pass" using
		// whatever was successfully gathered.
		out.Outcome = outcomePass
		findings.Degraded = true
	}

	retryOutcome := "pass"
	switch out.Outcome {
	case outcomeRetry:
		if withinRetryLimit(findings.RetryCount, m.deps.Config.ClauseRetryLimit) {
			findings.RetryCount++
			snap.Node = model.NodeClauseAnalyze
			retryOutcome = "retry"
		} else {
			findings.BestEffortExhausted = true
			snap.Node = model.NodeNextClause
			retryOutcome = "best_effort_exhausted"
		}
	case outcomeSkipClause:
		snap.Node = model.NodeNextClause
		retryOutcome = "skip_clause"
	default:
		snap.Node = model.NodeGenerateDiffs
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.ClauseRetries.WithLabelValues(retryOutcome).Inc()
	}
	return nodeResult{snapshot: snap}
}

// nodeGenerateDiffs converts a clause's findings into zero or more
// DocumentDiffs, persists them pending, and appends their ids to the
// snapshot's pending set.
func (m *Machine) nodeGenerateDiffs(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	item := snap.CurrentPlanItem()
	if item == nil {
		snap.Node = model.NodeNextClause
		return nodeResult{snapshot: snap}
	}
	findings := snap.FindingsFor(item.ClauseID)

	primary, err := m.deps.Store.PrimaryDocument(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: generate_diffs: %w", err)}
	}
	node := primary.Structure.FindClause(item.ClauseID)
	if node == nil {
		return nodeResult{err: fmt.Errorf("review: generate_diffs: clause %s not found in primary structure", item.ClauseID)}
	}

	feedback := snap.PendingRejectFeedback[item.ClauseID]

	var out generateDiffsOutput
	if err := m.callSkill(ctx, m.deps.Config.GenerateDiffsSkillID, generateDiffsInput{
		TaskID:         taskID,
		ClauseID:       item.ClauseID,
		DocumentID:     primary.ID,
		ClauseSpan:     node.Span,
		Findings:       findings,
		RejectFeedback: feedback,
	}, &out); err != nil {
		if !isDegradable(err) {
			return nodeResult{err: fmt.Errorf("review: generate_diffs: %w", err)}
		}
		findings.Degraded = true
		out.Diffs = nil
	}
	delete(snap.PendingRejectFeedback, item.ClauseID)

	for _, proposal := range out.Diffs {
		span := node.Span
		if proposal.Span != nil {
			span = *proposal.Span
		}
		diff := &model.DocumentDiff{
			TaskID:       taskID,
			ClauseID:     item.ClauseID,
			Action:       proposal.Action,
			OriginalText: proposal.OriginalText,
			ProposedText: proposal.ProposedText,
			Location: model.DiffLocation{
				DocumentID:  primary.ID,
				Span:        span,
				ParagraphID: proposal.ParagraphID,
			},
			Risk:      proposal.Risk,
			Rationale: proposal.Rationale,
		}
		if err := m.deps.Store.CreateDiff(ctx, diff); err != nil {
			return nodeResult{err: fmt.Errorf("review: generate_diffs: store diff: %w", err)}
		}
		snap.Pending = append(snap.Pending, diff.ID)
		if m.deps.Metrics != nil {
			m.deps.Metrics.DiffsProposed.WithLabelValues(string(diff.Risk)).Inc()
		}

		if m.deps.Events != nil {
			if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindDiffProposed, diffProposedPayload{
				DiffID: diff.ID, ClauseID: item.ClauseID, Action: diff.Action, Risk: diff.Risk,
			}); err != nil {
				return nodeResult{err: fmt.Errorf("review: generate_diffs: publish diff_proposed: %w", err)}
			}
		}
	}

	snap.Node = model.NodeHumanApproval
	return nodeResult{snapshot: snap}
}

// nodeHumanApproval is the suspension point. A non-empty pending set
// halts the machine: the task moves to PhaseInterrupted, an
// approval_required event carrying the full pending set is emitted, and
// the snapshot is advanced to save_clause so resume lands on the node
// that consumes the decisions. An empty pending set needs no human
// decision and falls straight through.
func (m *Machine) nodeHumanApproval(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	if len(snap.Pending) == 0 {
		snap.Node = model.NodeSaveClause
		return nodeResult{snapshot: snap}
	}

	if _, err := m.deps.Store.UpdateTaskPhase(ctx, taskID, model.PhaseInterrupted, ""); err != nil {
		return nodeResult{err: fmt.Errorf("review: human_approval: %w", err)}
	}

	pending := make([]string, len(snap.Pending))
	copy(pending, snap.Pending)

	if m.deps.Events != nil {
		if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindApprovalRequired, approvalRequiredPayload{PendingDiffIDs: pending}); err != nil {
			return nodeResult{err: fmt.Errorf("review: human_approval: publish approval_required: %w", err)}
		}
	}

	snap.Node = model.NodeSaveClause
	return nodeResult{snapshot: snap, suspend: true}
}

// nodeSaveClause applies recorded decisions: approved diffs are left
// approved (already durable via the approval coordinator's transactional
// write), rejected diffs either trigger a bounded regeneration or are
// recorded rejected-final.
func (m *Machine) nodeSaveClause(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	item := snap.CurrentPlanItem()
	if item == nil {
		snap.Node = model.NodeNextClause
		return nodeResult{snapshot: snap}
	}
	findings := snap.FindingsFor(item.ClauseID)

	pending := make([]string, len(snap.Pending))
	copy(pending, snap.Pending)

	needsRegeneration := false
	for _, diffID := range pending {
		decision, ok := snap.Decisions[diffID]
		if !ok {
			return nodeResult{err: fmt.Errorf("review: save_clause: diff %s has no recorded decision", diffID)}
		}

		if decision == model.DecisionReject && withinRetryLimit(findings.RejectRetryCount, m.deps.Config.RejectRetryLimit) {
			diff, err := m.deps.Store.GetDiff(ctx, diffID)
			if err != nil {
				return nodeResult{err: fmt.Errorf("review: save_clause: %w", err)}
			}
			findings.RejectRetryCount++
			if snap.PendingRejectFeedback == nil {
				snap.PendingRejectFeedback = make(map[string]string)
			}
			snap.PendingRejectFeedback[item.ClauseID] = diff.UserFeedback
			needsRegeneration = true
		}

		snap.MarkHandled(diffID, decision)

		if m.deps.Events != nil {
			if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindDiffResolved, diffResolvedEventPayload{DiffID: diffID, Decision: decision}); err != nil {
				return nodeResult{err: fmt.Errorf("review: save_clause: publish diff_resolved: %w", err)}
			}
		}
	}

	if needsRegeneration {
		snap.Node = model.NodeGenerateDiffs
	} else {
		snap.Node = model.NodeNextClause
	}
	return nodeResult{snapshot: snap}
}

// nodeNextClause advances the clause cursor, persists accumulated
// findings, and routes to finalize once the plan is exhausted.
func (m *Machine) nodeNextClause(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	item := snap.CurrentPlanItem()
	if item != nil {
		findings := snap.FindingsFor(item.ClauseID)
		if err := m.deps.Store.PutClauseFindings(ctx, taskID, item.ClauseID, findings); err != nil {
			return nodeResult{err: fmt.Errorf("review: next_clause: persist findings: %w", err)}
		}
		if m.deps.Events != nil {
			if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindClauseCompleted, clauseCompletedPayload{
				ClauseID: item.ClauseID, Degraded: findings.Degraded, BestEffortExhausted: findings.BestEffortExhausted,
			}); err != nil {
				return nodeResult{err: fmt.Errorf("review: next_clause: publish clause_completed: %w", err)}
			}
		}
	}

	snap.ClauseCursor++
	if snap.ClauseCursor >= len(snap.Plan) {
		snap.Node = model.NodeFinalize
	} else {
		snap.Node = model.NodeClauseContext
	}
	return nodeResult{snapshot: snap}
}

// nodeFinalize computes summary statistics, persists the terminal
// snapshot, marks the task complete, and emits review_complete.
func (m *Machine) nodeFinalize(ctx context.Context, taskID string, snap *model.MachineSnapshot) nodeResult {
	diffs, err := m.deps.Store.ListDiffsByTask(ctx, taskID)
	if err != nil {
		return nodeResult{err: fmt.Errorf("review: finalize: %w", err)}
	}
	var applied, rejected int
	for _, d := range diffs {
		switch d.Status {
		case model.DiffApproved:
			applied++
		case model.DiffRejected:
			rejected++
		}
	}

	if _, err := m.deps.Store.UpdateTaskPhase(ctx, taskID, model.PhaseComplete, ""); err != nil {
		return nodeResult{err: fmt.Errorf("review: finalize: %w", err)}
	}

	if m.deps.Events != nil {
		if _, err := m.deps.Events.Publish(ctx, taskID, streamevt.KindReviewComplete, reviewCompletePayload{
			ClauseCount: len(snap.Plan), AppliedDiffs: applied, RejectedDiffs: rejected,
		}); err != nil {
			return nodeResult{err: fmt.Errorf("review: finalize: publish review_complete: %w", err)}
		}
	}

	return nodeResult{snapshot: snap}
}

// diffResolvedEventPayload mirrors pkg/approval's private payload shape —
// duplicated rather than imported to avoid a dependency from review back
// to approval (approval already depends on review's Resumer interface).
type diffResolvedEventPayload struct {
	DiffID   string         `json:"diff_id"`
	Decision model.Decision `json:"decision"`
}
