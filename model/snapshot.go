package model

import "time"

// Node names the review state machine's position.
type Node string

const (
	NodeSetup            Node = "setup"
	NodePlan             Node = "plan"
	NodeClauseContext    Node = "clause_context"
	NodeClauseAnalyze    Node = "clause_analyze"
	NodeValidateStrategy Node = "validate_strategy"
	NodeGenerateDiffs    Node = "generate_diffs"
	NodeHumanApproval    Node = "human_approval"
	NodeSaveClause       Node = "save_clause"
	NodeNextClause       Node = "next_clause"
	NodeFinalize         Node = "finalize"
)

// PlanItem is one entry of the execution plan the "plan" node produces:
// a clause id paired with the ordered skill ids required for it.
type PlanItem struct {
	ClauseID string   `json:"clause_id"`
	SkillIDs []string `json:"skill_ids"`
}

// MachineSnapshot is the durable serialization of the review state
// machine's position and accumulated work.
// It is the unit written after every node boundary and the sole input to
// recovery.
type MachineSnapshot struct {
	TaskID string `json:"task_id"`
	Seq    int64  `json:"seq"`
	Node   Node   `json:"node"`

	Plan         []PlanItem `json:"plan"`
	ClauseCursor int        `json:"clause_cursor"`

	// Findings maps clause id -> accumulated findings, the cross-clause
	// scratchpad. Per-clause retry counters live on each ClauseFindings
	// value, so they travel with the clause they bound.
	Findings map[string]*ClauseFindings `json:"findings"`

	// GlobalIssues holds observations that don't belong to one clause.
	GlobalIssues []string `json:"global_issues,omitempty"`

	// Pending is the set of diff ids awaiting a decision; Handled is the
	// set already decided within this snapshot's generation. Both are
	// kept as slices of ids — the authoritative DocumentDiff records live
	// in the diff store.
	Pending []string `json:"pending"`
	Handled []string `json:"handled"`

	// Decisions accumulates diff id -> Decision once the approval
	// coordinator records them, consumed by save_clause on resume.
	Decisions map[string]Decision `json:"decisions,omitempty"`

	// PendingRejectFeedback carries feedback text for a diff rejected in
	// this round, fed into the next generate_diffs call for the clause.
	PendingRejectFeedback map[string]string `json:"pending_reject_feedback,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentPlanItem returns the plan item at ClauseCursor, or nil if the
// cursor has run off the end (checklist exhausted).
func (s *MachineSnapshot) CurrentPlanItem() *PlanItem {
	if s.ClauseCursor < 0 || s.ClauseCursor >= len(s.Plan) {
		return nil
	}
	return &s.Plan[s.ClauseCursor]
}

// FindingsFor returns (creating if absent) the ClauseFindings for clauseID.
func (s *MachineSnapshot) FindingsFor(clauseID string) *ClauseFindings {
	if s.Findings == nil {
		s.Findings = make(map[string]*ClauseFindings)
	}
	f, ok := s.Findings[clauseID]
	if !ok {
		f = &ClauseFindings{ClauseID: clauseID}
		s.Findings[clauseID] = f
	}
	return f
}

// IsPending reports whether diffID is currently awaiting a decision.
func (s *MachineSnapshot) IsPending(diffID string) bool {
	for _, id := range s.Pending {
		if id == diffID {
			return true
		}
	}
	return false
}

// MarkHandled moves a diff id out of Pending and into Handled, recording its
// decision. Idempotent.
func (s *MachineSnapshot) MarkHandled(diffID string, decision Decision) {
	out := s.Pending[:0:0]
	for _, id := range s.Pending {
		if id != diffID {
			out = append(out, id)
		}
	}
	s.Pending = out

	found := false
	for _, id := range s.Handled {
		if id == diffID {
			found = true
			break
		}
	}
	if !found {
		s.Handled = append(s.Handled, diffID)
	}

	if s.Decisions == nil {
		s.Decisions = make(map[string]Decision)
	}
	s.Decisions[diffID] = decision
}

// AllPendingDecided reports whether every id in Pending has a recorded
// decision — the completeness check resume() performs.
func (s *MachineSnapshot) AllPendingDecided() bool {
	for _, id := range s.Pending {
		if _, ok := s.Decisions[id]; !ok {
			return false
		}
	}
	return true
}
