package review

import "github.com/c360studio/clausereview/model"

// Event payloads published alongside each streamevt.Kind the machine
// emits.

type taskStartedPayload struct {
	DomainID string `json:"domain_id,omitempty"`
}

type clauseStartedPayload struct {
	ClauseID string `json:"clause_id"`
}

type skillInvokedPayload struct {
	ClauseID string `json:"clause_id"`
	SkillID  string `json:"skill_id"`
}

type skillCompletedPayload struct {
	ClauseID string `json:"clause_id"`
	SkillID  string `json:"skill_id"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

type diffProposedPayload struct {
	DiffID   string           `json:"diff_id"`
	ClauseID string           `json:"clause_id"`
	Action   model.DiffAction `json:"action"`
	Risk     model.RiskLevel  `json:"risk"`
}

type approvalRequiredPayload struct {
	PendingDiffIDs []string `json:"pending_diff_ids"`
}

type clauseCompletedPayload struct {
	ClauseID            string `json:"clause_id"`
	Degraded            bool   `json:"degraded"`
	BestEffortExhausted bool   `json:"best_effort_exhausted"`
}

type reviewCompletePayload struct {
	ClauseCount   int `json:"clause_count"`
	AppliedDiffs  int `json:"applied_diffs"`
	RejectedDiffs int `json:"rejected_diffs"`
}

type taskFailedPayload struct {
	Reason string `json:"reason"`
}
