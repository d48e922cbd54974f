package model

import "time"

// DiffAction is the kind of edit a DocumentDiff proposes.
type DiffAction string

const (
	ActionReplace DiffAction = "replace"
	ActionDelete  DiffAction = "delete"
	ActionInsert  DiffAction = "insert"
)

// DiffStatus is the lifecycle of a proposed edit. Transitions are monotone:
// pending -> approved or pending -> rejected, never back.
type DiffStatus string

const (
	DiffPending  DiffStatus = "pending"
	DiffApproved DiffStatus = "approved"
	DiffRejected DiffStatus = "rejected"
)

// CanTransitionTo enforces the two-edge, terminal-only status graph:
// approved and rejected are final, and no other edges exist.
func (s DiffStatus) CanTransitionTo(target DiffStatus) bool {
	if s != DiffPending {
		return false
	}
	return target == DiffApproved || target == DiffRejected
}

// DiffLocation pins a proposed edit to a specific place in a document.
type DiffLocation struct {
	DocumentID  string   `json:"document_id"`
	Span        TextSpan `json:"span"`
	ParagraphID string   `json:"paragraph_id,omitempty"`
}

// DocumentDiff is the atomic unit of proposed edit.
type DocumentDiff struct {
	ID       string     `json:"id"`
	TaskID   string     `json:"task_id"`
	ClauseID string     `json:"clause_id"`
	Action   DiffAction `json:"action"`

	OriginalText string       `json:"original_text"`
	ProposedText string       `json:"proposed_text"`
	Location     DiffLocation `json:"location"`

	Risk      RiskLevel  `json:"risk"`
	Rationale string     `json:"rationale"`
	Status    DiffStatus `json:"status"`

	// UserFeedback / UserModifiedText are populated by the approval
	// coordinator when a decision carries them.
	UserFeedback     string `json:"user_feedback,omitempty"`
	UserModifiedText string `json:"user_modified_text,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveText returns the text that should be applied: a user override
// when present, else the skill-proposed text. A user override is the
// canonical proposed text, never a new diff.
func (d *DocumentDiff) EffectiveText() string {
	if d.UserModifiedText != "" {
		return d.UserModifiedText
	}
	return d.ProposedText
}

// Decision is what the approval coordinator records against a pending diff.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ApprovalAudit is one append-only decision record.
type ApprovalAudit struct {
	DiffID    string    `json:"diff_id"`
	TaskID    string    `json:"task_id"`
	Decision  Decision  `json:"decision"`
	Actor     string    `json:"actor"`
	Feedback  string    `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
