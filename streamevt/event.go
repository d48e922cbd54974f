// Package streamevt is the task-scoped event stream: callers subscribe
// to one task's subject and see every
// milestone the review state machine reaches, in order, with the ability
// to reconnect and replay from the last sequence number they saw:
// publish to a JetStream subject, consume via a purpose-built consumer
// over a long-lived, resumable subscription.
package streamevt

import (
	"encoding/json"
	"time"
)

// Kind enumerates the event kinds the review state machine emits.
type Kind string

const (
	KindTaskStarted      Kind = "task_started"
	KindClauseStarted    Kind = "clause_started"
	KindSkillInvoked     Kind = "skill_invoked"
	KindSkillCompleted   Kind = "skill_completed"
	KindDiffProposed     Kind = "diff_proposed"
	KindApprovalRequired Kind = "approval_required"
	KindDiffResolved     Kind = "diff_resolved"
	KindClauseCompleted  Kind = "clause_completed"
	KindReviewComplete   Kind = "review_complete"
	KindTaskFailed       Kind = "task_failed"
	KindHeartbeat        Kind = "heartbeat"
)

// Event is one entry in a task's event stream. Seq is the JetStream
// stream sequence the event was published at, which is monotonic and
// durable for the lifetime of the stream — the source of the strictly
// increasing per-task sequence numbers, since all
// of one task's events share one subject and JetStream preserves publish
// order per subject.
type Event struct {
	TaskID    string          `json:"task_id"`
	Seq       uint64          `json:"seq"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
