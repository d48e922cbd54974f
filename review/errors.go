package review

import "errors"

var (
	// ErrNoPrimaryDocument is a structural failure: setup cannot proceed
	// without a primary document's parsed structure.
	ErrNoPrimaryDocument = errors.New("review: task has no primary document structure")

	// ErrAwaitingApproval is returned by Recover when the latest snapshot
	// is parked at save_clause — the task is suspended and must be resumed
	// through pkg/approval, not recovered directly.
	ErrAwaitingApproval = errors.New("review: task is awaiting human approval")

	// ErrUnknownNode is a programmer error: a snapshot names a node this
	// machine build doesn't recognize.
	ErrUnknownNode = errors.New("review: unknown node")
)
