package approval

import "errors"

var (
	// ErrTaskNotSuspended is returned when approve/resume is called against
	// a task that is not in the interrupted phase.
	ErrTaskNotSuspended = errors.New("approval: task is not suspended")

	// ErrDiffNotPending is returned when approve targets a diff that has
	// already been decided.
	ErrDiffNotPending = errors.New("approval: diff is not pending")

	// ErrApprovalIncomplete is returned by resume() when at least one
	// pending diff still lacks a recorded decision.
	ErrApprovalIncomplete = errors.New("approval: not every pending diff has a decision")
)
