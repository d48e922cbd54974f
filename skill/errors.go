package skill

import "errors"

// Dispatch-time error classes.
var (
	ErrSkillNotRegistered = errors.New("skill: not registered")
	ErrInputInvalid       = errors.New("skill: input failed validation")
	ErrBackendUnavailable = errors.New("skill: backend unavailable")
	ErrExecutionFailed    = errors.New("skill: execution failed")
	ErrTimeout            = errors.New("skill: call timed out")
	ErrDuplicateSkillID   = errors.New("skill: id already registered")
	ErrTaskFailed         = errors.New("skill: remote task reported terminal failure")
)
