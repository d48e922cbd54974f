package model

import "errors"

var (
	ErrSkillIDEmpty            = errors.New("model: skill id must not be empty")
	ErrLocalHandlerMissing     = errors.New("model: local backend requires a local handler id")
	ErrRemoteWorkflowIDMissing = errors.New("model: remote backend requires a remote workflow id")
	ErrUnknownBackend          = errors.New("model: unknown skill backend")
)
