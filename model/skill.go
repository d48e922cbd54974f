package model

import "encoding/json"

// SkillBackend is the tagged-variant discriminator for where a skill
// executes.
type SkillBackend string

const (
	BackendLocal  SkillBackend = "local"
	BackendRemote SkillBackend = "remote"
)

// SkillRegistration describes one named capability the dispatcher can call.
// Exactly one of LocalHandlerID / RemoteWorkflowID is populated, selected by
// Backend.
type SkillRegistration struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	OutputSchema json.RawMessage `json:"output_schema"`
	Backend      SkillBackend    `json:"backend"`

	// LocalHandlerID names the handler registered via skill.RegisterLocal;
	// set only when Backend == BackendLocal.
	LocalHandlerID string `json:"local_handler_id,omitempty"`

	// RemoteWorkflowID names the workflow-service workflow to submit to;
	// set only when Backend == BackendRemote.
	RemoteWorkflowID string `json:"remote_workflow_id,omitempty"`

	// DomainID is empty for generic skills, or set for a domain-specific
	// skill contributed by a DomainPlugin.
	DomainID string `json:"domain_id,omitempty"`
}

// Validate checks the backend-specific fields required at registration time.
func (r SkillRegistration) Validate() error {
	if r.ID == "" {
		return ErrSkillIDEmpty
	}
	switch r.Backend {
	case BackendLocal:
		if r.LocalHandlerID == "" {
			return ErrLocalHandlerMissing
		}
	case BackendRemote:
		if r.RemoteWorkflowID == "" {
			return ErrRemoteWorkflowIDMissing
		}
	default:
		return ErrUnknownBackend
	}
	return nil
}
