package model

// DomainPlugin binds a domain identifier to the skills, checklist, and
// baseline reference texts needed to review one contract family.
type DomainPlugin struct {
	DomainID  string                `json:"domain_id" yaml:"domain_id"`
	Skills    []SkillRegistration   `json:"skills" yaml:"-"`
	Checklist []ReviewChecklistItem `json:"checklist" yaml:"checklist"`
	Baselines map[string]string     `json:"baselines" yaml:"baselines"`
}

// DomainDescriptor is the introspection-friendly summary of a registered
// domain plugin returned by the command surface's list_domains. It
// deliberately omits the full checklist/baseline bodies — callers that
// need those call checklist()/baseline() directly.
type DomainDescriptor struct {
	DomainID       string `json:"domain_id"`
	ChecklistItems int    `json:"checklist_items"`
	BaselineCount  int    `json:"baseline_count"`
	SkillCount     int    `json:"skill_count"`
}

// Describe summarizes a DomainPlugin into its DomainDescriptor.
func (p DomainPlugin) Describe() DomainDescriptor {
	return DomainDescriptor{
		DomainID:       p.DomainID,
		ChecklistItems: len(p.Checklist),
		BaselineCount:  len(p.Baselines),
		SkillCount:     len(p.Skills),
	}
}
