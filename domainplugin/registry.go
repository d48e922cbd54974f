// Package domainplugin binds a domain identifier to the ensemble of
// skills, checklist, and baselines needed to review one contract
// family. Descriptors are layered YAML files, one directory per
// contract family.
package domainplugin

import (
	"sync"

	"github.com/c360studio/clausereview/model"
)

// Registry holds registered DomainPlugins, read-mostly after startup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]model.DomainPlugin
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]model.DomainPlugin)}
}

// Register associates a plugin's domain-specific skills, checklist, and
// baseline map with its domain id.
func (r *Registry) Register(plugin model.DomainPlugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[plugin.DomainID]; ok {
		return ErrDuplicateDomain
	}
	r.plugins[plugin.DomainID] = plugin
	return nil
}

// EffectiveSkills returns the domain's skills keyed by id, the union the
// dispatcher call surface exposes for this domain. Domain-specific skills
// are expected to already carry non-empty DomainID; generic
// (domain-independent) skills are supplied by the caller since the
// registry itself only tracks domain-scoped ones.
func (r *Registry) EffectiveSkills(domainID string, generic []model.SkillRegistration) map[string]model.SkillRegistration {
	out := make(map[string]model.SkillRegistration, len(generic))
	for _, s := range generic {
		out[s.ID] = s
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if plugin, ok := r.plugins[domainID]; ok {
		for _, s := range plugin.Skills {
			out[s.ID] = s
		}
	}
	return out
}

// Checklist returns the domain's ordered review plan, or an empty slice if
// no plugin is registered — "no domain plugin" is a valid mode that falls
// back to whole-document review.
func (r *Registry) Checklist(domainID string) []model.ReviewChecklistItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugin, ok := r.plugins[domainID]
	if !ok {
		return nil
	}
	return plugin.Checklist
}

// List returns a DomainDescriptor for every registered plugin, the
// introspection surface behind the command surface's list_domains.
func (r *Registry) List() []model.DomainDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DomainDescriptor, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		out = append(out, plugin.Describe())
	}
	return out
}

// Baseline returns the domain's reference text for clauseID, if any.
func (r *Registry) Baseline(domainID, clauseID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugin, ok := r.plugins[domainID]
	if !ok {
		return "", false
	}
	text, ok := plugin.Baselines[clauseID]
	return text, ok
}
