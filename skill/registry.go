// Package skill implements the uniform call surface the review state
// machine uses regardless of whether a capability runs in-process or as an
// external workflow. The registry is a read-mostly map built at process
// startup; the dispatcher resolves one of two executor variants per
// call.
package skill

import (
	"reflect"
	"sync"

	"github.com/c360studio/clausereview/model"
)

// Registry holds SkillRegistrations, read-mostly after startup.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]model.SkillRegistration
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]model.SkillRegistration)}
}

// Register validates and stores a SkillRegistration. Re-registering the
// same id within a process lifetime is idempotent as long as the payload
// is identical; a differing payload is rejected as a duplicate.
func (r *Registry) Register(reg model.SkillRegistration) error {
	if err := reg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[reg.ID]; ok {
		if reflect.DeepEqual(existing, reg) {
			return nil
		}
		return ErrDuplicateSkillID
	}
	r.byID[reg.ID] = reg
	return nil
}

// Get resolves a SkillRegistration by id.
func (r *Registry) Get(skillID string) (model.SkillRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[skillID]
	return reg, ok
}

// List returns every registration matching the optional domain and
// backend filters; an empty filter matches everything.
func (r *Registry) List(domainFilter string, backendFilter model.SkillBackend) []model.SkillRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SkillRegistration, 0, len(r.byID))
	for _, reg := range r.byID {
		if domainFilter != "" && reg.DomainID != domainFilter {
			continue
		}
		if backendFilter != "" && reg.Backend != backendFilter {
			continue
		}
		out = append(out, reg)
	}
	return out
}
