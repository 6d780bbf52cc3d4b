package policy

import (
	"sort"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

// Registry holds the built-in mode policies.
// It only seeds mode files; enforcement always reads the files.
type Registry struct {
	policies map[string]ModePolicy
}

// NewRegistry creates a registry with all built-in modes.
func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]ModePolicy),
	}

	r.Register(ProductivityPolicy{})
	r.Register(CreativityPolicy{})
	r.Register(SocialPolicy{})

	return r
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...ModePolicy) *Registry {
	r := &Registry{
		policies: make(map[string]ModePolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry.
func (r *Registry) Register(p ModePolicy) {
	r.policies[p.ID()] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (ModePolicy, bool) {
	p, ok := r.policies[id]
	return p, ok
}

// GetAll returns all registered policies sorted by ID.
func (r *Registry) GetAll() []ModePolicy {
	result := make([]ModePolicy, 0, len(r.policies))
	for _, p := range r.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// List returns all policy IDs sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ToDefinition converts a ModePolicy into a storable mode definition.
func ToDefinition(p ModePolicy) domain.ModeDefinition {
	return domain.ModeDefinition{
		Name:       p.ID(),
		AllowList:  p.AllowedApps(),
		BlockTable: ExpandBlockedSites(p.BlockedSites()),
	}
}
