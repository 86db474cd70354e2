package profile

import (
	"fmt"
	"sync"

	"github.com/adguard-community/cfblock/cosmetic"
	"github.com/adguard-community/cfblock/matcher"
	"github.com/adguard-community/cfblock/rule"
)

// Registry owns a set of named Profiles and dispatches queries across
// all of them. Each Profile keeps its own independently built trie; the
// Registry never merges them into one shared index.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Profile
	nextID int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Profile{}}
}

// Add registers p under its Name, stamping it with the next FilterListID
// if it doesn't already have one. Returns an error if the name is
// already in use.
func (reg *Registry) Add(p *Profile) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.byName[p.Name]; ok {
		return fmt.Errorf("profile registry: duplicate profile name: %s", p.Name)
	}

	if p.FilterListID == 0 {
		reg.nextID++
		p.FilterListID = reg.nextID
	}

	reg.byName[p.Name] = p
	return nil
}

// Remove unregisters and clears the named profile, if present.
func (reg *Registry) Remove(name string) {
	reg.mu.Lock()
	p, ok := reg.byName[name]
	if ok {
		delete(reg.byName, name)
	}
	reg.mu.Unlock()

	if ok {
		p.Remove()
	}
}

// Get returns the named profile, or nil if it isn't registered.
func (reg *Registry) Get(name string) *Profile {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.byName[name]
}

// List returns every registered profile, order unspecified.
func (reg *Registry) List() []*Profile {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	out := make([]*Profile, 0, len(reg.byName))
	for _, p := range reg.byName {
		out = append(out, p)
	}
	return out
}

// CheckURL queries every registered profile and combines their verdicts:
// an exception from any profile wins immediately (an exception is a
// deliberate opt-out and should not be overridden by another list's
// block), otherwise the last profile reporting a block wins, consistent
// with a single profile's own last-block-wins aggregation in
// matcher.CheckURL. A profile with no opinion (IsBlocked and
// IsException both false) does not affect the outcome.
func (reg *Registry) CheckURL(baseURL, requestURL string, resourceType rule.ResourceType) matcher.CheckResult {
	profiles := reg.List()

	var result matcher.CheckResult
	for _, p := range profiles {
		r := p.CheckURL(baseURL, requestURL, resourceType)

		if r.IsException {
			return r
		}

		if r.IsBlocked {
			result = r
		}
	}

	return result
}

// GetCosmeticFilters unions the cosmetic selectors and exceptions
// contributed by every registered profile for domains.
func (reg *Registry) GetCosmeticFilters(domains []string, isDomainOnly bool) cosmetic.Filters {
	profiles := reg.List()

	var out cosmetic.Filters
	for _, p := range profiles {
		f := p.GetCosmeticFilters(domains, isDomainOnly)
		out.Rules = append(out.Rules, f.Rules...)
		out.Exceptions = append(out.Exceptions, f.Exceptions...)
	}

	return out
}
