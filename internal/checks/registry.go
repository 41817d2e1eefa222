package checks

import (
	"sync"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// DiscoveryIssue records a check excluded during discovery and why.
type DiscoveryIssue struct {
	Check  string
	Result *schema.ValidationResult
}

// Registry maps check names to their descriptors and factories. Built once by
// Discover and treated as immutable; a refresh builds a whole new Registry,
// never a partial mutation.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	order      []string // discovery order, canonical default check_order
	categories map[schema.Category][]string
	issues     []DiscoveryIssue
}

type entry struct {
	desc    schema.Descriptor
	factory Factory
}

// Discover builds a Registry from an explicit list of check factories.
// Each factory's descriptor is validated: a duplicate name is a fatal
// conflict, a malformed descriptor excludes only that check and is recorded
// as a DiscoveryIssue, and an empty final set is fatal since no checks means
// no possible verdicts.
func Discover(factories ...Factory) (*Registry, error) {
	r := &Registry{
		entries:    make(map[string]*entry, len(factories)),
		categories: make(map[schema.Category][]string),
	}

	for _, factory := range factories {
		if factory == nil {
			continue
		}
		desc := factory().Describe()

		if _, exists := r.entries[desc.Name]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeConflict,
				"check %q registered twice", desc.Name)
		}

		if result := desc.Validate(); !result.Valid() {
			r.issues = append(r.issues, DiscoveryIssue{Check: desc.Name, Result: result})
			continue
		}

		r.entries[desc.Name] = &entry{desc: desc, factory: factory}
		r.order = append(r.order, desc.Name)
		r.categories[desc.Category] = append(r.categories[desc.Category], desc.Name)
	}

	if len(r.entries) == 0 {
		return nil, schema.NewError(schema.ErrCodeNoChecks,
			"discovery produced no usable checks")
	}

	return r, nil
}

// Get retrieves a check's descriptor and factory by name.
func (r *Registry) Get(name string) (schema.Descriptor, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return schema.Descriptor{}, nil, schema.NewErrorf(schema.ErrCodeNotFound,
			"check %q not registered", name)
	}
	return e.desc, e.factory, nil
}

// Has reports whether a check is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// All returns every descriptor keyed by name.
func (r *Registry) All() map[string]schema.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]schema.Descriptor, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.desc
	}
	return out
}

// Names returns check names in discovery order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ByCategory returns descriptors grouped into category buckets, each bucket
// in discovery order. Every registered check appears in exactly one bucket.
func (r *Registry) ByCategory() map[schema.Category][]schema.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[schema.Category][]schema.Descriptor, len(r.categories))
	for cat, names := range r.categories {
		descs := make([]schema.Descriptor, 0, len(names))
		for _, name := range names {
			descs = append(descs, r.entries[name].desc)
		}
		out[cat] = descs
	}
	return out
}

// Count returns the number of registered checks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Issues returns the checks excluded during discovery.
func (r *Registry) Issues() []DiscoveryIssue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DiscoveryIssue(nil), r.issues...)
}
