package config

import (
	"sync"
	"sync/atomic"

	"github.com/borzov/photo-validation-service/internal/checks"
	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Holder publishes the active configuration snapshot. Readers get an
// immutable pointer via Current; updates swap the whole snapshot atomically
// after a full validation pass, so an in-flight run never observes a
// half-applied change.
type Holder struct {
	current atomic.Pointer[schema.Configuration]
	reg     *checks.Registry

	// writeMu serializes writers so concurrent patches do not lose updates.
	// Readers never take it.
	writeMu sync.Mutex
}

// NewHolder validates the initial configuration and installs it.
func NewHolder(initial *schema.Configuration, reg *checks.Registry) (*Holder, error) {
	h := &Holder{reg: reg}
	if err := h.Replace(initial); err != nil {
		return nil, err
	}
	return h, nil
}

// Current returns the active snapshot. The returned value must be treated
// as read-only; mutating callers clone first.
func (h *Holder) Current() *schema.Configuration {
	return h.current.Load()
}

// Replace validates a candidate configuration and, if valid, makes it the
// active snapshot. On any validation error the previous snapshot stays
// active and the full issue report is returned.
func (h *Holder) Replace(candidate *schema.Configuration) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.replaceLocked(candidate)
}

func (h *Holder) replaceLocked(candidate *schema.Configuration) error {
	result, err := Validate(candidate, h.reg)
	if err != nil {
		return err
	}
	if err := result.ToError(); err != nil {
		return err
	}
	h.current.Store(candidate.Clone())
	return nil
}

// Update applies a partial patch to the current snapshot and swaps in the
// merged result. The merge-validate-swap sequence leaves the active
// configuration untouched when the patch is invalid.
func (h *Holder) Update(patch map[string]any) (*schema.Configuration, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	merged, err := Merge(h.Current(), patch)
	if err != nil {
		return nil, err
	}
	if err := h.replaceLocked(merged); err != nil {
		return nil, err
	}
	return h.Current(), nil
}
