package schema

import (
	"time"
)

// DefaultConfigVersion is the version stamped on freshly derived configurations.
const DefaultConfigVersion = "2.1"

// SystemSettings is the global block of a configuration document.
type SystemSettings struct {
	// MaxCheckTime is the per-check timeout ceiling in seconds. A check may
	// declare a stricter internal limit; the stricter of the two applies.
	MaxCheckTime float64 `json:"max_check_time"`

	// StopOnFailure stops launching further checks once one completes FAILED.
	StopOnFailure bool `json:"stop_on_failure"`

	// MaxConcurrent bounds how many images may be validated simultaneously.
	// Read once when the engine starts; changing it in a hot-swapped
	// configuration takes effect on the next process start.
	MaxConcurrent int `json:"max_concurrent"`

	// CheckWorkers bounds concurrent checks within one image's run.
	// Zero means no limit beyond dependency readiness.
	CheckWorkers int `json:"check_workers,omitempty"`

	// Storage and Logging are opaque pass-through for outer surfaces.
	Storage map[string]any `json:"storage,omitempty"`
	Logging map[string]any `json:"logging,omitempty"`
}

// CheckTimeout returns MaxCheckTime as a duration.
func (s SystemSettings) CheckTimeout() time.Duration {
	return time.Duration(s.MaxCheckTime * float64(time.Second))
}

// CheckSettings is the per-check block: enabled flag plus parameter values.
type CheckSettings struct {
	Enabled bool           `json:"enabled"`
	Params  map[string]any `json:"params,omitempty"`
}

// PolicyRule is an optional post-aggregation verdict override: an expression
// evaluated over the outcome set that, when true, escalates the verdict.
// Rules can only escalate (reject or send to review), never approve.
type PolicyRule struct {
	Name       string `json:"name"`
	Engine     string `json:"engine"`     // "expr" or "cel"
	Expression string `json:"expression"`
	Action     string `json:"action"` // "reject" or "review"
}

// Configuration is the versioned validation configuration document.
// CheckOrder is the sole source of execution order; it must be a permutation
// of the keys of Checks.
type Configuration struct {
	Version      string                   `json:"version"`
	LastModified time.Time                `json:"last_modified,omitempty"`
	System       SystemSettings           `json:"system"`
	CheckOrder   []string                 `json:"check_order"`
	Checks       map[string]CheckSettings `json:"checks"`
	Policies     []PolicyRule             `json:"policies,omitempty"`
}

// Clone returns a deep copy. Snapshots handed to concurrent readers are
// never mutated in place.
func (c *Configuration) Clone() *Configuration {
	out := &Configuration{
		Version:      c.Version,
		LastModified: c.LastModified,
		System:       c.System,
		CheckOrder:   append([]string(nil), c.CheckOrder...),
		Checks:       make(map[string]CheckSettings, len(c.Checks)),
		Policies:     append([]PolicyRule(nil), c.Policies...),
	}
	out.System.Storage = cloneMap(c.System.Storage)
	out.System.Logging = cloneMap(c.System.Logging)
	for name, cs := range c.Checks {
		out.Checks[name] = CheckSettings{
			Enabled: cs.Enabled,
			Params:  cloneMap(cs.Params),
		}
	}
	return out
}

// EnabledChecks returns the names of enabled checks in execution order.
func (c *Configuration) EnabledChecks() []string {
	enabled := make([]string, 0, len(c.CheckOrder))
	for _, name := range c.CheckOrder {
		if cs, ok := c.Checks[name]; ok && cs.Enabled {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
