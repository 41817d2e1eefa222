package schema

import (
	"fmt"
	"math"
	"time"
)

// ParamKind is the type tag of a configurable check parameter.
type ParamKind string

const (
	ParamBool   ParamKind = "bool"
	ParamInt    ParamKind = "int"
	ParamFloat  ParamKind = "float"
	ParamString ParamKind = "string"
)

// Valid reports whether the kind is one of the known tags.
func (k ParamKind) Valid() bool {
	switch k {
	case ParamBool, ParamInt, ParamFloat, ParamString:
		return true
	}
	return false
}

// ParamSpec describes a single configurable value of a check: its kind,
// default, bounds and allowed choices. Immutable after registry discovery.
type ParamSpec struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Default     any       `json:"default,omitempty"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Choices     []any     `json:"choices,omitempty"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// ValidateValue checks a candidate value against the spec's kind, bounds and
// choices. Numbers arriving from JSON decode as float64; integral float64
// values are accepted for int parameters.
func (p *ParamSpec) ValidateValue(v any) error {
	switch p.Kind {
	case ParamBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("parameter %q must be bool, got %T", p.Name, v)
		}
		return nil

	case ParamString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("parameter %q must be string, got %T", p.Name, v)
		}
		return p.checkChoice(s)

	case ParamInt:
		n, ok := numericValue(v)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("parameter %q must be int, got %v", p.Name, v)
		}
		return p.checkNumeric(n)

	case ParamFloat:
		n, ok := numericValue(v)
		if !ok {
			return fmt.Errorf("parameter %q must be float, got %T", p.Name, v)
		}
		return p.checkNumeric(n)
	}
	return fmt.Errorf("parameter %q has unknown kind %q", p.Name, p.Kind)
}

// ValidateDefault checks that the declared default satisfies the spec itself.
// A required parameter may omit the default entirely.
func (p *ParamSpec) ValidateDefault() error {
	if p.Default == nil {
		return nil
	}
	if err := p.ValidateValue(p.Default); err != nil {
		return fmt.Errorf("default value invalid: %w", err)
	}
	return nil
}

func (p *ParamSpec) checkNumeric(n float64) error {
	if p.Min != nil && n < *p.Min {
		return fmt.Errorf("parameter %q must be >= %v, got %v", p.Name, *p.Min, n)
	}
	if p.Max != nil && n > *p.Max {
		return fmt.Errorf("parameter %q must be <= %v, got %v", p.Name, *p.Max, n)
	}
	if len(p.Choices) > 0 {
		for _, c := range p.Choices {
			if cn, ok := numericValue(c); ok && cn == n {
				return nil
			}
		}
		return fmt.Errorf("parameter %q must be one of %v, got %v", p.Name, p.Choices, n)
	}
	return nil
}

func (p *ParamSpec) checkChoice(s string) error {
	if len(p.Choices) == 0 {
		return nil
	}
	for _, c := range p.Choices {
		if cs, ok := c.(string); ok && cs == s {
			return nil
		}
	}
	return fmt.Errorf("parameter %q must be one of %v, got %q", p.Name, p.Choices, s)
}

// numericValue coerces the numeric types produced by JSON decoding and Go
// literals to float64.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Category groups checks for configuration-authoring surfaces.
type Category string

const (
	CategoryFace       Category = "face"
	CategoryQuality    Category = "quality"
	CategoryBackground Category = "background"
	CategoryContent    Category = "content"
)

// Valid reports whether the category is a member of the known set.
func (c Category) Valid() bool {
	switch c {
	case CategoryFace, CategoryQuality, CategoryBackground, CategoryContent:
		return true
	}
	return false
}

// Descriptor is the static self-description of one check implementation.
// Created once at discovery time and immutable for the process lifetime.
type Descriptor struct {
	Name             string        `json:"name"`
	DisplayName      string        `json:"display_name"`
	Description      string        `json:"description,omitempty"`
	Category         Category      `json:"category"`
	Version          string        `json:"version"`
	Author           string        `json:"author,omitempty"`
	Params           []ParamSpec   `json:"parameters,omitempty"`
	Dependencies     []string      `json:"dependencies,omitempty"`
	EnabledByDefault bool          `json:"enabled_by_default"`

	// Advisory marks NEEDS_REVIEW outcomes from this check as informational:
	// they appear in the result trail but do not escalate the verdict.
	Advisory bool `json:"advisory,omitempty"`

	// MaxDuration is an optional internal limit stricter than the system
	// ceiling. The effective per-check timeout is the minimum of the two.
	MaxDuration time.Duration `json:"max_duration,omitempty"`
}

// Validate checks the descriptor for discovery-time correctness.
// All problems are collected into a single ValidationResult.
func (d *Descriptor) Validate() *ValidationResult {
	result := &ValidationResult{}

	if d.Name == "" {
		result.AddError("name", ErrCodeDiscovery, "check name is empty")
	}
	if d.DisplayName == "" {
		result.AddWarning("display_name", ErrCodeDiscovery, "display name is empty")
	}
	if !d.Category.Valid() {
		result.AddError("category", ErrCodeDiscovery,
			fmt.Sprintf("unknown category %q", d.Category))
	}
	if d.Version == "" {
		result.AddWarning("version", ErrCodeDiscovery, "version is empty")
	}

	seen := make(map[string]struct{}, len(d.Params))
	for i := range d.Params {
		p := &d.Params[i]
		path := fmt.Sprintf("parameters[%d]", i)
		if p.Name == "" {
			result.AddError(path+".name", ErrCodeDiscovery, "parameter name is empty")
			continue
		}
		if _, dup := seen[p.Name]; dup {
			result.AddError(path+".name", ErrCodeDiscovery,
				fmt.Sprintf("duplicate parameter %q", p.Name))
		}
		seen[p.Name] = struct{}{}
		if !p.Kind.Valid() {
			result.AddError(path+".kind", ErrCodeDiscovery,
				fmt.Sprintf("parameter %q has unknown kind %q", p.Name, p.Kind))
			continue
		}
		if err := p.ValidateDefault(); err != nil {
			result.AddError(path+".default", ErrCodeDiscovery, err.Error())
		}
		if p.Required && p.Default == nil {
			result.AddWarning(path+".default", ErrCodeDiscovery,
				fmt.Sprintf("required parameter %q has no default; every configuration must set it", p.Name))
		}
	}

	return result
}

// ParamSpec returns the spec for the named parameter.
func (d *Descriptor) ParamSpec(name string) (*ParamSpec, bool) {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i], true
		}
	}
	return nil, false
}
