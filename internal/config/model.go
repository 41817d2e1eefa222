package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/borzov/photo-validation-service/internal/checks"
	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Default system settings for freshly derived configurations.
const (
	defaultMaxCheckTime  = 10.0
	defaultMaxConcurrent = 4
)

// Load parses a configuration document from JSON.
func Load(data []byte) (*schema.Configuration, error) {
	var cfg schema.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "malformed configuration document").WithCause(err)
	}
	return &cfg, nil
}

// LoadYAML parses a configuration document from YAML. The document is
// normalized through JSON so both formats validate identically.
func LoadYAML(data []byte) (*schema.Configuration, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "malformed YAML configuration").WithCause(err)
	}
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "YAML configuration is not JSON-compatible").WithCause(err)
	}
	return Load(jsonBytes)
}

// Export renders a configuration as indented canonical JSON.
func Export(cfg *schema.Configuration) ([]byte, error) {
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "failed to serialize configuration").WithCause(err)
	}
	return out, nil
}

// Validate runs the full validation pass over a configuration against the
// discovered registry: structural schema first, then every semantic rule.
// All issues are collected in one ValidationResult rather than stopping at
// the first failure.
func Validate(cfg *schema.Configuration, reg *checks.Registry) (*schema.ValidationResult, error) {
	result := &schema.ValidationResult{}
	if cfg == nil {
		result.AddError("/", "structure", "configuration is nil")
		return result, nil
	}

	if err := validateStructure(cfg, result); err != nil {
		return nil, err
	}

	validateCheckOrder(cfg, result)
	validateChecks(cfg, reg, result)
	validatePolicies(cfg, result)
	return result, nil
}

// validateCheckOrder enforces that check_order is an exact permutation of
// the keys of the checks map: no duplicates, nothing missing, nothing extra.
func validateCheckOrder(cfg *schema.Configuration, result *schema.ValidationResult) {
	seen := make(map[string]bool, len(cfg.CheckOrder))
	for i, name := range cfg.CheckOrder {
		if seen[name] {
			result.AddError(fmt.Sprintf("/check_order/%d", i), "order_duplicate",
				fmt.Sprintf("check %q listed more than once in check_order", name))
			continue
		}
		seen[name] = true
		if _, ok := cfg.Checks[name]; !ok {
			result.AddError(fmt.Sprintf("/check_order/%d", i), "order_unknown",
				fmt.Sprintf("check %q appears in check_order but has no settings block", name))
		}
	}
	for name := range cfg.Checks {
		if !seen[name] {
			result.AddError("/check_order", "order_missing",
				fmt.Sprintf("check %q has settings but is missing from check_order", name))
		}
	}
}

// validateChecks verifies every configured check exists in the registry and
// that its parameter values satisfy the declared specifications.
func validateChecks(cfg *schema.Configuration, reg *checks.Registry, result *schema.ValidationResult) {
	for name, settings := range cfg.Checks {
		desc, _, err := reg.Get(name)
		if err != nil {
			result.AddError("/checks/"+name, "unknown_check",
				fmt.Sprintf("check %q is not registered", name))
			continue
		}

		for param, value := range settings.Params {
			spec, ok := desc.ParamSpec(param)
			if !ok {
				result.AddError(fmt.Sprintf("/checks/%s/params/%s", name, param), "unknown_param",
					fmt.Sprintf("check %q has no parameter %q", name, param))
				continue
			}
			if err := spec.ValidateValue(value); err != nil {
				result.AddError(fmt.Sprintf("/checks/%s/params/%s", name, param), "invalid_param", err.Error())
			}
		}

		for _, spec := range desc.Params {
			if !spec.Required || spec.Default != nil {
				continue
			}
			if _, ok := settings.Params[spec.Name]; !ok {
				result.AddError(fmt.Sprintf("/checks/%s/params/%s", name, spec.Name), "missing_param",
					fmt.Sprintf("required parameter %q of check %q has no value and no default", spec.Name, name))
			}
		}
	}
}

// validatePolicies checks policy rule names are unique. Expression syntax is
// verified when the policy evaluator compiles the rules.
func validatePolicies(cfg *schema.Configuration, result *schema.ValidationResult) {
	seen := make(map[string]bool, len(cfg.Policies))
	for i, rule := range cfg.Policies {
		if seen[rule.Name] {
			result.AddError(fmt.Sprintf("/policies/%d", i), "policy_duplicate",
				fmt.Sprintf("policy rule %q defined more than once", rule.Name))
		}
		seen[rule.Name] = true
	}
}

// Merge overlays a partial document onto a base configuration. Nested maps
// merge key by key; scalars, arrays, and the check_order list replace
// wholesale. The base is not modified.
func Merge(base *schema.Configuration, patch map[string]any) (*schema.Configuration, error) {
	baseBytes, err := json.Marshal(base)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "failed to serialize base configuration").WithCause(err)
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseBytes, &baseMap); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "failed to decode base configuration").WithCause(err)
	}

	merged := deepMerge(baseMap, patch)
	mergedBytes, err := json.Marshal(merged)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfigValidation, "failed to serialize merged configuration").WithCause(err)
	}
	return Load(mergedBytes)
}

// deepMerge merges patch into base recursively. Only map values merge;
// anything else in patch wins.
func deepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		if pm, ok := pv.(map[string]any); ok {
			if bm, ok := out[k].(map[string]any); ok {
				out[k] = deepMerge(bm, pm)
				continue
			}
		}
		out[k] = pv
	}
	return out
}

// Defaults derives a complete default configuration from the registry:
// every discovered check with its descriptor defaults, ordered by discovery
// order. LastModified is left zero so repeated derivations are identical.
func Defaults(reg *checks.Registry) *schema.Configuration {
	cfg := &schema.Configuration{
		Version: schema.DefaultConfigVersion,
		System: schema.SystemSettings{
			MaxCheckTime:  defaultMaxCheckTime,
			StopOnFailure: false,
			MaxConcurrent: defaultMaxConcurrent,
		},
		CheckOrder: reg.Names(),
		Checks:     make(map[string]schema.CheckSettings, reg.Count()),
	}

	for _, name := range cfg.CheckOrder {
		desc, _, err := reg.Get(name)
		if err != nil {
			continue
		}
		params := make(map[string]any, len(desc.Params))
		for _, spec := range desc.Params {
			if spec.Default != nil {
				params[spec.Name] = spec.Default
			}
		}
		cfg.Checks[name] = schema.CheckSettings{
			Enabled: desc.EnabledByDefault,
			Params:  params,
		}
	}
	return cfg
}
