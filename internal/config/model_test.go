package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borzov/photo-validation-service/internal/checks"
	"github.com/borzov/photo-validation-service/pkg/schema"
)

func testRegistry(t *testing.T) *checks.Registry {
	t.Helper()
	reg, err := checks.Discover(checks.Builtins()...)
	require.NoError(t, err)
	return reg
}

func validConfig(t *testing.T) *schema.Configuration {
	t.Helper()
	return Defaults(testRegistry(t))
}

func TestDefaults_IsValid(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "defaults must validate: %+v", result.Errors)
	assert.Equal(t, reg.Count(), len(cfg.Checks))
	assert.Equal(t, reg.Names(), cfg.CheckOrder)
}

func TestDefaults_IsDeterministic(t *testing.T) {
	reg := testRegistry(t)
	a, err := Export(Defaults(reg))
	require.NoError(t, err)
	b, err := Export(Defaults(reg))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestValidate_UnknownCheck(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.Checks["imaginary"] = schema.CheckSettings{Enabled: true}
	cfg.CheckOrder = append(cfg.CheckOrder, "imaginary")

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "unknown_check")
}

func TestValidate_OrderMissingEntry(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.CheckOrder = cfg.CheckOrder[1:]

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "order_missing")
}

func TestValidate_OrderDuplicate(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.CheckOrder = append(cfg.CheckOrder, cfg.CheckOrder[0])

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "order_duplicate")
}

func TestValidate_OrderUnknownEntry(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.CheckOrder = append(cfg.CheckOrder, "phantom")

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "order_unknown")
}

func TestValidate_UnknownParam(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.Checks["blurriness"].Params["mystery_knob"] = 7

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "unknown_param")
}

func TestValidate_ParamOutOfBounds(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.Checks["blurriness"].Params["laplacian_threshold"] = 9999

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "invalid_param")
}

// calibratedCheck declares a required parameter with no default, so every
// configuration must supply a value explicitly.
type calibratedCheck struct{}

func (calibratedCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:             "calibrated",
		DisplayName:      "Calibrated",
		Category:         schema.CategoryQuality,
		Version:          "1.0.0",
		EnabledByDefault: true,
		Params: []schema.ParamSpec{
			{Name: "model_path", Kind: schema.ParamString, Required: true},
		},
	}
}

func (calibratedCheck) Evaluate(context.Context, *checks.Request) (*checks.Result, error) {
	return &checks.Result{Status: schema.StatusPassed}, nil
}

func TestValidate_MissingRequiredParam(t *testing.T) {
	reg, err := checks.Discover(func() checks.Check { return calibratedCheck{} })
	require.NoError(t, err)

	cfg := Defaults(reg)
	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "missing_param")

	// Supplying the value clears the error.
	cfg.Checks["calibrated"] = schema.CheckSettings{
		Enabled: true,
		Params:  map[string]any{"model_path": "/models/calib.bin"},
	}
	result, err = Validate(cfg, reg)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "unexpected errors: %+v", result.Errors)
}

func TestValidate_ParamWrongType(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.Checks["color_mode"].Params["required_mode"] = "sepia"

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "invalid_param")
}

func TestValidate_StructuralErrors(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.Version = ""
	cfg.System.MaxCheckTime = 0

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "structure")
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	cfg.Checks["blurriness"].Params["laplacian_threshold"] = 9999
	cfg.Checks["lighting"].Params["mystery"] = 1
	cfg.CheckOrder = append(cfg.CheckOrder, "phantom")

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(result.Errors), 3)
}

func TestValidate_DuplicatePolicy(t *testing.T) {
	reg := testRegistry(t)
	cfg := Defaults(reg)
	rule := schema.PolicyRule{Name: "r", Engine: "expr", Expression: "failed > 0", Action: "reject"}
	cfg.Policies = []schema.PolicyRule{rule, rule}

	result, err := Validate(cfg, reg)
	require.NoError(t, err)
	require.False(t, result.Valid())
	assertHasCode(t, result, "policy_duplicate")
}

func TestMerge_DeepMergesParams(t *testing.T) {
	base := validConfig(t)
	merged, err := Merge(base, map[string]any{
		"checks": map[string]any{
			"blurriness": map[string]any{
				"params": map[string]any{"laplacian_threshold": 60},
			},
		},
	})
	require.NoError(t, err)

	// Patched value applied.
	assert.EqualValues(t, 60, merged.Checks["blurriness"].Params["laplacian_threshold"])
	// Sibling params survive the merge.
	assert.NotEmpty(t, merged.Checks["lighting"].Params)
	// Base untouched.
	assert.EqualValues(t, 40, base.Checks["blurriness"].Params["laplacian_threshold"])
}

func TestMerge_ScalarsReplace(t *testing.T) {
	base := validConfig(t)
	merged, err := Merge(base, map[string]any{
		"system": map[string]any{"stop_on_failure": true},
	})
	require.NoError(t, err)
	assert.True(t, merged.System.StopOnFailure)
	// Untouched system fields survive.
	assert.Equal(t, base.System.MaxCheckTime, merged.System.MaxCheckTime)
}

func TestExportLoad_RoundTrip(t *testing.T) {
	cfg := validConfig(t)
	data, err := Export(cfg)
	require.NoError(t, err)

	loaded, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.CheckOrder, loaded.CheckOrder)
	assert.Equal(t, cfg.System.MaxCheckTime, loaded.System.MaxCheckTime)
}

func TestLoadYAML(t *testing.T) {
	doc := []byte(`
version: "2.1"
system:
  max_check_time: 5
  max_concurrent: 2
check_order: [blurriness]
checks:
  blurriness:
    enabled: true
    params:
      laplacian_threshold: 50
`)
	cfg, err := LoadYAML(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"blurriness"}, cfg.CheckOrder)
	assert.EqualValues(t, 50, cfg.Checks["blurriness"].Params["laplacian_threshold"])

	result, err := Validate(cfg, testRegistry(t))
	require.NoError(t, err)
	assert.True(t, result.Valid(), "%+v", result.Errors)
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load([]byte("{not json"))
	require.Error(t, err)
}

func assertHasCode(t *testing.T, result *schema.ValidationResult, code string) {
	t.Helper()
	for _, e := range result.Errors {
		if e.Code == code {
			return
		}
	}
	t.Fatalf("expected an error with code %q, got %+v", code, result.Errors)
}
