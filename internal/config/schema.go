package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// configSchemaJSON is the JSON Schema for configuration documents.
// Embedded as a constant to avoid filesystem dependencies.
const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://photovalid.dev/schemas/config.json",
  "type": "object",
  "required": ["version", "system", "check_order", "checks"],
  "properties": {
    "version": {
      "type": "string",
      "minLength": 1
    },
    "last_modified": {
      "type": "string"
    },
    "system": {
      "type": "object",
      "required": ["max_check_time"],
      "properties": {
        "max_check_time": {
          "type": "number",
          "exclusiveMinimum": 0
        },
        "stop_on_failure": { "type": "boolean" },
        "max_concurrent": {
          "type": "integer",
          "minimum": 1
        },
        "check_workers": {
          "type": "integer",
          "minimum": 0
        },
        "storage": { "type": "object" },
        "logging": { "type": "object" }
      },
      "additionalProperties": false
    },
    "check_order": {
      "type": "array",
      "items": {
        "type": "string",
        "minLength": 1
      }
    },
    "checks": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/check_settings" }
    },
    "policies": {
      "type": "array",
      "items": { "$ref": "#/$defs/policy_rule" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "check_settings": {
      "type": "object",
      "required": ["enabled"],
      "properties": {
        "enabled": { "type": "boolean" },
        "params": { "type": "object" }
      },
      "additionalProperties": false
    },
    "policy_rule": {
      "type": "object",
      "required": ["name", "engine", "expression", "action"],
      "properties": {
        "name": {
          "type": "string",
          "minLength": 1
        },
        "engine": {
          "type": "string",
          "enum": ["expr", "cel"]
        },
        "expression": {
          "type": "string",
          "minLength": 1
        },
        "action": {
          "type": "string",
          "enum": ["reject", "review"]
        }
      },
      "additionalProperties": false
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// structuralSchema compiles the embedded configuration schema once.
func structuralSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat()

		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(configSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal config schema: %w", err)
			return
		}
		if err := c.AddResource("https://photovalid.dev/schemas/config.json", doc); err != nil {
			compileErr = fmt.Errorf("add config schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("https://photovalid.dev/schemas/config.json")
	})
	return compiledSchema, compileErr
}

// validateStructure checks a configuration document against the embedded
// JSON Schema and records every violation on the result.
func validateStructure(cfg *schema.Configuration, result *schema.ValidationResult) error {
	compiled, err := structuralSchema()
	if err != nil {
		return schema.NewError(schema.ErrCodeConfigValidation, "config schema unavailable").WithCause(err)
	}

	doc, err := toJSONValue(cfg)
	if err != nil {
		return schema.NewError(schema.ErrCodeConfigValidation, "failed to serialize configuration").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError("/", "structure", err.Error())
			return nil
		}
		for _, violation := range collectViolations(verr) {
			result.AddError(violation.path, "structure", violation.message)
		}
	}
	return nil
}

type violation struct {
	path    string
	message string
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []violation {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []violation{{path: loc, message: verr.Error()}}
	}

	var out []violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

// toJSONValue round-trips a Go value through JSON encoding so numbers become
// json.Number as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}
