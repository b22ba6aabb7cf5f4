package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/flowedit/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const flowSchemaURL = "https://flowedit.dev/schemas/flow.json"

// flowSchemaJSON is the JSON Schema of a persisted flow document.
const flowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowedit.dev/schemas/flow.json",
  "type": "object",
  "required": ["name", "tasks"],
  "properties": {
    "id": { "type": "string" },
    "name": { "type": "string", "minLength": 1 },
    "description": { "type": "string" },
    "version": { "type": "string" },
    "tags": {
      "type": "array",
      "items": { "type": "string" }
    },
    "variables": {
      "type": ["object", "null"],
      "additionalProperties": { "$ref": "#/$defs/variable" }
    },
    "tasks": {
      "type": "array",
      "items": { "$ref": "#/$defs/task" }
    },
    "errors": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/error" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "task": {
      "type": "object",
      "required": ["id", "name", "type"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string", "minLength": 1 },
        "displayName": { "type": "string" },
        "type": { "type": "string", "enum": ["runnable", "behavioral"] },
        "properties": { "type": ["object", "null"] },
        "outputs": {
          "type": ["object", "null"],
          "additionalProperties": { "type": "string" }
        },
        "subtasks": {
          "type": "object",
          "additionalProperties": {
            "type": "array",
            "items": { "$ref": "#/$defs/task" }
          }
        }
      },
      "additionalProperties": false
    },
    "property": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {
          "type": "string",
          "enum": ["any", "string", "number", "boolean", "array", "object", "enum"]
        },
        "description": { "type": "string" },
        "options": { "type": "array", "items": { "type": "string" } },
        "items": { "$ref": "#/$defs/property" },
        "properties": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/property" }
        }
      }
    },
    "variable": {
      "allOf": [{ "$ref": "#/$defs/property" }],
      "required": ["type", "scope"],
      "properties": {
        "displayName": { "type": "string" },
        "scope": { "type": "string", "enum": ["in", "out", "local"] },
        "declaredBy": { "type": "string" }
      }
    },
    "error": {
      "type": "object",
      "required": ["code", "message"],
      "properties": {
        "code": { "type": "string" },
        "message": { "type": "string" },
        "origin": { "type": "array", "items": { "type": "string" } }
      }
    }
  }
}`

// Violation is one failed schema constraint.
type Violation struct {
	Location []string // instance location, outermost first
	Message  string
}

func (v Violation) String() string {
	return "/" + strings.Join(v.Location, "/") + ": " + v.Message
}

// JSONSchemaValidator validates flow documents and property values with
// JSON Schema Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	flowSchema *jsonschema.Schema

	// mu guards the cache of property schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a validator with the flow schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(flowSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal flow schema: %w", err)
	}
	if err := c.AddResource(flowSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add flow schema resource: %w", err)
	}

	flowSchema, err := c.Compile(flowSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile flow schema: %w", err)
	}

	return &JSONSchemaValidator{
		flowSchema: flowSchema,
		cache:      make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateDocument validates a raw flow document.
func (v *JSONSchemaValidator) ValidateDocument(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "flow document is not valid JSON").WithCause(err)
	}
	if err := v.flowSchema.Validate(doc); err != nil {
		return toFlowEditError(err)
	}
	return nil
}

// ValidateFlow validates an in-memory flow document.
func (v *JSONSchemaValidator) ValidateFlow(flow schema.FlowAPI) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize flow").WithCause(err)
	}
	return v.ValidateDocument(data)
}

// CheckValue validates value against the JSON Schema derived from prop and
// returns every violation. A nil slice means the value conforms.
func (v *JSONSchemaValidator) CheckValue(prop schema.Property, value schema.Value) ([]Violation, error) {
	schemaBytes, err := json.Marshal(PropertySchema(prop))
	if err != nil {
		return nil, fmt.Errorf("marshal property schema: %w", err)
	}
	compiled, err := v.getOrCompile(schemaBytes)
	if err != nil {
		return nil, err
	}

	doc, err := toJSONValue(value)
	if err != nil {
		return nil, fmt.Errorf("serialize value: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, err
		}
		return collectViolations(verr), nil
	}
	return nil, nil
}

// PropertySchema derives a JSON Schema document from a property type.
// Object properties list their declared keys as required.
func PropertySchema(prop schema.Property) map[string]any {
	out := map[string]any{}
	switch prop.Type {
	case schema.PropertyString:
		out["type"] = "string"
	case schema.PropertyEnum:
		out["type"] = "string"
		if len(prop.Options) > 0 {
			opts := make([]any, len(prop.Options))
			for i, o := range prop.Options {
				opts[i] = o
			}
			out["enum"] = opts
		}
	case schema.PropertyNumber:
		out["type"] = "number"
	case schema.PropertyBoolean:
		out["type"] = "boolean"
	case schema.PropertyArray:
		out["type"] = "array"
		if prop.Items != nil {
			out["items"] = PropertySchema(*prop.Items)
		}
	case schema.PropertyObject:
		out["type"] = "object"
		if len(prop.Properties) > 0 {
			props := make(map[string]any, len(prop.Properties))
			required := make([]any, 0, len(prop.Properties))
			for _, name := range sortedKeys(prop.Properties) {
				props[name] = PropertySchema(prop.Properties[name])
				required = append(required, name)
			}
			out["properties"] = props
			out["required"] = required
		}
	}
	return out
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock.
	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Each schema gets its own compiler and URL so resources never collide.
	url := fmt.Sprintf("flowedit://property-schema/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

// toFlowEditError converts a jsonschema.ValidationError into a structured
// validation error listing every violation.
func toFlowEditError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	msgs := make([]string, len(violations))
	for i, vi := range violations {
		msgs[i] = vi.String()
	}
	if len(msgs) == 1 {
		return schema.NewError(schema.ErrCodeValidation, msgs[0]).
			WithDetails(map[string]any{"violations": msgs})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "validation failed with %d errors", len(msgs)).
		WithDetails(map[string]any{"violations": msgs})
}

// collectViolations walks a ValidationError tree and collects the leaves.
func collectViolations(verr *jsonschema.ValidationError) []Violation {
	if len(verr.Causes) == 0 {
		loc := append([]string{}, verr.InstanceLocation...)
		return []Violation{{Location: loc, Message: verr.Error()}}
	}

	var violations []Violation
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
