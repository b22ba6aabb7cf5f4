package validation

import (
	"testing"

	"github.com/rendis/flowedit/pkg/schema"
	"github.com/stretchr/testify/require"
)

// taskMap implements TaskLookup for tests.
type taskMap map[string]schema.Task

func (m taskMap) Get(name string) (schema.Task, bool) {
	t, ok := m[name]
	return t, ok
}

func prop(t schema.PropertyType) schema.TaskProperty {
	return schema.TaskProperty{Property: schema.Property{Type: t}}
}

func output(t schema.PropertyType) schema.TaskOutput {
	return schema.TaskOutput{Property: schema.Property{Type: t}}
}

func testCatalog() taskMap {
	method := prop(schema.PropertyEnum)
	method.Options = []string{"GET", "POST"}
	headers := prop(schema.PropertyObject)
	headers.Properties = map[string]schema.Property{"auth": {Type: schema.PropertyString}}
	tags := prop(schema.PropertyArray)
	tags.Items = &schema.Property{Type: schema.PropertyString}

	return taskMap{
		"core.http.request": {
			Name:               "core.http.request",
			Type:               schema.TaskTypeRunnable,
			RequiredProperties: []string{"url"},
			Properties: map[string]schema.TaskProperty{
				"url":     prop(schema.PropertyString),
				"method":  method,
				"retries": prop(schema.PropertyNumber),
				"verbose": prop(schema.PropertyBoolean),
				"headers": headers,
				"tags":    tags,
				"body":    prop(schema.PropertyAny),
			},
			Outputs: map[string]schema.TaskOutput{
				"status": output(schema.PropertyNumber),
				"body":   output(schema.PropertyAny),
			},
		},
		"core.log": {
			Name:               "core.log",
			Type:               schema.TaskTypeRunnable,
			RequiredProperties: []string{"message"},
			Properties: map[string]schema.TaskProperty{
				"message": prop(schema.PropertyAny),
				"count":   prop(schema.PropertyNumber),
				"enabled": prop(schema.PropertyBoolean),
			},
		},
		schema.TaskForeach: {
			Name:               schema.TaskForeach,
			Type:               schema.TaskTypeBehavioral,
			RequiredProperties: []string{"items"},
			Properties:         map[string]schema.TaskProperty{"items": prop(schema.PropertyArray)},
			Outputs:            map[string]schema.TaskOutput{"item": output(schema.PropertyAny)},
			Subtasks:           []string{schema.SlotForeach},
		},
	}
}

func variable(t schema.PropertyType, scope schema.VariableScope) schema.Variable {
	return schema.Variable{Property: schema.Property{Type: t}, Scope: scope}
}

func httpTask(id string, props map[string]schema.Value, outputs map[string]string) schema.FlowTaskAPI {
	if outputs == nil {
		outputs = map[string]string{}
	}
	return schema.FlowTaskAPI{
		ID:         id,
		Name:       "core.http.request",
		Type:       schema.TaskTypeRunnable,
		Properties: props,
		Outputs:    outputs,
	}
}

func logTask(id string, props map[string]schema.Value) schema.FlowTaskAPI {
	return schema.FlowTaskAPI{
		ID:         id,
		Name:       "core.log",
		Type:       schema.TaskTypeRunnable,
		Properties: props,
		Outputs:    map[string]string{},
	}
}

func loopTask(id string, items schema.Value, itemVar string, body ...schema.FlowTaskAPI) schema.FlowTaskAPI {
	if body == nil {
		body = []schema.FlowTaskAPI{}
	}
	return schema.FlowTaskAPI{
		ID:         id,
		Name:       schema.TaskForeach,
		Type:       schema.TaskTypeBehavioral,
		Properties: map[string]schema.Value{"items": items},
		Outputs:    map[string]string{"item": itemVar},
		Subtasks:   map[string][]schema.FlowTaskAPI{schema.SlotForeach: body},
	}
}

func str(s string) schema.Value { return schema.StringValue(s) }

// validFlow reads two inputs, binds two locals and uses them in a loop body.
func validFlow() schema.FlowAPI {
	return schema.FlowAPI{
		Name: "Fetch and log",
		Variables: map[string]schema.Variable{
			"url":    variable(schema.PropertyString, schema.ScopeIn),
			"limit":  variable(schema.PropertyNumber, schema.ScopeIn),
			"status": variable(schema.PropertyNumber, schema.ScopeLocal),
			"item":   variable(schema.PropertyAny, schema.ScopeLocal),
		},
		Tasks: []schema.FlowTaskAPI{
			httpTask("fetch", map[string]schema.Value{
				"url":     str("$url"),
				"method":  str("GET"),
				"retries": schema.NumberValue(3),
				"tags":    schema.ArrayValue(str("a"), str("b")),
				"headers": schema.ObjectValue(map[string]schema.Value{"auth": str("token")}),
			}, map[string]string{"status": "status", "body": ""}),
			loopTask("loop", schema.ArrayValue(str("x")), "item",
				logTask("log", map[string]schema.Value{
					"message": str("$item"),
					"count":   str("$status + limit"),
					"enabled": str("$status >= 200 && status < 300"),
				}),
			),
		},
	}
}

func newSemantic(t *testing.T) *SemanticValidator {
	t.Helper()
	schemas, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return NewSemanticValidator(testCatalog(), schemas)
}

func codes(result *schema.ValidationResult) []string {
	out := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		out = append(out, e.Code)
	}
	return out
}
