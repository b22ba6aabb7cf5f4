package validation

import (
	"testing"

	"github.com/expr-lang/expr/parser"

	"github.com/rendis/flowedit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemantic_ValidFlow(t *testing.T) {
	result := newSemantic(t).Validate(validFlow())
	assert.True(t, result.Valid(), "unexpected errors: %v", result.Errors)
}

func TestSemantic_EmptyFlow(t *testing.T) {
	result := newSemantic(t).Validate(schema.FlowAPI{Name: "empty", Tasks: []schema.FlowTaskAPI{}})
	assert.True(t, result.Valid())
}

func TestSemantic_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *schema.FlowAPI)
		code   string
		origin []string
	}{
		{
			name: "unknown task",
			mutate: func(f *schema.FlowAPI) {
				f.Tasks = append(f.Tasks, schema.FlowTaskAPI{ID: "ghost", Name: "core.ghost", Type: schema.TaskTypeRunnable})
			},
			code:   CodeTaskNotFound,
			origin: []string{"ghost"},
		},
		{
			name:   "required property missing",
			mutate: func(f *schema.FlowAPI) { delete(f.Tasks[0].Properties, "url") },
			code:   CodePropertyMissing,
			origin: []string{"fetch", "url"},
		},
		{
			name:   "required property blank",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["url"] = str("") },
			code:   CodePropertyMissing,
			origin: []string{"fetch", "url"},
		},
		{
			name:   "property not in catalog",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["timeout"] = schema.NumberValue(5) },
			code:   CodePropertyUnexpected,
			origin: []string{"fetch"},
		},
		{
			name:   "unknown variable",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["url"] = str("$endpoint") },
			code:   CodeVariableUnresolved,
			origin: []string{"fetch", "url"},
		},
		{
			name:   "unparsable reference",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["url"] = str("$url +") },
			code:   CodeVariableUnresolved,
			origin: []string{"fetch", "url"},
		},
		{
			name:   "local read before binding",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["retries"] = str("$status") },
			code:   CodeVariableForwardRef,
			origin: []string{"fetch", "retries"},
		},
		{
			name:   "output bound to input variable",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Outputs["body"] = "url" },
			code:   CodeVariableRedeclared,
			origin: []string{"fetch", "body"},
		},
		{
			name:   "output bound to undeclared variable",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Outputs["body"] = "payload" },
			code:   CodeVariableUnresolved,
			origin: []string{"fetch", "body"},
		},
		{
			name:   "output bound to keyword",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Outputs["body"] = "new" },
			code:   CodeVariableKeyword,
			origin: []string{"fetch", "body"},
		},
		{
			name:   "output not in catalog",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Outputs["headers"] = "status" },
			code:   CodeOutputUnexpected,
			origin: []string{"fetch"},
		},
		{
			name:   "literal of wrong type",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["retries"] = str("three") },
			code:   CodeWrongType,
			origin: []string{"fetch", "retries"},
		},
		{
			name: "literal array item of wrong type",
			mutate: func(f *schema.FlowAPI) {
				f.Tasks[0].Properties["tags"] = schema.ArrayValue(str("a"), schema.BoolValue(true))
			},
			code:   CodeWrongType,
			origin: []string{"fetch", "tags", "1"},
		},
		{
			name:   "variable of wrong type",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["retries"] = str("$url") },
			code:   CodeWrongType,
			origin: []string{"fetch", "retries"},
		},
		{
			name:   "expression of wrong type",
			mutate: func(f *schema.FlowAPI) { f.Tasks[0].Properties["retries"] = str(`$url + "x"`) },
			code:   CodeWrongType,
			origin: []string{"fetch", "retries"},
		},
		{
			name: "output type mismatch",
			mutate: func(f *schema.FlowAPI) {
				f.Variables["status"] = variable(schema.PropertyBoolean, schema.ScopeLocal)
				f.Tasks[1].Subtasks[schema.SlotForeach][0].Properties["count"] = str("$limit")
				f.Tasks[1].Subtasks[schema.SlotForeach][0].Properties["enabled"] = str("$status")
			},
			code:   CodeWrongType,
			origin: []string{"fetch", "status"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := validFlow()
			tt.mutate(&flow)

			result := newSemantic(t).Validate(flow)
			require.Len(t, result.Errors, 1, "errors: %v", result.Errors)
			assert.Equal(t, tt.code, result.Errors[0].Code)
			assert.Equal(t, tt.origin, result.Errors[0].Origin)
			assert.NotEmpty(t, result.Errors[0].Message)
		})
	}
}

func TestSemantic_LetBindings(t *testing.T) {
	flow := validFlow()
	flow.Tasks[0].Properties["url"] = str(`$let u = url; u + "/x"`)
	result := newSemantic(t).Validate(flow)
	assert.True(t, result.Valid(), "unexpected errors: %v", result.Errors)

	flow.Tasks[0].Properties["url"] = str(`$let u = endpoint; u + "/x"`)
	result = newSemantic(t).Validate(flow)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeVariableUnresolved, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "endpoint")
	assert.Equal(t, []string{"fetch", "url"}, result.Errors[0].Origin)
}

func TestIdentifiers_SkipsLetNames(t *testing.T) {
	tree, err := parser.Parse(`let a = x; let b = a + y; b + a + z`)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, identifiers(tree.Node))
}

func TestSemantic_UnboundLocalVariable(t *testing.T) {
	flow := validFlow()
	flow.Variables["unused"] = variable(schema.PropertyString, schema.ScopeLocal)

	result := newSemantic(t).Validate(flow)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, CodeVariableUnexpected, result.Errors[0].Code)
	assert.Empty(t, result.Errors[0].Origin)
	assert.Contains(t, result.Errors[0].Message, "unused")
}

func TestSemantic_KeywordVariable(t *testing.T) {
	flow := validFlow()
	flow.Variables["new"] = variable(schema.PropertyString, schema.ScopeIn)

	result := newSemantic(t).Validate(flow)
	assert.Equal(t, []string{CodeVariableKeyword}, codes(result))
}

func TestSemantic_BindingInsideLoopIsVisibleAfterIt(t *testing.T) {
	flow := validFlow()
	flow.Variables["total"] = variable(schema.PropertyNumber, schema.ScopeLocal)
	flow.Tasks[0].Outputs["status"] = ""
	flow.Tasks[1].Subtasks[schema.SlotForeach] = []schema.FlowTaskAPI{
		httpTask("inner", map[string]schema.Value{"url": str("$url")}, map[string]string{"status": "status"}),
	}
	flow.Tasks = append(flow.Tasks,
		logTask("after", map[string]schema.Value{"message": str("done"), "count": str("$status")}))

	result := newSemantic(t).Validate(flow)
	require.Len(t, result.Errors, 1, "errors: %v", result.Errors)
	assert.Equal(t, CodeVariableUnexpected, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "total")
}

func TestSemantic_ReportsEveryProblem(t *testing.T) {
	flow := validFlow()
	delete(flow.Tasks[0].Properties, "url")
	flow.Tasks[0].Properties["retries"] = str("three")
	flow.Tasks[1].Subtasks[schema.SlotForeach][0].Properties["count"] = str("$missing")

	result := newSemantic(t).Validate(flow)
	assert.ElementsMatch(t,
		[]string{CodePropertyMissing, CodeWrongType, CodeVariableUnresolved},
		codes(result))
}

func TestValidateInputs(t *testing.T) {
	sv := newSemantic(t)
	flow := validFlow()

	t.Run("ok", func(t *testing.T) {
		result := sv.ValidateInputs(flow, map[string]schema.Value{
			"url":   str("https://example.com"),
			"limit": schema.NumberValue(10),
		})
		assert.True(t, result.Valid(), "errors: %v", result.Errors)
	})

	t.Run("missing", func(t *testing.T) {
		result := sv.ValidateInputs(flow, map[string]schema.Value{"url": str("https://example.com")})
		assert.Equal(t, []string{CodeInputMissing}, codes(result))
	})

	t.Run("unexpected", func(t *testing.T) {
		result := sv.ValidateInputs(flow, map[string]schema.Value{
			"url":    str("https://example.com"),
			"limit":  schema.NumberValue(10),
			"status": schema.NumberValue(200),
		})
		assert.Equal(t, []string{CodeInputUnexpected}, codes(result))
		assert.Contains(t, result.Errors[0].Message, "status")
	})

	t.Run("wrong type", func(t *testing.T) {
		result := sv.ValidateInputs(flow, map[string]schema.Value{
			"url":   str("https://example.com"),
			"limit": str("ten"),
		})
		assert.Equal(t, []string{CodeWrongType}, codes(result))
	})
}
