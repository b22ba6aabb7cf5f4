package validation

import (
	"testing"

	"github.com/rendis/flowedit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	doc := `{
		"name": "Fetch",
		"variables": {"url": {"type": "string", "scope": "in"}},
		"tasks": [
			{"id": "a", "name": "core.http.request", "type": "runnable",
			 "properties": {"url": "$url"}, "outputs": {}},
			{"id": "b", "name": "core.control.loop.foreach", "type": "behavioral",
			 "properties": {}, "outputs": {}, "subtasks": {"foreach": []}}
		],
		"errors": null
	}`
	assert.NoError(t, v.ValidateDocument([]byte(doc)))
}

func TestValidateDocument_Invalid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"name": `},
		{"missing name", `{"tasks": []}`},
		{"tasks not array", `{"name": "f", "tasks": {}}`},
		{"task without id", `{"name": "f", "tasks": [{"name": "x", "type": "runnable"}]}`},
		{"unknown task type", `{"name": "f", "tasks": [{"id": "a", "name": "x", "type": "manual"}]}`},
		{"bad variable scope", `{"name": "f", "tasks": [], "variables": {"v": {"type": "string", "scope": "global"}}}`},
		{"unknown field", `{"name": "f", "tasks": [], "owner": "me"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDocument([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
		})
	}
}

func TestValidateDocument_ListsEveryViolation(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	err = v.ValidateDocument([]byte(`{"name": "", "tasks": [{"id": "", "name": "x", "type": "runnable"}]}`))
	require.Error(t, err)

	var fe *schema.Error
	require.ErrorAs(t, err, &fe)
	violations, ok := fe.Details["violations"].([]string)
	require.True(t, ok)
	assert.Len(t, violations, 2)
}

func TestValidateFlow(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	assert.NoError(t, v.ValidateFlow(validFlow()))

	flow := validFlow()
	flow.Tasks = nil
	assert.Error(t, v.ValidateFlow(flow), "tasks must serialize as an array")
}

func TestCheckValue(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	catalog := testCatalog()
	props := catalog["core.http.request"].Properties

	tests := []struct {
		name      string
		prop      schema.Property
		value     schema.Value
		locations [][]string
	}{
		{"string ok", props["url"].Property, str("https://x"), nil},
		{"number for string", props["url"].Property, schema.NumberValue(1), [][]string{{}}},
		{"string for number", props["retries"].Property, str("three"), [][]string{{}}},
		{"boolean ok", props["verbose"].Property, schema.BoolValue(true), nil},
		{"enum option", props["method"].Property, str("POST"), nil},
		{"enum outside options", props["method"].Property, str("PUT"), [][]string{{}}},
		{"any accepts null", props["body"].Property, schema.NullValue(), nil},
		{
			"array item",
			props["tags"].Property,
			schema.ArrayValue(str("a"), schema.NumberValue(2)),
			[][]string{{"1"}},
		},
		{
			"object missing key",
			props["headers"].Property,
			schema.ObjectValue(map[string]schema.Value{}),
			[][]string{{}},
		},
		{
			"object nested type",
			props["headers"].Property,
			schema.ObjectValue(map[string]schema.Value{"auth": schema.BoolValue(false)}),
			[][]string{{"auth"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := v.CheckValue(tt.prop, tt.value)
			require.NoError(t, err)
			require.Len(t, violations, len(tt.locations))
			for i, loc := range tt.locations {
				assert.Equal(t, loc, violations[i].Location)
				assert.NotEmpty(t, violations[i].Message)
			}
		})
	}
}

func TestCheckValue_CachesSchemas(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	p := schema.Property{Type: schema.PropertyNumber}
	for range 3 {
		_, err := v.CheckValue(p, schema.NumberValue(1))
		require.NoError(t, err)
	}
	assert.Len(t, v.cache, 1)
}

func TestPropertySchema(t *testing.T) {
	p := schema.Property{
		Type: schema.PropertyObject,
		Properties: map[string]schema.Property{
			"mode": {Type: schema.PropertyEnum, Options: []string{"a", "b"}},
			"ids":  {Type: schema.PropertyArray, Items: &schema.Property{Type: schema.PropertyNumber}},
		},
	}

	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ids": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "number"},
			},
			"mode": map[string]any{
				"type": "string",
				"enum": []any{"a", "b"},
			},
		},
		"required": []any{"ids", "mode"},
	}
	assert.Equal(t, want, PropertySchema(p))
	assert.Empty(t, PropertySchema(schema.Property{Type: schema.PropertyAny}))
}

func TestViolationString(t *testing.T) {
	vi := Violation{Location: []string{"headers", "auth"}, Message: "bad"}
	assert.Equal(t, "/headers/auth: bad", vi.String())
}
