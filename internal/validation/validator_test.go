package validation

import (
	"testing"

	"github.com/rendis/flowedit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowValidator_Valid(t *testing.T) {
	v, err := New(testCatalog())
	require.NoError(t, err)

	result := v.Validate(validFlow())
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
}

func TestFlowValidator_MergesStructuralAndSemantic(t *testing.T) {
	v, err := New(testCatalog())
	require.NoError(t, err)

	flow := validFlow()
	flow.Name = ""
	delete(flow.Tasks[0].Properties, "url")

	result := v.Validate(flow)
	assert.Equal(t, []string{schema.ErrCodeValidation, CodePropertyMissing}, codes(result))
	assert.Empty(t, result.Errors[0].Origin)
}

func TestFlowValidator_ImplementsValidator(t *testing.T) {
	v, err := New(testCatalog())
	require.NoError(t, err)

	var _ Validator = v
	assert.Error(t, v.ValidateDocument([]byte(`[]`)))
	assert.True(t, v.ValidateInputs(validFlow(), map[string]schema.Value{
		"url":   str("u"),
		"limit": schema.NumberValue(1),
	}).Valid())
}

func TestStructuralMessages(t *testing.T) {
	plain := assert.AnError
	assert.Equal(t, []string{plain.Error()}, structuralMessages(plain))

	fe := schema.NewError(schema.ErrCodeValidation, "one")
	assert.Equal(t, []string{"one"}, structuralMessages(fe))

	fe = fe.WithDetails(map[string]any{"violations": []string{"/a: x", "/b: y"}})
	assert.Equal(t, []string{"/a: x", "/b: y"}, structuralMessages(fe))
}
