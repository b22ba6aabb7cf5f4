package validation

import (
	"errors"

	"github.com/rendis/flowedit/pkg/schema"
)

// Validator produces the flow errors shown next to task fields.
type Validator interface {
	Validate(flow schema.FlowAPI) *schema.ValidationResult
}

// FlowValidator runs the structural JSON Schema check and the semantic
// check in one pass.
type FlowValidator struct {
	schemas  *JSONSchemaValidator
	semantic *SemanticValidator
}

// New creates a FlowValidator resolving catalog tasks through lookup.
func New(lookup TaskLookup) (*FlowValidator, error) {
	schemas, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &FlowValidator{
		schemas:  schemas,
		semantic: NewSemanticValidator(lookup, schemas),
	}, nil
}

// Validate returns every structural and semantic problem of flow.
func (v *FlowValidator) Validate(flow schema.FlowAPI) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err := v.schemas.ValidateFlow(flow); err != nil {
		for _, msg := range structuralMessages(err) {
			result.AddError(schema.ErrCodeValidation, msg)
		}
	}
	result.Merge(v.semantic.Validate(flow))
	return result
}

// ValidateDocument checks a raw flow document against the flow schema.
func (v *FlowValidator) ValidateDocument(data []byte) error {
	return v.schemas.ValidateDocument(data)
}

// ValidateInputs checks execution inputs against the flow's input variables.
func (v *FlowValidator) ValidateInputs(flow schema.FlowAPI, inputs map[string]schema.Value) *schema.ValidationResult {
	return v.semantic.ValidateInputs(flow, inputs)
}

func structuralMessages(err error) []string {
	var fe *schema.Error
	if !errors.As(err, &fe) {
		return []string{err.Error()}
	}
	if violations, ok := fe.Details["violations"].([]string); ok {
		return violations
	}
	return []string{fe.Message}
}
