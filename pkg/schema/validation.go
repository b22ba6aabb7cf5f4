package schema

import "fmt"

// FlowError is a validation problem anchored to a task field.
// Origin is [taskID, fieldName, ...]; it is empty for flow-level problems.
type FlowError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Origin  []string `json:"origin"`
}

// TaskID returns the task the error belongs to, or "".
func (e FlowError) TaskID() string {
	if len(e.Origin) == 0 {
		return ""
	}
	return e.Origin[0]
}

// Field returns the field the error belongs to, or "".
func (e FlowError) Field() string {
	if len(e.Origin) < 2 {
		return ""
	}
	return e.Origin[1]
}

// ValidationResult aggregates flow errors from a validation pass.
type ValidationResult struct {
	Errors []FlowError `json:"errors,omitempty"`
}

// Valid returns true if there are no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error anchored at origin.
func (r *ValidationResult) AddError(code, message string, origin ...string) {
	if origin == nil {
		origin = []string{}
	}
	r.Errors = append(r.Errors, FlowError{Code: code, Message: message, Origin: origin})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
}

// ToError converts the result to an *Error if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("validation failed with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count": len(r.Errors),
			"errors":      r.Errors,
		})
}
