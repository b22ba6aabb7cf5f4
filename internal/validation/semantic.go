package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/rendis/flowedit/pkg/schema"
)

// Flow error codes reported by the semantic validator.
const (
	CodeTaskNotFound       = "TASK_NOT_FOUND"
	CodePropertyMissing    = "PROPERTY_MISSING"
	CodePropertyUnexpected = "PROPERTY_UNEXPECTED"
	CodeVariableUnresolved = "VARIABLE_UNRESOLVED"
	CodeVariableUnexpected = "VARIABLE_UNEXPECTED"
	CodeVariableRedeclared = "VARIABLE_REDECLARED"
	CodeVariableForwardRef = "VARIABLE_FORWARD_REF"
	CodeVariableKeyword    = "VARIABLE_KEYWORD"
	CodeOutputUnexpected   = "OUTPUT_UNEXPECTED"
	CodeWrongType          = "WRONG_TYPE"
	CodeInputMissing       = "INPUT_MISSING"
	CodeInputUnexpected    = "INPUT_UNEXPECTED"
)

// referencePrefix marks a property value as an expression over variables.
const referencePrefix = "$"

// TaskLookup resolves catalog tasks by name.
type TaskLookup interface {
	Get(name string) (schema.Task, bool)
}

// SemanticValidator checks a flow against the task catalog: required and
// unexpected properties, variable references and bindings, and types.
type SemanticValidator struct {
	tasks   TaskLookup
	schemas *JSONSchemaValidator
}

// NewSemanticValidator creates a validator resolving tasks through lookup
// and checking literal values with schemas.
func NewSemanticValidator(lookup TaskLookup, schemas *JSONSchemaValidator) *SemanticValidator {
	return &SemanticValidator{tasks: lookup, schemas: schemas}
}

// checker holds the state of one validation pass.
type checker struct {
	v       *SemanticValidator
	flow    schema.FlowAPI
	symbols map[string]schema.Variable // variables readable at this point
	pending map[string]schema.Variable // local variables not yet bound
	result  *schema.ValidationResult
}

// Validate walks the flow in execution order. Input and output variables
// are readable from the start; local variables become readable once a
// task output is bound to them.
func (v *SemanticValidator) Validate(flow schema.FlowAPI) *schema.ValidationResult {
	c := &checker{
		v:       v,
		flow:    flow,
		symbols: make(map[string]schema.Variable),
		pending: make(map[string]schema.Variable),
		result:  &schema.ValidationResult{},
	}

	for _, name := range sortedKeys(flow.Variables) {
		variable := flow.Variables[name]
		if strings.EqualFold(name, schema.ReservedKeyword) {
			c.result.AddError(CodeVariableKeyword, fmt.Sprintf("%s is a reserved keyword", name))
		}
		switch variable.Scope {
		case schema.ScopeIn, schema.ScopeOut:
			c.symbols[name] = variable
		case schema.ScopeLocal:
			c.pending[name] = variable
		}
	}

	c.checkTasks(flow.Tasks)

	if len(c.pending) > 0 {
		c.result.AddError(CodeVariableUnexpected,
			"unexpected registered variables: "+strings.Join(sortedKeys(c.pending), ","))
	}
	return c.result
}

// ValidateInputs checks execution inputs against the flow's input variables.
func (v *SemanticValidator) ValidateInputs(flow schema.FlowAPI, inputs map[string]schema.Value) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	left := make(map[string]bool, len(inputs))
	for name := range inputs {
		left[name] = true
	}

	for _, name := range sortedKeys(flow.Variables) {
		variable := flow.Variables[name]
		if variable.Scope != schema.ScopeIn {
			continue
		}
		value, ok := inputs[name]
		if !ok {
			result.AddError(CodeInputMissing, fmt.Sprintf("input %s is missing", name))
			continue
		}
		delete(left, name)

		violations, err := v.schemas.CheckValue(variable.Property, value)
		if err != nil {
			result.AddError(CodeWrongType, fmt.Sprintf("input %s: %v", name, err))
			continue
		}
		for _, vi := range violations {
			result.AddError(CodeWrongType, fmt.Sprintf("input %s: %s", name, vi))
		}
	}

	if len(left) > 0 {
		result.AddError(CodeInputUnexpected, "unexpected inputs: "+strings.Join(sortedKeys(left), ","))
	}
	return result
}

func (c *checker) checkTasks(tasks []schema.FlowTaskAPI) {
	for _, ft := range tasks {
		task, ok := c.v.tasks.Get(ft.Name)
		if !ok {
			c.result.AddError(CodeTaskNotFound, fmt.Sprintf("task %s not found", ft.Name), ft.ID)
			continue
		}

		c.checkProperties(ft, task)
		c.checkOutputs(ft, task)

		if ft.Type == schema.TaskTypeBehavioral {
			for _, slot := range sortedKeys(ft.Subtasks) {
				c.checkTasks(ft.Subtasks[slot])
			}
		}
	}
}

func (c *checker) checkProperties(ft schema.FlowTaskAPI, task schema.Task) {
	left := make(map[string]schema.Value, len(ft.Properties))
	for name, value := range ft.Properties {
		if !value.IsEmpty() {
			left[name] = value
		}
	}

	for _, name := range sortedKeys(task.Properties) {
		meta := task.Properties[name]
		value, ok := left[name]
		if !ok {
			if task.IsRequired(name) {
				c.result.AddError(CodePropertyMissing,
					fmt.Sprintf("required task property %s is missing", name), ft.ID, name)
			}
			continue
		}
		delete(left, name)

		if s, isStr := value.Str(); isStr && strings.HasPrefix(s, referencePrefix) {
			c.checkReference(ft.ID, name, strings.TrimPrefix(s, referencePrefix), meta.Property)
		} else {
			c.checkLiteral(ft.ID, name, value, meta.Property)
		}
	}

	if len(left) > 0 {
		c.result.AddError(CodePropertyUnexpected,
			"unexpected properties: "+strings.Join(sortedKeys(left), ","), ft.ID)
	}
}

func (c *checker) checkOutputs(ft schema.FlowTaskAPI, task schema.Task) {
	left := make(map[string]string, len(ft.Outputs))
	for name, variable := range ft.Outputs {
		if variable != "" {
			left[name] = variable
		}
	}

	for _, name := range sortedKeys(task.Outputs) {
		variableName, ok := left[name]
		if !ok {
			continue
		}
		delete(left, name)

		variable, declared := c.flow.Variables[variableName]
		_, readable := c.symbols[variableName]
		switch {
		case strings.EqualFold(variableName, schema.ReservedKeyword):
			c.result.AddError(CodeVariableKeyword,
				fmt.Sprintf("%s is a reserved keyword", variableName), ft.ID, name)
		case readable:
			c.result.AddError(CodeVariableRedeclared,
				fmt.Sprintf("cannot redeclare variable %s under the same scope", variableName), ft.ID, name)
		case !declared:
			c.result.AddError(CodeVariableUnresolved,
				fmt.Sprintf("declared variable %s is not registered in flow variables", variableName), ft.ID, name)
		default:
			c.checkVariable(ft.ID, name, variable.Property, task.Outputs[name].Property)
			c.symbols[variableName] = variable
			delete(c.pending, variableName)
		}
	}

	if len(left) > 0 {
		c.result.AddError(CodeOutputUnexpected,
			"unexpected outputs: "+strings.Join(sortedKeys(left), ","), ft.ID)
	}
}

// checkReference validates a "$<expression>" property value. Every variable
// it reads must be readable at this point; the expression result must fit
// the property type.
func (c *checker) checkReference(taskID, field, src string, expected schema.Property) {
	tree, err := parser.Parse(src)
	if err != nil {
		c.result.AddError(CodeVariableUnresolved,
			fmt.Sprintf("cannot parse reference %q: %v", src, err), taskID, field)
		return
	}

	names := identifiers(tree.Node)
	for _, name := range names {
		if _, ok := c.symbols[name]; ok {
			continue
		}
		if _, declared := c.flow.Variables[name]; declared {
			c.result.AddError(CodeVariableForwardRef,
				fmt.Sprintf("variable %s is used before its declaration", name), taskID, field)
		} else {
			c.result.AddError(CodeVariableUnresolved,
				fmt.Sprintf("cannot find variable %s", name), taskID, field)
		}
		return
	}

	if id, ok := tree.Node.(*ast.IdentifierNode); ok {
		c.checkVariable(taskID, field, c.symbols[id.Value].Property, expected)
		return
	}

	env := make(map[string]any, len(names))
	for _, name := range names {
		p := c.symbols[name].Property
		if p.Type == schema.PropertyAny {
			return // resolved at runtime
		}
		env[name] = sampleValue(p)
	}
	opts := []expr.Option{expr.Env(env)}
	if o := expectOption(expected); o != nil {
		opts = append(opts, o)
	}
	if _, err := expr.Compile(src, opts...); err != nil {
		c.result.AddError(CodeWrongType, fmt.Sprintf("%s: %v", field, err), taskID, field)
	}
}

// checkLiteral validates a literal value against the property's JSON Schema.
func (c *checker) checkLiteral(taskID, field string, value schema.Value, expected schema.Property) {
	violations, err := c.v.schemas.CheckValue(expected, value)
	if err != nil {
		c.result.AddError(CodeWrongType, fmt.Sprintf("%s: %v", field, err), taskID, field)
		return
	}
	for _, vi := range violations {
		origin := append([]string{taskID, field}, vi.Location...)
		c.result.AddError(CodeWrongType, fmt.Sprintf("%s: %s", field, vi.Message), origin...)
	}
}

// checkVariable compares a declared variable type with the expected type.
// Nested names are dotted ("headers.items") and split into the origin.
func (c *checker) checkVariable(taskID, name string, data, expected schema.Property) {
	if data.Type == schema.PropertyAny || expected.Type == schema.PropertyAny {
		return
	}
	origin := append([]string{taskID}, strings.Split(name, ".")...)

	switch expected.Type {
	case schema.PropertyArray:
		if data.Type != schema.PropertyArray {
			c.result.AddError(CodeWrongType, wrongType(name, expected.Type, data.Type), origin...)
			return
		}
		if data.Items != nil && expected.Items != nil {
			c.checkVariable(taskID, name+".items", *data.Items, *expected.Items)
		}
	case schema.PropertyObject:
		if data.Type != schema.PropertyObject {
			c.result.AddError(CodeWrongType, wrongType(name, expected.Type, data.Type), origin...)
			return
		}
		for _, key := range sortedKeys(expected.Properties) {
			sub, ok := data.Properties[key]
			if !ok {
				c.result.AddError(CodeWrongType, fmt.Sprintf("object %s is missing key %s", name, key), origin...)
				continue
			}
			c.checkVariable(taskID, name+"."+key, sub, expected.Properties[key])
		}
	case schema.PropertyString:
		if data.Type != schema.PropertyString && data.Type != schema.PropertyEnum {
			c.result.AddError(CodeWrongType, wrongType(name, expected.Type, data.Type), origin...)
		}
	default:
		if data.Type != expected.Type {
			c.result.AddError(CodeWrongType, wrongType(name, expected.Type, data.Type), origin...)
		}
	}
}

func wrongType(name string, expected, got schema.PropertyType) string {
	return fmt.Sprintf("%s expects %s but received %s", name, expected, got)
}

// identifierCollector gathers the free variable names of an expression.
// Identifiers bound by a let declaration are skipped.
type identifierCollector struct {
	ids   []*ast.IdentifierNode
	bound map[*ast.IdentifierNode]bool
}

func (v *identifierCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		v.ids = append(v.ids, n)
	case *ast.VariableDeclaratorNode:
		ast.Walk(&n.Expr, &letBinder{name: n.Name, bound: v.bound})
	}
}

// letBinder marks the uses of one let name inside its scope.
type letBinder struct {
	name  string
	bound map[*ast.IdentifierNode]bool
}

func (b *letBinder) Visit(node *ast.Node) {
	if id, ok := (*node).(*ast.IdentifierNode); ok && id.Value == b.name {
		b.bound[id] = true
	}
}

func identifiers(node ast.Node) []string {
	v := &identifierCollector{bound: map[*ast.IdentifierNode]bool{}}
	ast.Walk(&node, v)

	seen := map[string]bool{}
	var names []string
	for _, id := range v.ids {
		if v.bound[id] || seen[id.Value] {
			continue
		}
		seen[id.Value] = true
		names = append(names, id.Value)
	}
	return names
}

// sampleValue returns a zero value whose Go type stands in for the
// property type during expression type checking.
func sampleValue(p schema.Property) any {
	switch p.Type {
	case schema.PropertyString, schema.PropertyEnum:
		return ""
	case schema.PropertyNumber:
		return float64(0)
	case schema.PropertyBoolean:
		return false
	case schema.PropertyArray:
		return []any{}
	case schema.PropertyObject:
		m := make(map[string]any, len(p.Properties))
		for k, sub := range p.Properties {
			m[k] = sampleValue(sub)
		}
		return m
	default:
		return nil
	}
}

// expectOption maps a property type to the expr result-type option.
func expectOption(p schema.Property) expr.Option {
	switch p.Type {
	case schema.PropertyString, schema.PropertyEnum:
		return expr.AsKind(reflect.String)
	case schema.PropertyNumber:
		return expr.AsFloat64()
	case schema.PropertyBoolean:
		return expr.AsBool()
	case schema.PropertyArray:
		return expr.AsKind(reflect.Slice)
	case schema.PropertyObject:
		return expr.AsKind(reflect.Map)
	default:
		return nil
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
