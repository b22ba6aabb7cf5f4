package schema

// TaskType distinguishes leaf tasks from control-flow tasks.
type TaskType string

const (
	TaskTypeRunnable   TaskType = "runnable"
	TaskTypeBehavioral TaskType = "behavioral"
)

// Well-known control-flow task kinds.
const (
	TaskForeach     = "core.control.loop.foreach"
	SlotForeach     = "foreach"
	ReservedKeyword = "new"
)

// FlowTask is one configured task of a flow, as held by the task tree.
// Behavioral tasks list their slot names in Subtasks; the slot contents
// live in the tree, not here.
type FlowTask struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Type        TaskType          `json:"type"`
	Properties  map[string]Value  `json:"properties"`
	Outputs     map[string]string `json:"outputs"`
	Subtasks    []string          `json:"subtasks,omitempty"`
}

// IsBehavioral reports whether the task owns nested slots.
func (t FlowTask) IsBehavioral() bool {
	return t.Type == TaskTypeBehavioral
}

// Clone returns a copy that shares no maps or slices with t.
func (t FlowTask) Clone() FlowTask {
	c := t
	if t.Properties != nil {
		c.Properties = make(map[string]Value, len(t.Properties))
		for k, v := range t.Properties {
			c.Properties[k] = v
		}
	}
	if t.Outputs != nil {
		c.Outputs = make(map[string]string, len(t.Outputs))
		for k, v := range t.Outputs {
			c.Outputs[k] = v
		}
	}
	if t.Subtasks != nil {
		c.Subtasks = append([]string(nil), t.Subtasks...)
	}
	return c
}

// BoundVariables returns the variable names the task's outputs are bound to.
func (t FlowTask) BoundVariables() []string {
	var names []string
	for _, v := range t.Outputs {
		if v != "" {
			names = append(names, v)
		}
	}
	return names
}

// FlowTaskAPI is the nested wire form of a task: slot contents are inlined
// as ordered arrays under Subtasks.
type FlowTaskAPI struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	DisplayName string                   `json:"displayName"`
	Type        TaskType                 `json:"type"`
	Properties  map[string]Value         `json:"properties"`
	Outputs     map[string]string        `json:"outputs"`
	Subtasks    map[string][]FlowTaskAPI `json:"subtasks,omitempty"`
}

// PropertyType enumerates declared value types.
type PropertyType string

const (
	PropertyAny     PropertyType = "any"
	PropertyString  PropertyType = "string"
	PropertyNumber  PropertyType = "number"
	PropertyBoolean PropertyType = "boolean"
	PropertyArray   PropertyType = "array"
	PropertyObject  PropertyType = "object"
	PropertyEnum    PropertyType = "enum"
)

// Property describes the type of a value.
type Property struct {
	Type        PropertyType        `json:"type"`
	Description string              `json:"description,omitempty"`
	Options     []string            `json:"options,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// VariableScope tells whether a variable is a flow input, output or local.
type VariableScope string

const (
	ScopeIn    VariableScope = "in"
	ScopeOut   VariableScope = "out"
	ScopeLocal VariableScope = "local"
)

// Variable is a declared flow variable.
type Variable struct {
	Property
	DisplayName string        `json:"displayName"`
	Scope       VariableScope `json:"scope"`
	DeclaredBy  string        `json:"declaredBy,omitempty"`
}

// NamedVariable pairs a variable with its name, as edited in forms.
type NamedVariable struct {
	Name string `json:"name"`
	Variable
}

// FlowAPI is the persisted wire form of a flow.
type FlowAPI struct {
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Version     string              `json:"version,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Variables   map[string]Variable `json:"variables"`
	Tasks       []FlowTaskAPI       `json:"tasks"`
	Errors      []FlowError         `json:"errors"`
}
