package schema

// Task is a catalog entry describing a kind of task users can add.
type Task struct {
	Name                string                  `json:"name"`
	DisplayName         string                  `json:"displayName"`
	Type                TaskType                `json:"type"`
	Description         string                  `json:"description,omitempty"`
	Summary             string                  `json:"summary,omitempty"`
	Icon                string                  `json:"icon,omitempty"`
	RequiredProperties  []string                `json:"requiredProperties,omitempty"`
	PrincipalProperties []string                `json:"principalProperties,omitempty"`
	Properties          map[string]TaskProperty `json:"properties,omitempty"`
	Outputs             map[string]TaskOutput   `json:"outputs,omitempty"`
	Subtasks            []string                `json:"subtasks,omitempty"`
}

// IsRequired reports whether the named property must be set.
func (t Task) IsRequired(name string) bool {
	for _, r := range t.RequiredProperties {
		if r == name {
			return true
		}
	}
	return false
}

// TaskProperty is a configurable input of a catalog task.
type TaskProperty struct {
	Property
	DisplayName string `json:"displayName"`
	Order       int    `json:"order"`
	Default     *Value `json:"default,omitempty"`
}

// TaskOutput is a value a catalog task produces.
type TaskOutput struct {
	Property
	DisplayName string `json:"displayName,omitempty"`
}
