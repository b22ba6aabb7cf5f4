// Package catalog holds the task kinds users can add to a flow and builds
// fresh flow tasks from them.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/rendis/flowedit/pkg/schema"
)

// Catalog is an immutable set of catalog tasks keyed by name.
type Catalog struct {
	tasks map[string]schema.Task
	names []string
}

// New builds a catalog. Later entries replace earlier ones with the same name.
func New(tasks []schema.Task) *Catalog {
	c := &Catalog{tasks: make(map[string]schema.Task, len(tasks))}
	for _, t := range tasks {
		if _, seen := c.tasks[t.Name]; !seen {
			c.names = append(c.names, t.Name)
		}
		c.tasks[t.Name] = t
	}
	sort.Strings(c.names)
	return c
}

// Load reads a JSON array of catalog tasks.
func Load(r io.Reader) (*Catalog, error) {
	var tasks []schema.Task
	if err := json.NewDecoder(r).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(tasks), nil
}

// LoadFile reads a catalog from a JSON file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Get returns the catalog task with the given name.
func (c *Catalog) Get(name string) (schema.Task, bool) {
	t, ok := c.tasks[name]
	return t, ok
}

// List returns all catalog tasks ordered by name.
func (c *Catalog) List() []schema.Task {
	out := make([]schema.Task, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.tasks[n])
	}
	return out
}

// Len returns the number of catalog tasks.
func (c *Catalog) Len() int { return len(c.names) }

// NewFlowTask builds an unconfigured flow task of the given kind: a fresh
// id, every property at its default, every output unbound and, for
// behavioral kinds, the declared slots.
func NewFlowTask(task schema.Task) schema.FlowTask {
	ft := schema.FlowTask{
		ID:          uuid.NewString(),
		Name:        task.Name,
		DisplayName: task.DisplayName,
		Type:        task.Type,
		Properties:  make(map[string]schema.Value, len(task.Properties)),
		Outputs:     make(map[string]string, len(task.Outputs)),
	}
	for name, prop := range task.Properties {
		ft.Properties[name] = DefaultValue(prop)
	}
	for name := range task.Outputs {
		ft.Outputs[name] = ""
	}
	if task.Type == schema.TaskTypeBehavioral && len(task.Subtasks) > 0 {
		ft.Subtasks = append([]string(nil), task.Subtasks...)
	}
	return ft
}

// DefaultValue returns the declared default of a property, or the zero
// value of its type. any and enum properties default to null.
func DefaultValue(prop schema.TaskProperty) schema.Value {
	if prop.Default != nil && !prop.Default.IsNull() {
		return *prop.Default
	}
	switch prop.Type {
	case schema.PropertyString:
		return schema.StringValue("")
	case schema.PropertyNumber:
		return schema.NumberValue(0)
	case schema.PropertyBoolean:
		return schema.BoolValue(false)
	case schema.PropertyArray:
		return schema.ArrayValue()
	case schema.PropertyObject:
		return schema.ObjectValue(map[string]schema.Value{})
	default:
		return schema.NullValue()
	}
}
