package editor

import (
	"fmt"

	"github.com/rendis/flowedit/internal/tasktree"
	"github.com/rendis/flowedit/pkg/schema"
)

// Flow is the open flow: its metadata and variables plus the task tree
// the editor mutates in place.
type Flow struct {
	ID          string
	Name        string
	Description string
	Version     string
	Tags        []string
	Variables   map[string]schema.Variable
	Tasks       *tasktree.Tree
	Errors      []schema.FlowError
}

// NewFlow creates an empty flow.
func NewFlow(name string) *Flow {
	return &Flow{
		Name:      name,
		Variables: make(map[string]schema.Variable),
		Tasks:     tasktree.New(),
	}
}

// FlowFromAPI builds a Flow from its API form, replaying the nested task
// list into a fresh tree.
func FlowFromAPI(api schema.FlowAPI) (*Flow, error) {
	tree, err := tasktree.FromAPI(api.Tasks)
	if err != nil {
		return nil, fmt.Errorf("load flow %q: %w", api.Name, err)
	}

	vars := make(map[string]schema.Variable, len(api.Variables))
	for name, v := range api.Variables {
		vars[name] = v
	}

	return &Flow{
		ID:          api.ID,
		Name:        api.Name,
		Description: api.Description,
		Version:     api.Version,
		Tags:        append([]string(nil), api.Tags...),
		Variables:   vars,
		Tasks:       tree,
		Errors:      append([]schema.FlowError(nil), api.Errors...),
	}, nil
}

// ToAPI returns the API form of the flow. Variables and tasks are never nil.
func (f *Flow) ToAPI() schema.FlowAPI {
	vars := make(map[string]schema.Variable, len(f.Variables))
	for name, v := range f.Variables {
		vars[name] = v
	}

	errs := f.Errors
	if errs == nil {
		errs = []schema.FlowError{}
	}

	return schema.FlowAPI{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Version:     f.Version,
		Tags:        append([]string(nil), f.Tags...),
		Variables:   vars,
		Tasks:       f.Tasks.ToAPI(),
		Errors:      append([]schema.FlowError{}, errs...),
	}
}

// NamedVariable returns the variable called name with its name attached.
func (f *Flow) NamedVariable(name string) (schema.NamedVariable, bool) {
	v, ok := f.Variables[name]
	if !ok {
		return schema.NamedVariable{}, false
	}
	return schema.NamedVariable{Name: name, Variable: v}, true
}
