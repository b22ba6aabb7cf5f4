// Package editor holds the state of one open flow: its task tree, the
// laid-out diagram and the active overlay. Every mutation re-validates the
// flow and recomputes the layout before returning.
package editor

import (
	"log/slog"
	"strings"

	"github.com/rendis/flowedit/internal/catalog"
	"github.com/rendis/flowedit/internal/diagram"
	"github.com/rendis/flowedit/internal/layout"
	"github.com/rendis/flowedit/internal/tasktree"
	"github.com/rendis/flowedit/internal/validation"
	"github.com/rendis/flowedit/pkg/schema"
)

// NewVariableName opens the variable form on a blank variable.
const NewVariableName = schema.ReservedKeyword

// DeclaredByUser marks variables created from the variable form.
const DeclaredByUser = "user"

// ErrNoFlow is returned by mutations while no flow is open.
var ErrNoFlow = schema.NewError(schema.ErrCodeNotFound, "no flow is open")

// Config holds the editor collaborators. Every field is optional.
type Config struct {
	Catalog   *catalog.Catalog     // nil = empty catalog
	Validator validation.Validator // nil = errors are kept as loaded
	Engine    *layout.Engine       // nil = layout.New()
	Logger    *slog.Logger         // nil = slog.Default()
}

// Editor is the application state container. It is not safe for
// concurrent use; callers that share one serialize access.
type Editor struct {
	catalog   *catalog.Catalog
	validator validation.Validator
	engine    *layout.Engine
	logger    *slog.Logger

	flow    *Flow
	diagram diagram.Diagram
	overlay Overlay
}

// New creates an editor with no open flow. Its diagram is the layout of an
// empty tree: a single placeholder.
func New(cfg Config) *Editor {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.New(nil)
	}
	if cfg.Engine == nil {
		cfg.Engine = layout.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Editor{
		catalog:   cfg.Catalog,
		validator: cfg.Validator,
		engine:    cfg.Engine,
		logger:    cfg.Logger,
		overlay:   NoOverlay(),
	}
	e.diagram = e.engine.Layout(tasktree.New())
	return e
}

// Catalog returns the task catalog.
func (e *Editor) Catalog() *catalog.Catalog { return e.catalog }

// SetCatalog replaces the task catalog.
func (e *Editor) SetCatalog(c *catalog.Catalog) { e.catalog = c }

// Flow returns the open flow, or nil.
func (e *Editor) Flow() *Flow { return e.flow }

// Diagram returns the layout of the open flow.
func (e *Editor) Diagram() diagram.Diagram { return e.diagram }

// Overlay returns the active overlay.
func (e *Editor) Overlay() Overlay { return e.overlay }

// SetFlow opens f, discarding the previous flow and its tree.
func (e *Editor) SetFlow(f *Flow) {
	if f.Tasks == nil {
		f.Tasks = tasktree.New()
	}
	if f.Variables == nil {
		f.Variables = make(map[string]schema.Variable)
	}
	e.flow = f
	e.overlay = NoOverlay()
	e.refresh()
}

// AddFlowTask inserts task at the target of the open command palette or
// task form.
func (e *Editor) AddFlowTask(task schema.FlowTask) error {
	return e.InsertFlowTask(e.overlay.Target, task)
}

// InsertFlowTask inserts task after target.TaskID in the sequence named by
// target, or at its head when TaskID is empty.
func (e *Editor) InsertFlowTask(target Target, task schema.FlowTask) error {
	if e.flow == nil {
		return e.fail("add task", ErrNoFlow)
	}
	if _, err := e.flow.Tasks.AddTask(target.ParentID, target.SlotName, target.TaskID, task); err != nil {
		return e.fail("add task", err, slog.String("task_id", task.ID))
	}
	e.refresh()
	return nil
}

// UpdateFlowTask replaces the value of the task called id.
func (e *Editor) UpdateFlowTask(id string, task schema.FlowTask) error {
	if e.flow == nil {
		return e.fail("update task", ErrNoFlow)
	}
	node := e.flow.Tasks.SearchTask(id)
	if node == nil {
		return e.fail("update task", schema.NewErrorf(schema.ErrCodeNotFound, "task %s not found", id).WithTask(id))
	}
	if err := e.flow.Tasks.UpdateTask(node, task); err != nil {
		return e.fail("update task", err, slog.String("task_id", id))
	}
	e.refresh()
	return nil
}

// DeleteFlowTask removes the task called id from the sequence named by
// parentID and slotName, together with its nested tasks. Variables bound
// to outputs of any removed task are deleted from the flow.
func (e *Editor) DeleteFlowTask(id, parentID, slotName string) error {
	if e.flow == nil {
		return e.fail("delete task", ErrNoFlow)
	}
	node := e.flow.Tasks.SearchTask(id)
	if node == nil {
		return e.fail("delete task", schema.NewErrorf(schema.ErrCodeNotFound, "task %s not found", id).WithTask(id))
	}

	var bound []string
	removed := make(map[string]struct{})
	node.Walk(func(n *tasktree.TaskNode) bool {
		bound = append(bound, n.Value.BoundVariables()...)
		removed[n.ID()] = struct{}{}
		return true
	})

	if err := e.flow.Tasks.DeleteTask(node, parentID, slotName); err != nil {
		return e.fail("delete task", err, slog.String("task_id", id))
	}
	for _, name := range bound {
		delete(e.flow.Variables, name)
	}
	if e.overlay.Target.within(removed) {
		e.overlay = NoOverlay()
	}
	e.refresh()
	return nil
}

// SaveVariable creates or updates a variable. When oldName names an
// existing variable and differs from v.Name, the variable is renamed.
func (e *Editor) SaveVariable(oldName string, v schema.NamedVariable) error {
	if e.flow == nil {
		return e.fail("save variable", ErrNoFlow)
	}
	name := strings.TrimSpace(v.Name)
	if name == "" {
		return e.fail("save variable", schema.NewError(schema.ErrCodeValidation, "variable name must not be empty"))
	}

	vars := e.flow.Variables
	_, exists := vars[oldName]
	if name != oldName {
		if _, taken := vars[name]; taken {
			return e.fail("save variable", schema.NewErrorf(schema.ErrCodeConflict, "variable %s already exists", name))
		}
		if exists {
			delete(vars, oldName)
		}
	}
	vars[name] = v.Variable
	e.refresh()
	return nil
}

// DeleteVariable removes the variable called name.
func (e *Editor) DeleteVariable(name string) error {
	if e.flow == nil {
		return e.fail("delete variable", ErrNoFlow)
	}
	if _, ok := e.flow.Variables[name]; !ok {
		return e.fail("delete variable", schema.NewErrorf(schema.ErrCodeNotFound, "variable %s not found", name))
	}
	delete(e.flow.Variables, name)
	e.refresh()
	return nil
}

// CurrentFlowTask returns a copy of the task the open overlay targets.
func (e *Editor) CurrentFlowTask() (schema.FlowTask, bool) {
	if e.flow == nil || e.overlay.Target.TaskID == "" {
		return schema.FlowTask{}, false
	}
	node := e.flow.Tasks.SearchTask(e.overlay.Target.TaskID)
	if node == nil {
		return schema.FlowTask{}, false
	}
	return node.Value.Clone(), true
}

// CurrentVariable returns the variable the variable form edits. The name
// "new" yields a blank input variable declared by the user.
func (e *Editor) CurrentVariable() (schema.NamedVariable, bool) {
	name := e.overlay.Variable
	switch {
	case name == "":
		return schema.NamedVariable{}, false
	case name == NewVariableName:
		return schema.NamedVariable{
			Variable: schema.Variable{
				Property:   schema.Property{Type: schema.PropertyString},
				Scope:      schema.ScopeIn,
				DeclaredBy: DeclaredByUser,
			},
		}, true
	case e.flow == nil:
		return schema.NamedVariable{}, false
	default:
		return e.flow.NamedVariable(name)
	}
}

// OpenOverlay replaces the active overlay.
func (e *Editor) OpenOverlay(o Overlay) { e.overlay = o }

// CloseOverlay closes the active overlay and clears its target.
func (e *Editor) CloseOverlay() { e.overlay = NoOverlay() }

// TargetFromPlaceholder returns the insertion point a placeholder node
// stands for.
func (e *Editor) TargetFromPlaceholder(nodeID string) (Target, bool) {
	n := e.diagram.Node(nodeID)
	if n == nil || n.Type != diagram.NodeTypePlaceholder {
		return Target{}, false
	}
	return Target{
		TaskID:   n.Data.PrevFlowTaskID,
		ParentID: n.Data.ParentFlowTaskID,
		SlotName: n.Data.FlowSubtaskName,
	}, true
}

// ErrorsFor returns the flow errors that originate at taskID.
func (e *Editor) ErrorsFor(taskID string) []schema.FlowError {
	if e.flow == nil {
		return nil
	}
	var out []schema.FlowError
	for _, fe := range e.flow.Errors {
		if fe.TaskID() == taskID {
			out = append(out, fe)
		}
	}
	return out
}

// FieldError returns the first error reported for a task field.
func (e *Editor) FieldError(taskID, field string) (schema.FlowError, bool) {
	for _, fe := range e.ErrorsFor(taskID) {
		if fe.Field() == field {
			return fe, true
		}
	}
	return schema.FlowError{}, false
}

// Document returns the API form of the open flow.
func (e *Editor) Document() (schema.FlowAPI, bool) {
	if e.flow == nil {
		return schema.FlowAPI{}, false
	}
	return e.flow.ToAPI(), true
}

// refresh re-validates the open flow and recomputes the diagram.
func (e *Editor) refresh() {
	if e.flow == nil {
		e.diagram = e.engine.Layout(tasktree.New())
		return
	}
	if e.validator != nil {
		result := e.validator.Validate(e.flow.ToAPI())
		e.flow.Errors = result.Errors
	}
	e.diagram = e.engine.Layout(e.flow.Tasks)
}

// fail logs a rejected mutation and returns err unchanged. The flow is left
// as it was.
func (e *Editor) fail(op string, err error, attrs ...any) error {
	args := append([]any{slog.String("op", op), slog.Any("error", err)}, attrs...)
	if e.flow != nil {
		args = append(args, slog.String("flow_id", e.flow.ID))
	}
	e.logger.Warn("editor mutation rejected", args...)
	return err
}
