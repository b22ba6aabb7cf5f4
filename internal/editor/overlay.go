package editor

// OverlayKind names the single modal surface open over the diagram.
type OverlayKind string

const (
	OverlayNone           OverlayKind = "none"
	OverlayExecutionForm  OverlayKind = "execution-form"
	OverlayFlowForm       OverlayKind = "flow-form"
	OverlayTaskForm       OverlayKind = "task-form"
	OverlayCommandPalette OverlayKind = "command-palette"
	OverlayVariables      OverlayKind = "variables"
	OverlayVariableForm   OverlayKind = "variable-form"
)

// Target locates a task in the tree. For the command palette TaskID is
// the task the new one goes after (empty to prepend); for the task form it
// is the task being edited. ParentID and SlotName are empty at top level.
type Target struct {
	TaskID   string `json:"taskId,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	SlotName string `json:"slotName,omitempty"`
}

// within reports whether the target names a task or parent in ids.
func (t Target) within(ids map[string]struct{}) bool {
	if _, ok := ids[t.TaskID]; ok {
		return true
	}
	_, ok := ids[t.ParentID]
	return ok
}

// Overlay is the active overlay and its parameters. Only the task form and
// command palette carry a Target; only the variable form carries Variable.
type Overlay struct {
	Kind     OverlayKind `json:"kind"`
	Target   Target      `json:"target,omitzero"`
	Variable string      `json:"variable,omitempty"`
}

// NoOverlay is the closed state.
func NoOverlay() Overlay { return Overlay{Kind: OverlayNone} }

func ExecutionForm() Overlay { return Overlay{Kind: OverlayExecutionForm} }

func FlowForm() Overlay { return Overlay{Kind: OverlayFlowForm} }

// TaskForm edits the task at t.
func TaskForm(t Target) Overlay { return Overlay{Kind: OverlayTaskForm, Target: t} }

// CommandPalette picks a catalog task to insert at t.
func CommandPalette(t Target) Overlay { return Overlay{Kind: OverlayCommandPalette, Target: t} }

func Variables() Overlay { return Overlay{Kind: OverlayVariables} }

// VariableForm edits the variable called name; "new" opens a blank one.
func VariableForm(name string) Overlay { return Overlay{Kind: OverlayVariableForm, Variable: name} }

// IsOpen reports whether any overlay is shown.
func (o Overlay) IsOpen() bool { return o.Kind != "" && o.Kind != OverlayNone }
