// Package layout turns a task tree into a positioned diagram. The layout is
// rule based and deterministic: the same tree always yields the same nodes,
// edges and placeholder ids.
package layout

import (
	"strconv"

	"github.com/rendis/flowedit/internal/diagram"
	"github.com/rendis/flowedit/internal/tasktree"
	"github.com/rendis/flowedit/pkg/schema"
)

// Geometry in layout units.
const (
	TaskWidth         = 512
	TaskHeight        = 80
	PlaceholderWidth  = 256
	PlaceholderHeight = 40
	EdgeLength        = 40
	AreaPaddingLeft   = 40
	AreaPaddingRight  = 40
	AreaPaddingTop    = 90
	AreaPaddingBottom = 40

	areaPaddingX      = AreaPaddingLeft + AreaPaddingRight
	placeholderOffset = (TaskWidth - PlaceholderWidth) / 2
)

// Frame describes the sequence currently being laid out.
type Frame struct {
	ParentID    string // owning task, "" at top level
	SlotName    string
	TotalHeight int
	Depth       int
	X           int
}

// Result is the geometry of a sequence or of a single task.
type Result struct {
	Nodes []diagram.Node
	Edges []diagram.Edge
	Count int // next free placeholder id
	Y     int // cursor below the laid out part
}

// Rule lays out one behavioral task whose top edge is at y, numbering its
// placeholders from count.
type Rule func(e *Engine, f Frame, n *tasktree.TaskNode, count, y int) Result

// Engine holds the layout rules for behavioral task kinds. Runnable tasks
// need no rule.
type Engine struct {
	rules map[string]Rule
}

// New returns an engine with the built-in rules registered.
func New() *Engine {
	e := &Engine{rules: make(map[string]Rule)}
	e.RegisterRule(schema.TaskForeach, Foreach)
	return e
}

// RegisterRule sets the rule for a behavioral task kind, replacing any
// existing one. Behavioral kinds without a rule produce no geometry.
func (e *Engine) RegisterRule(kind string, r Rule) {
	e.rules[kind] = r
}

// HasRule reports whether kind has a layout rule.
func (e *Engine) HasRule(kind string) bool {
	_, ok := e.rules[kind]
	return ok
}

// Layout lays out tree with the built-in rules.
func Layout(tree *tasktree.Tree) diagram.Diagram {
	return New().Layout(tree)
}

// Layout lays out the whole tree. The first top-level task sits at y = 0,
// its leading placeholder one placeholder and edge above.
func (e *Engine) Layout(tree *tasktree.Tree) diagram.Diagram {
	r := e.Sequence(tree.Head(), Frame{}, 1, -(PlaceholderHeight + EdgeLength))
	if r.Edges == nil {
		r.Edges = []diagram.Edge{}
	}
	return diagram.Diagram{Nodes: r.Nodes, Edges: r.Edges}
}

// Sequence lays out the chain starting at start. The leading placeholder is
// placed at y and always emitted, even for an empty chain.
func (e *Engine) Sequence(start *tasktree.TaskNode, f Frame, count, y int) Result {
	var r Result
	r.Nodes = append(r.Nodes, Placeholder(f, "", count, y))
	if start != nil {
		r.Edges = append(r.Edges, diagram.NewEdge(strconv.Itoa(count), start.ID(), true))
		y += PlaceholderHeight + EdgeLength
	} else {
		y += PlaceholderHeight
	}
	count++

	for n := start; n != nil; n = n.Next() {
		var step Result
		switch n.Value.Type {
		case schema.TaskTypeRunnable:
			step = runnable(f, n, count, y)
		case schema.TaskTypeBehavioral:
			rule, ok := e.rules[n.Value.Name]
			if !ok {
				continue
			}
			step = rule(e, f, n, count, y)
		default:
			continue
		}
		r.Nodes = append(r.Nodes, step.Nodes...)
		r.Edges = append(r.Edges, step.Edges...)
		count, y = step.Count, step.Y
	}

	r.Count, r.Y = count, y
	return r
}

// runnable emits task -> placeholder [-> next].
func runnable(f Frame, n *tasktree.TaskNode, count, y int) Result {
	id := strconv.Itoa(count)
	r := Result{
		Nodes: []diagram.Node{
			TaskNode(f, n, diagram.NodeTypeTask, f.X, y, diagram.Size{Width: TaskWidth, Height: TaskHeight}),
			Placeholder(f, n.ID(), count, y+TaskHeight+EdgeLength),
		},
		Edges: []diagram.Edge{diagram.NewEdge(n.ID(), id, false)},
		Count: count + 1,
		Y:     y + TaskHeight + EdgeLength + PlaceholderHeight,
	}
	if next := n.Next(); next != nil {
		r.Edges = append(r.Edges, diagram.NewEdge(id, next.ID(), true))
		r.Y += EdgeLength
	}
	return r
}

// TaskNode builds the diagram node of a task or container.
func TaskNode(f Frame, n *tasktree.TaskNode, typ diagram.NodeType, x, y int, size diagram.Size) diagram.Node {
	task := n.Value.Clone()
	return diagram.Node{
		ID:   n.ID(),
		Type: typ,
		Data: diagram.NodeData{
			FlowTask:         &task,
			ParentFlowTaskID: f.ParentID,
			FlowSubtaskName:  f.SlotName,
		},
		Position: diagram.Position{X: x, Y: y},
		ParentID: f.ParentID,
		Style:    size,
	}
}

// Placeholder builds an insertion point centered under a task of the frame.
func Placeholder(f Frame, prevID string, count, y int) diagram.Node {
	return diagram.Node{
		ID:   strconv.Itoa(count),
		Type: diagram.NodeTypePlaceholder,
		Data: diagram.NodeData{
			PrevFlowTaskID:   prevID,
			ParentFlowTaskID: f.ParentID,
			FlowSubtaskName:  f.SlotName,
		},
		Position: diagram.Position{X: f.X + placeholderOffset, Y: y},
		ParentID: f.ParentID,
		Style:    diagram.Size{Width: PlaceholderWidth, Height: PlaceholderHeight},
	}
}
