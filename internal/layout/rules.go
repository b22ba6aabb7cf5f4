package layout

import (
	"strconv"

	"github.com/rendis/flowedit/internal/diagram"
	"github.com/rendis/flowedit/internal/tasktree"
	"github.com/rendis/flowedit/pkg/schema"
)

// Foreach lays out a loop as a subflow container holding its body, followed
// by a placeholder:
//
//	container(body) -> placeholder [-> next]
//
// The container and its placeholder are emitted before the body nodes.
func Foreach(e *Engine, f Frame, n *tasktree.TaskNode, count, y int) Result {
	h := n.Height()
	inner := e.Sequence(n.Children(schema.SlotForeach), Frame{
		ParentID:    n.ID(),
		SlotName:    schema.SlotForeach,
		TotalHeight: max(f.TotalHeight, h),
		Depth:       f.Depth + 1,
		X:           AreaPaddingLeft * h,
	}, count, AreaPaddingTop)

	size := diagram.Size{
		Width:  TaskWidth + areaPaddingX*h,
		Height: inner.Y + AreaPaddingBottom,
	}
	id := strconv.Itoa(inner.Count)
	r := Result{
		Nodes: []diagram.Node{
			TaskNode(f, n, diagram.NodeTypeSubflow, SubflowX(f, h), y, size),
			Placeholder(f, n.ID(), inner.Count, y+inner.Y+AreaPaddingBottom+EdgeLength),
		},
		Edges: []diagram.Edge{diagram.NewEdge(n.ID(), id, false)},
		Count: inner.Count + 1,
		Y:     y + inner.Y + AreaPaddingBottom + EdgeLength + PlaceholderHeight,
	}
	if next := n.Next(); next != nil {
		r.Edges = append(r.Edges, diagram.NewEdge(id, next.ID(), true))
		r.Y += EdgeLength
	}
	r.Nodes = append(r.Nodes, inner.Nodes...)
	r.Edges = append(r.Edges, inner.Edges...)
	return r
}

// SubflowX returns the x of a container of the given height. Top-level
// containers shift left by their height so their body lines up with the
// top-level tasks. Nested containers sit at the area padding, or further
// right when shallower than their deepest sibling area.
func SubflowX(f Frame, height int) int {
	switch {
	case f.ParentID == "":
		return -AreaPaddingLeft * height
	case f.Depth != f.TotalHeight && abs(height-f.Depth) == f.TotalHeight-1:
		return AreaPaddingLeft * (f.TotalHeight - height)
	default:
		return AreaPaddingLeft
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
