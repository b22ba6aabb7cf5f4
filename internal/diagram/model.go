// Package diagram describes a laid-out flow as positioned nodes and edges,
// and renders it as Mermaid, ASCII or a Graphviz image.
package diagram

import (
	"sort"

	"github.com/rendis/flowedit/pkg/schema"
)

// NodeType classifies a diagram node.
type NodeType string

const (
	NodeTypeTask        NodeType = "task"
	NodeTypeSubflow     NodeType = "subflow"
	NodeTypePlaceholder NodeType = "placeholder"
)

// Edge rendering constants shared by every edge.
const (
	EdgeTypeSmoothStep = "smoothstep"
	EdgeStroke         = "#cbd5e1"
	EdgeStrokeWidth    = 2
)

// MarkerType names an edge arrowhead.
type MarkerType string

const MarkerArrowClosed MarkerType = "arrowclosed"

// Diagram is the renderer input: nodes in emission order plus edges.
type Diagram struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one positioned box. Positions of nodes with a ParentID are
// relative to that container.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Data     NodeData `json:"data"`
	Position Position `json:"position"`
	ParentID string   `json:"parentId,omitempty"`
	Style    Size     `json:"style"`
}

// NodeData carries back-references to the flow. Task and subflow nodes set
// FlowTask; placeholders set PrevFlowTaskID when they follow a task.
type NodeData struct {
	FlowTask         *schema.FlowTask `json:"flowTask,omitempty"`
	PrevFlowTaskID   string           `json:"prevFlowTaskId,omitempty"`
	ParentFlowTaskID string           `json:"parentFlowTaskId,omitempty"`
	FlowSubtaskName  string           `json:"flowSubtaskName,omitempty"`
}

// Position is a point in layout units.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is the width and height of a node.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Edge is a directed connector between two nodes.
type Edge struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      string    `json:"type"`
	MarkerEnd *Marker   `json:"markerEnd,omitempty"`
	Style     EdgeStyle `json:"style"`
}

// Marker is an edge end decoration.
type Marker struct {
	Type MarkerType `json:"type"`
}

// EdgeStyle holds stroke hints.
type EdgeStyle struct {
	StrokeWidth int    `json:"strokeWidth"`
	Stroke      string `json:"stroke"`
}

// NewEdge returns an edge from source to target, with an arrowhead when
// arrow is set.
func NewEdge(source, target string, arrow bool) Edge {
	e := Edge{
		ID:     source + "-" + target,
		Source: source,
		Target: target,
		Type:   EdgeTypeSmoothStep,
		Style:  EdgeStyle{StrokeWidth: EdgeStrokeWidth, Stroke: EdgeStroke},
	}
	if arrow {
		e.MarkerEnd = &Marker{Type: MarkerArrowClosed}
	}
	return e
}

// HasArrow reports whether the edge ends in an arrowhead.
func (e Edge) HasArrow() bool { return e.MarkerEnd != nil }

// Label is the display text of a node.
func (n Node) Label() string {
	if n.Type == NodeTypePlaceholder {
		return "+"
	}
	if t := n.Data.FlowTask; t != nil {
		if t.DisplayName != "" {
			return firstLine(t.DisplayName)
		}
		return t.Name
	}
	return n.ID
}

// Node returns the node with the given id, or nil.
func (d *Diagram) Node(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// Edge returns the edge from source to target, or nil.
func (d *Diagram) Edge(source, target string) *Edge {
	for i := range d.Edges {
		if d.Edges[i].Source == source && d.Edges[i].Target == target {
			return &d.Edges[i]
		}
	}
	return nil
}

// ChildrenOf returns the nodes directly contained in parentID ("" for the
// top level), ordered top to bottom.
func (d *Diagram) ChildrenOf(parentID string) []Node {
	var out []Node
	for _, n := range d.Nodes {
		if n.ParentID == parentID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position.Y < out[j].Position.Y
	})
	return out
}

// Count returns the number of nodes of the given type.
func (d *Diagram) Count(t NodeType) int {
	c := 0
	for _, n := range d.Nodes {
		if n.Type == t {
			c++
		}
	}
	return c
}
