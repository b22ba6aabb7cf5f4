package diagram

import "github.com/rendis/flowedit/pkg/schema"

// --- Test diagram builders ---

func taskNode(id, parentID string, y int) Node {
	return Node{
		ID:   id,
		Type: NodeTypeTask,
		Data: NodeData{FlowTask: &schema.FlowTask{
			ID:          id,
			Name:        "core.http.request",
			DisplayName: "Fetch " + id,
			Type:        schema.TaskTypeRunnable,
		}},
		Position: Position{X: 0, Y: y},
		ParentID: parentID,
		Style:    Size{Width: 512, Height: 80},
	}
}

func placeholderNode(id, prevID, parentID string, y int) Node {
	return Node{
		ID:       id,
		Type:     NodeTypePlaceholder,
		Data:     NodeData{PrevFlowTaskID: prevID},
		Position: Position{X: 128, Y: y},
		ParentID: parentID,
		Style:    Size{Width: 256, Height: 40},
	}
}

// linearDiagram is P1 -> a -> P2 -> b -> P3.
func linearDiagram() Diagram {
	return Diagram{
		Nodes: []Node{
			placeholderNode("1", "", "", -80),
			taskNode("a", "", 0),
			placeholderNode("2", "a", "", 120),
			taskNode("b", "", 200),
			placeholderNode("3", "b", "", 320),
		},
		Edges: []Edge{
			NewEdge("1", "a", true),
			NewEdge("a", "2", false),
			NewEdge("2", "b", true),
			NewEdge("b", "3", false),
		},
	}
}

// loopDiagram is a foreach container holding one task.
func loopDiagram() Diagram {
	loop := Node{
		ID:   "loop",
		Type: NodeTypeSubflow,
		Data: NodeData{FlowTask: &schema.FlowTask{
			ID:          "loop",
			Name:        schema.TaskForeach,
			DisplayName: "For each item",
			Type:        schema.TaskTypeBehavioral,
			Subtasks:    []string{schema.SlotForeach},
		}},
		Position: Position{X: -40, Y: 0},
		Style:    Size{Width: 592, Height: 330},
	}
	inner := placeholderNode("2", "", "loop", 90)
	inner.Data.ParentFlowTaskID = "loop"
	inner.Data.FlowSubtaskName = schema.SlotForeach
	body := taskNode("body", "loop", 170)
	body.Data.ParentFlowTaskID = "loop"
	return Diagram{
		Nodes: []Node{
			placeholderNode("1", "", "", -80),
			loop,
			placeholderNode("4", "loop", "", 410),
			inner,
			body,
			placeholderNode("3", "body", "loop", 290),
		},
		Edges: []Edge{
			NewEdge("1", "loop", true),
			NewEdge("loop", "4", false),
			NewEdge("2", "body", true),
			NewEdge("body", "3", false),
		},
	}
}
