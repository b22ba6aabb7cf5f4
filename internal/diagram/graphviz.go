package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a Diagram as a PNG image using graphviz.
// Subflow containers become dashed clusters. Returns the PNG bytes.
func RenderImage(ctx context.Context, d Diagram) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)

	gvNodes := make(map[string]*cgraph.Node, len(d.Nodes))
	if err := addGraphvizLevel(graph, d, "", gvNodes); err != nil {
		return nil, err
	}

	// Create edges.
	for _, edge := range d.Edges {
		fromGV, toGV := gvNodes[edge.Source], gvNodes[edge.Target]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, eErr := graph.CreateEdgeByName(edge.ID, fromGV, toGV)
		if eErr != nil {
			return nil, fmt.Errorf("diagram: create edge %s: %w", edge.ID, eErr)
		}
		if !edge.HasArrow() {
			e.SetArrowHead(cgraph.NoneArrow)
		}
	}

	// Render to PNG.
	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// addGraphvizLevel creates the nodes contained in parentID inside g. A
// subflow gets its own cluster holding a header node and its contents.
func addGraphvizLevel(g *cgraph.Graph, d Diagram, parentID string, gvNodes map[string]*cgraph.Node) error {
	for _, node := range d.ChildrenOf(parentID) {
		target := g
		if node.Type == NodeTypeSubflow {
			sub, err := g.CreateSubGraphByName("cluster_" + node.ID)
			if err != nil {
				return fmt.Errorf("diagram: create cluster %s: %w", node.ID, err)
			}
			sub.SetLabel(node.Label())
			sub.SetStyle(cgraph.DashedGraphStyle)
			target = sub
		}

		gvNode, err := target.CreateNodeByName(node.ID)
		if err != nil {
			return fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		gvNode.SetLabel(node.Label())
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode

		if node.Type == NodeTypeSubflow {
			if err := addGraphvizLevel(target, d, node.ID, gvNodes); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyNodeStyle sets graphviz attributes based on node type.
func applyNodeStyle(gvNode *cgraph.Node, node Node) {
	switch node.Type {
	case NodeTypeTask:
		gvNode.SetShape(cgraph.BoxShape)
	case NodeTypeSubflow:
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetStyle(cgraph.FilledNodeStyle)
		gvNode.SetFillColor("#f1f5f9")
	case NodeTypePlaceholder:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.3)
		gvNode.SetHeight(0.3)
		gvNode.SetStyle(cgraph.DashedNodeStyle)
		gvNode.SetFontColor("#888888")
	}
}
