package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a Diagram as a Mermaid flowchart string. Subflow
// containers become subgraphs holding their nested nodes.
func RenderMermaid(d Diagram) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	writeMermaidLevel(&b, d, "", "    ")

	// Render edges.
	for _, edge := range d.Edges {
		link := "---"
		if edge.HasArrow() {
			link = "-->"
		}
		b.WriteString(fmt.Sprintf("    %s %s %s\n",
			mermaidSafeID(edge.Source), link, mermaidSafeID(edge.Target)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef placeholder fill:#f8fafc,stroke:#cbd5e1,stroke-dasharray:5 5\n")
	b.WriteString("    classDef subflow fill:#f1f5f9,stroke:#94a3b8\n")

	for _, node := range d.Nodes {
		if node.Type == NodeTypePlaceholder {
			b.WriteString(fmt.Sprintf("    class %s placeholder\n", mermaidSafeID(node.ID)))
		}
	}

	return b.String()
}

func writeMermaidLevel(b *strings.Builder, d Diagram, parentID, indent string) {
	for _, node := range d.ChildrenOf(parentID) {
		if node.Type != NodeTypeSubflow {
			b.WriteString(indent + mermaidNodeDef(node) + "\n")
			continue
		}
		b.WriteString(fmt.Sprintf("%ssubgraph %s[%q]\n", indent, mermaidSafeID(node.ID), node.Label()))
		writeMermaidLevel(b, d, node.ID, indent+"    ")
		b.WriteString(indent + "end\n")
	}
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node Node) string {
	id := mermaidSafeID(node.ID)
	label := node.Label()

	switch node.Type {
	case NodeTypePlaceholder:
		return fmt.Sprintf("%s((%q))", id, label)
	default: // task
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots and dashes with underscores; numeric placeholder ids get a
// letter prefix.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	id = r.Replace(id)
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		return "p" + id
	}
	return id
}
