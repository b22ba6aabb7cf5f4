package diagram

import (
	"fmt"
	"strings"
)

// RenderASCII renders a Diagram as a top-to-bottom text sketch using
// box-drawing characters. Subflow contents are indented inside a bracket.
func RenderASCII(d Diagram) string {
	var b strings.Builder
	renderASCIILevel(&b, d, "", "")
	return b.String()
}

func renderASCIILevel(b *strings.Builder, d Diagram, parentID, indent string) {
	for i, node := range d.ChildrenOf(parentID) {
		if i > 0 {
			renderConnector(b, indent, arrowInto(d, node.ID))
		}
		switch node.Type {
		case NodeTypePlaceholder:
			b.WriteString(indent + "   (+)\n")
		case NodeTypeSubflow:
			b.WriteString(fmt.Sprintf("%s┌─ %s\n", indent, node.Label()))
			renderASCIILevel(b, d, node.ID, indent+"│  ")
			b.WriteString(indent + "└─\n")
		default:
			for _, line := range makeBox(node).lines {
				b.WriteString(indent + line + "\n")
			}
		}
	}
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node Node) asciiBox {
	var contentLines []string
	contentLines = append(contentLines, node.Label())
	if t := node.Data.FlowTask; t != nil && t.Name != node.Label() {
		contentLines = append(contentLines, t.Name)
	}

	maxLen := 0
	for _, line := range contentLines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderConnector draws a vertical connector, ending in an arrow when the
// edge entering the next node has one.
func renderConnector(b *strings.Builder, indent string, arrow bool) {
	b.WriteString(indent + "    │\n")
	if arrow {
		b.WriteString(indent + "    ▼\n")
	}
}

func arrowInto(d Diagram, id string) bool {
	for _, e := range d.Edges {
		if e.Target == id {
			return e.HasArrow()
		}
	}
	return false
}
