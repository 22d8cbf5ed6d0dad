package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
)

// Overlay contains a learner's progress to visualize on the outline.
type Overlay struct {
	Statuses map[string]domain.Status
	Current  string
}

// GenerateMermaid produces a Mermaid flowchart of a course outline.
// It applies semantic styling:
// - Chapter: [[Subroutine]]
// - Trial lesson: ([Stadium])
// - Hidden lesson: [/Parallelogram/]
// - Default: [Rectangle]
// Goto rules are drawn as dotted edges labelled with the matching value.
func GenerateMermaid(tree *domain.Tree, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, item := range tree.Walk() {
		safeID := sanitizeMermaidID(item.ID)

		opener, closer := "[", "]"
		switch {
		case tree.HasChildren(item.ID):
			opener, closer = "[[", "]]"
		case item.Kind == domain.ItemTrial:
			opener, closer = "([", "])"
		case item.Kind == domain.ItemHidden:
			opener, closer = "[/", "/]"
		}

		title := item.Title
		if title == "" {
			title = item.ID
		}
		fmt.Fprintf(&sb, "    %s%s\"%s %s\"%s\n", safeID, opener, tree.PositionCode(item.ID), escape(title), closer)

		if item.ParentID != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(item.ParentID), safeID)
		}

		for pos := 1; pos <= tree.BlockCount(item.ID); pos++ {
			b, _ := tree.Block(item.ID, pos)
			if b.Interaction != domain.InteractionGoto {
				continue
			}
			for _, r := range b.Payload.Rules {
				fmt.Fprintf(&sb, "    %s -. \"%s = %s\" .-> %s\n",
					safeID, escape(b.Payload.Variable), escape(r.Value), sanitizeMermaidID(r.Target))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Progress\n")
		// Force black text (color:#000) for contrast regardless of theme
		sb.WriteString("    classDef completed fill:#c8e6c9,stroke:#2e7d32,color:#000;\n")
		sb.WriteString("    classDef started fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef locked fill:#eeeeee,stroke:#9e9e9e,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, item := range tree.Walk() {
			class := ""
			switch overlay.Statuses[item.ID] {
			case domain.StatusCompleted:
				class = "completed"
			case domain.StatusInProgress, domain.StatusBranch, domain.StatusNotStarted:
				class = "started"
			case domain.StatusLocked:
				class = "locked"
			}
			if class != "" {
				fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(item.ID), class)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
