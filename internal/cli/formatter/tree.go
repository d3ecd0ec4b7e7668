package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TreeItem is one line of a rendered hierarchy. Lasts holds, for every
// level from the top down to this item, whether that ancestor (and finally
// the item itself) is the last among its siblings.
type TreeItem struct {
	Code   string
	Title  string
	Badge  string
	Lasts  []bool
	Status string
	Detail string
}

const (
	treeBranch = "├─ "
	treeCorner = "└─ "
	treePipe   = "│  "
	treeBlank  = "   "
)

func (it TreeItem) prefix() string {
	if len(it.Lasts) <= 1 {
		return ""
	}
	var b strings.Builder
	// The top level is drawn flush left.
	for _, last := range it.Lasts[1 : len(it.Lasts)-1] {
		if last {
			b.WriteString(treeBlank)
		} else {
			b.WriteString(treePipe)
		}
	}
	if it.Lasts[len(it.Lasts)-1] {
		b.WriteString(treeCorner)
	} else {
		b.WriteString(treeBranch)
	}
	return b.String()
}

// RenderTree draws items with box-drawing connectors. Completed items get a
// green ✔, in-progress items an amber ▶, and details are right-aligned in
// a badge column.
func RenderTree(items []TreeItem) string {
	if len(items) == 0 {
		return ""
	}

	contents := make([]string, len(items))
	widest := 0
	for i, item := range items {
		title := item.Title
		if item.Code != "" {
			title = StyleDim.Render(item.Code) + " " + title
		}
		if item.Badge != "" {
			title = item.Badge + " " + title
		}
		switch strings.ToLower(item.Status) {
		case "completed":
			title = StyleGreen.Render("✔ ") + title
		case "in_progress":
			title = StyleYellowBold.Render("▶ ") + title
		}
		contents[i] = StyleDim.Render(item.prefix()) + title
		widest = max(widest, lipgloss.Width(contents[i]))
	}

	var b strings.Builder
	for i, item := range items {
		b.WriteString(contents[i])
		if item.Detail != "" {
			pad := widest - lipgloss.Width(contents[i])
			b.WriteString(strings.Repeat(" ", pad) + "  " + StyleBlue.Render(fmt.Sprintf("[ %s ]", item.Detail)))
		}
		b.WriteString("\n")
	}
	return b.String()
}
