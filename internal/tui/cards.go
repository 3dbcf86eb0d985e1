package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/organizer"
)

// cardsMarkdown describes the cards of the current game. It is empty before
// the game setup arrives.
func cardsMarkdown(org *organizer.Organizer) string {
	setup, ok := org.GameSetup()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Tool cards\n\n")
	for i, c := range setup.ToolCards {
		fmt.Fprintf(&b, "- `%d` **%s**: %s\n", i, c.Name, c.Description)
	}
	if objs := setup.PrivateObjectives[org.Username()]; len(objs) > 0 {
		b.WriteString("\n## Private objective\n\n")
		for _, c := range objs {
			fmt.Fprintf(&b, "- **%s**: %s\n", c.Name, c.Description)
		}
	}
	return b.String()
}

// renderMarkdown formats md for a terminal of the given width. The source is
// returned as is when rendering fails.
func renderMarkdown(md string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
