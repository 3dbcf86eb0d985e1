package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Username  string
	Transport string
	Round     int
	Players   int
	Width     int
}

func New(username, transport string) Model {
	return Model{Connected: true, Username: username, Transport: transport}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Disconnected")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + theme.StyleHeader.Render(m.Username)
	if m.Transport != "" {
		content += theme.StyleDimmed.Render(" via " + m.Transport)
	}
	content += sep + fmt.Sprintf("%d players", m.Players)
	if m.Round > 0 {
		content += sep + fmt.Sprintf("round %d", m.Round)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
