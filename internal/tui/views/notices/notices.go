// Package notices provides the scrollable log of server notices.
package notices

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/tui/theme"
)

const maxEntries = 200

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Error   bool
	Message string
}

// Model holds the log state.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset (from bottom)
}

func New() Model {
	return Model{}
}

// Add appends an entry and caps the buffer.
func (m *Model) Add(isErr bool, message string) {
	m.Entries = append(m.Entries, Entry{
		Time:    time.Now(),
		Error:   isErr,
		Message: message,
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// ScrollUp moves the viewport up.
func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

// View renders the last lines entries visible at the current offset.
func (m Model) View(width, lines int) string {
	if lines < 1 {
		lines = 1
	}
	if len(m.Entries) == 0 {
		return theme.StyleDimmed.Render("  No messages yet.")
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-lines, 0)

	out := make([]string, 0, end-start+1)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
		msg := e.Message
		if width > 20 && len(msg) > width-12 {
			msg = msg[:width-15] + "..."
		}
		if e.Error {
			msg = theme.StyleError.Render(msg)
		}
		out = append(out, fmt.Sprintf("%s %s", ts, msg))
	}
	if m.Offset > 0 {
		out = append(out, theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset)))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(out, "\n"))
}
