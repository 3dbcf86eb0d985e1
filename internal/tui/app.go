// Package tui renders a client session, either as a Bubble Tea program or as
// a plain line-oriented loop.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/client"
	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/tui/theme"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/tui/views/notices"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/tui/views/status"
)

// --- Bubble Tea messages ---

// UpdateMsg is sent when the organizer changed.
type UpdateMsg struct{}

// NoticeMsg carries a server notice or a local error.
type NoticeMsg struct{ Notice client.Notice }

// DisconnectedMsg is sent when the session ended.
type DisconnectedMsg struct{ Err error }

// Model is the root Bubble Tea model.
type Model struct {
	session Session
	ctx     context.Context
	done    <-chan error

	keys   KeyMap
	width  int
	height int

	statusBar status.Model
	log       notices.Model
	input     textinput.Model

	version  uint64
	turnLine string

	showCards bool
	cards     string
}

// New creates the root model. done yields the result of the session's Run
// once it returns; it may be nil.
func New(ctx context.Context, s Session, transport string, done <-chan error) Model {
	in := textinput.New()
	in.Placeholder = "type a command, help for the list"
	in.Prompt = "› "
	in.CharLimit = 128
	in.Focus()

	org := s.Organizer()
	return Model{
		session:   s,
		ctx:       ctx,
		done:      done,
		keys:      DefaultKeyMap(),
		statusBar: status.New(org.Username(), transport),
		log:       notices.New(),
		input:     in,
		version:   org.Version(),
		turnLine:  turnText(org),
	}
}

// Run shows the display until the user quits or ctx ends.
func Run(ctx context.Context, s Session, transport string, done <-chan error) error {
	p := tea.NewProgram(New(ctx, s, transport, done), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitUpdate(), m.waitNotice(), m.waitDone())
}

func (m Model) waitUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.session.Updates():
			return UpdateMsg{}
		}
	}
}

func (m Model) waitNotice() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case n := <-m.session.Notices():
			return NoticeMsg{Notice: n}
		}
	}
}

func (m Model) waitDone() tea.Cmd {
	if m.done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case err := <-m.done:
			return DisconnectedMsg{Err: err}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		m.refresh()
		return m, m.waitUpdate()

	case NoticeMsg:
		m.log.Add(msg.Notice.Error, msg.Notice.Text)
		return m, m.waitNotice()

	case DisconnectedMsg:
		m.statusBar.Connected = false
		text := "connection closed"
		if msg.Err != nil {
			text = "connection lost: " + apperrors.Message(msg.Err)
		}
		m.log.Add(true, text)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh picks up organizer changes. The turn line is rebuilt only when the
// active turn moved, or the game ended.
func (m *Model) refresh() {
	org := m.session.Organizer()
	v := org.Version()
	if v == m.version {
		return
	}
	m.version = v
	m.statusBar.Username = org.Username()
	m.statusBar.Players = len(org.Connections())
	if nt, ok := org.NextTurn(); ok {
		m.statusBar.Round = nt.Round
	}
	_, over := org.Scoreboard()
	if org.TurnChanged() || over {
		m.turnLine = turnText(org)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ScrollUp):
		m.log.ScrollUp(5)
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.log.ScrollDown(5)
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if m.showCards {
			m.showCards = false
			return m, nil
		}
		m.input.SetValue("")
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		line := m.input.Value()
		m.input.SetValue("")
		return m.submit(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	cmd, ok := ParseCommand(line)
	switch {
	case !ok:
		return m, nil
	case cmd.Quit:
		return m, tea.Quit
	case cmd.Help:
		m.log.Add(false, helpText)
		return m, nil
	case cmd.Cards:
		m.toggleCards()
		return m, nil
	}
	s := m.session
	return m, func() tea.Msg {
		if err := s.Do(cmd.Action, cmd.Args...); err != nil {
			return NoticeMsg{Notice: client.Notice{Error: true, Text: apperrors.Message(err)}}
		}
		return nil
	}
}

func (m *Model) toggleCards() {
	if m.showCards {
		m.showCards = false
		return
	}
	md := cardsMarkdown(m.session.Organizer())
	if md == "" {
		m.log.Add(true, noGame)
		return
	}
	m.cards = renderMarkdown(md, m.width)
	m.showCards = true
}

// View renders the full display.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	org := m.session.Organizer()

	sections := []string{
		m.statusBar.View(),
		m.renderPlayers(),
		m.renderDice(),
	}
	for _, line := range setupText(org) {
		sections = append(sections, theme.StyleDimmed.Render("  "+line))
	}
	sections = append(sections, theme.StyleHeader.Render("  "+m.turnLine))
	if m.showCards {
		sections = append(sections, theme.StyleBorder.Render(m.cards))
	} else {
		sections = append(sections, m.log.View(m.width-2, max(m.height-20, 3)))
	}
	sections = append(sections,
		m.input.View(),
		theme.StyleDimmed.Render("  enter:send  esc:clear  pgup/pgdn:scroll  ctrl+c:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderPlayers() string {
	rows := playerRows(m.session.Organizer())
	lines := []string{theme.StyleHeader.Render("=== PLAYERS")}
	if len(rows) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  Nobody here yet"))
	}
	for _, r := range rows {
		prefix := "  "
		if r.Active {
			prefix = "▶ "
		}
		glyph := lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("●")
		if !r.Connected {
			glyph = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○")
		}
		name := fmt.Sprintf("%-20s", r.Name)
		if r.Changed {
			name = theme.StyleSelected.Render(name)
		}
		line := prefix + glyph + " " + name + theme.StyleDimmed.Render(fmt.Sprintf(" tokens %d", r.Tokens))
		if r.Pattern != "" {
			line += "  " + r.Pattern
		}
		lines = append(lines, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderDice() string {
	org := m.session.Organizer()

	pool := org.DraftPool()
	dice := make([]string, len(pool))
	for i, d := range pool {
		dice[i] = theme.StyleDimmed.Render(fmt.Sprintf("%d", i)) + theme.Die(d)
	}
	poolLine := "  pool  " + strings.Join(dice, " ")
	if len(pool) == 0 {
		poolLine += theme.StyleDimmed.Render("empty")
	}

	track := org.RoundTrack()
	rounds := make([]string, len(track))
	for i, r := range track {
		faces := make([]string, len(r))
		for j, d := range r {
			faces[j] = theme.Die(d)
		}
		rounds[i] = theme.StyleDimmed.Render(fmt.Sprintf("%d:", i+1)) + strings.Join(faces, "")
	}
	trackLine := "  track " + strings.Join(rounds, " ")

	return lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleHeader.Render("=== DICE"),
		poolLine,
		trackLine,
	)
}
