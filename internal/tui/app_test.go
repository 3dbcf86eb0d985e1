package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/client"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/organizer"
)

type fakeSession struct {
	org     *organizer.Organizer
	updates chan struct{}
	notices chan client.Notice

	mu   sync.Mutex
	done []string
	err  error
}

func newFakeSession(username string) *fakeSession {
	org := organizer.New()
	org.SetUsername(username)
	return &fakeSession{
		org:     org,
		updates: make(chan struct{}, 1),
		notices: make(chan client.Notice, 4),
	}
}

func (s *fakeSession) Organizer() *organizer.Organizer { return s.org }
func (s *fakeSession) Updates() <-chan struct{}        { return s.updates }
func (s *fakeSession) Notices() <-chan client.Notice   { return s.notices }

func (s *fakeSession) Do(action string, args ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = append(s.done, strings.TrimSpace(action+" "+strings.Join(args, " ")))
	return s.err
}

func (s *fakeSession) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.done...)
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"draft 2", Command{Action: "draft", Args: []string{"2"}}, true},
		{"  PASS ", Command{Action: "pass", Args: []string{}}, true},
		{"quit", Command{Quit: true}, true},
		{"exit", Command{Quit: true}, true},
		{"?", Command{Help: true}, true},
		{"Cards", Command{Cards: true}, true},
		{"   ", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseCommand(tt.line)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want.Action, got.Action)
			assert.Equal(t, tt.want.Quit, got.Quit)
			assert.Equal(t, tt.want.Help, got.Help)
			assert.Equal(t, tt.want.Cards, got.Cards)
			assert.Len(t, got.Args, len(tt.want.Args))
		})
	}
}

func TestViewBeforeResize(t *testing.T) {
	m := New(context.Background(), newFakeSession("Pippo"), "socket", nil)
	assert.Equal(t, "Initializing...", m.View())
}

func TestUpdateRefreshesBoard(t *testing.T) {
	s := newFakeSession("Pippo")
	m := sized(New(context.Background(), s, "socket", nil))

	s.org.Push(event.PlayerConnectionStatus{Player: "Pippo", Connected: true})
	s.org.Push(event.PlayerConnectionStatus{Player: "Pluto", Connected: true})
	s.org.Push(event.NewDraftPoolUpdate([]game.Die{{Color: game.Red, Value: 3}}))
	s.org.Push(event.NextTurn{Player: "Pippo", Round: 1, FirstTurn: true})

	next, cmd := m.Update(UpdateMsg{})
	m = next.(Model)
	assert.NotNil(t, cmd, "update keeps waiting for changes")
	assert.Equal(t, 2, m.statusBar.Players)
	assert.Equal(t, 1, m.statusBar.Round)
	v := m.View()
	for _, want := range []string{"PLAYERS", "Pippo", "Pluto", "Your turn", "Round 1"} {
		assert.Contains(t, v, want)
	}
}

func TestTurnLineFollowsTurnChanges(t *testing.T) {
	s := newFakeSession("Pippo")
	m := sized(New(context.Background(), s, "rpc", nil))

	next, _ := m.Update(UpdateMsg{})
	m = next.(Model)
	require.Contains(t, m.turnLine, "Waiting")

	s.org.Push(event.NextTurn{Player: "Pluto", Round: 2, FirstTurn: false})
	next, _ = m.Update(UpdateMsg{})
	m = next.(Model)
	require.Equal(t, "Round 2 (second half): Pluto's turn", m.turnLine)

	s.org.Push(event.NewGameEnd(map[string]int{"Pippo": 3, "Pluto": 5}))
	next, _ = m.Update(UpdateMsg{})
	m = next.(Model)
	assert.Equal(t, "Game over: Pluto 5, Pippo 3", m.turnLine)
}

func TestSubmitSendsCommand(t *testing.T) {
	s := newFakeSession("Pippo")
	m := sized(New(context.Background(), s, "socket", nil))
	m.input.SetValue("draft 1")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Empty(t, m.input.Value(), "input cleared")
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"draft 1"}, s.commands())
}

func TestSubmitReportsSendFailure(t *testing.T) {
	s := newFakeSession("Pippo")
	s.err = errors.New("broken pipe")
	m := sized(New(context.Background(), s, "socket", nil))
	m.input.SetValue("pass")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msg, ok := cmd().(NoticeMsg)
	require.True(t, ok, "got %#v", msg)
	assert.True(t, msg.Notice.Error)
	assert.Equal(t, "broken pipe", msg.Notice.Text)
}

func TestNoticesAndDisconnect(t *testing.T) {
	s := newFakeSession("Pippo")
	m := sized(New(context.Background(), s, "socket", nil))

	next, _ := m.Update(NoticeMsg{Notice: client.Notice{Error: true, Text: "not your turn"}})
	m = next.(Model)
	next, _ = m.Update(DisconnectedMsg{Err: errors.New("reset by peer")})
	m = next.(Model)

	assert.False(t, m.statusBar.Connected)
	v := m.View()
	assert.Contains(t, v, "not your turn")
	assert.Contains(t, v, "reset by peer")
	assert.Contains(t, v, "Disconnected")
}

func pushSetup(org *organizer.Organizer) {
	org.Push(event.NewGameSetup(
		[]string{"Pippo", "Pluto"},
		map[string][]game.Card{"Pippo": {{ID: 1, Name: "Shades of Red", Description: "Sum of values on red dice"}}},
		[]game.Card{{ID: 1, Name: "Grozing Pliers", Description: "Increase or decrease the value of a drafted die by 1"}},
		nil,
	))
}

func TestCardsMarkdown(t *testing.T) {
	org := organizer.New()
	org.SetUsername("Pippo")
	require.Empty(t, cardsMarkdown(org), "nothing before setup")

	pushSetup(org)
	md := cardsMarkdown(org)
	for _, want := range []string{"## Tool cards", "- `0` **Grozing Pliers**", "## Private objective", "**Shades of Red**"} {
		assert.Contains(t, md, want)
	}

	org.SetUsername("Pluto")
	assert.NotContains(t, cardsMarkdown(org), "Private objective", "objectives of other players stay hidden")
}

func TestCardsPanel(t *testing.T) {
	s := newFakeSession("Pippo")
	m := sized(New(context.Background(), s, "socket", nil))

	m.input.SetValue("cards")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.False(t, m.showCards)
	require.Contains(t, m.View(), noGame)

	pushSetup(s.org)
	m.input.SetValue("cards")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.showCards)
	assert.Contains(t, m.View(), "Pliers")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	assert.False(t, m.showCards, "esc closes the panel")
	assert.Empty(t, s.commands(), "cards never reach the server")
}

func TestQuitKeys(t *testing.T) {
	m := sized(New(context.Background(), newFakeSession("Pippo"), "socket", nil))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd, "ctrl+c quits")

	m.input.SetValue("quit")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRunText(t *testing.T) {
	s := newFakeSession("Pippo")
	s.org.Push(event.PlayerConnectionStatus{Player: "Pippo", Connected: true})
	s.org.Push(event.NewDraftPoolUpdate([]game.Die{{Color: game.Blue, Value: 4}}))
	s.updates <- struct{}{}
	s.notices <- client.Notice{Text: "welcome"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	in, w := io.Pipe()
	defer w.Close()
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- RunText(ctx, s, in, &out) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "[0] B4") }, wait, tick)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "> welcome") }, wait, tick)

	w.Write([]byte("draft 0\n\nhelp\n"))
	require.Eventually(t, func() bool { return len(s.commands()) == 1 }, wait, tick)
	w.Write([]byte("quit\n"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunText did not return")
	}
	assert.Equal(t, []string{"draft 0"}, s.commands())
	assert.Contains(t, out.String(), "== Waiting for the game to start")
}

func TestRunTextCards(t *testing.T) {
	s := newFakeSession("Pippo")
	var out bytes.Buffer
	require.NoError(t, RunText(context.Background(), s, strings.NewReader("cards\n"), &out))
	assert.Contains(t, out.String(), "! "+noGame)

	pushSetup(s.org)
	out.Reset()
	require.NoError(t, RunText(context.Background(), s, strings.NewReader("cards\n"), &out))
	assert.Contains(t, out.String(), "**Grozing Pliers**")
}

func TestRunTextEndsWithInput(t *testing.T) {
	s := newFakeSession("Pippo")
	var out bytes.Buffer
	assert.NoError(t, RunText(context.Background(), s, strings.NewReader("pass\n"), &out))
}

const wait = 2 * time.Second
const tick = 5 * time.Millisecond

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
