package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

func apply(t *testing.T, e *Engine, player, action string, args ...string) []event.Event {
	t.Helper()
	events, err := e.Apply(player, protocol.ViewMessage{Action: action, Args: args})
	require.NoError(t, err, "%s %s %v", player, action, args)
	return events
}

func refused(t *testing.T, e *Engine, player, action string, args ...string) {
	t.Helper()
	_, err := e.Apply(player, protocol.ViewMessage{Action: action, Args: args})
	require.True(t, apperrors.Is(err, apperrors.ErrCodeRuleViolation), "%s %s %v: expected rule violation, got %v", player, action, args, err)
}

func last[T event.Event](t *testing.T, events []event.Event) T {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if v, ok := events[i].(T); ok {
			return v
		}
	}
	var zero T
	require.Failf(t, "missing event", "no %T in %v", zero, events)
	return zero
}

func kinds(events []event.Event) []event.Kind {
	out := make([]event.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind()
	}
	return out
}

// twoPlayerGame returns a started game for Pippo and Pluto with patterns
// chosen.
func twoPlayerGame(t *testing.T, rounds int) *Engine {
	t.Helper()
	e := New(Options{MinPlayers: 2, MaxPlayers: 2, Rounds: rounds, Seed: 1})
	e.Join("Pippo", false)
	_, b := e.Join("Pluto", false)
	require.NotEmpty(t, b, "game did not start at max players")
	apply(t, e, "Pippo", ActionChoosePattern, "0")
	apply(t, e, "Pluto", ActionChoosePattern, "1")
	return e
}

func TestRoundOrder(t *testing.T) {
	tests := []struct {
		round, n int
		seats    []int
	}{
		{1, 3, []int{0, 1, 2, 2, 1, 0}},
		{2, 3, []int{1, 2, 0, 0, 2, 1}},
		{4, 3, []int{0, 1, 2, 2, 1, 0}},
		{1, 1, []int{0, 0}},
	}
	for _, tt := range tests {
		order := RoundOrder(tt.round, tt.n)
		require.Len(t, order, len(tt.seats), "round %d", tt.round)
		for i, turn := range order {
			assert.Equal(t, tt.seats[i], turn.Seat, "round %d turn %d", tt.round, i)
			assert.Equal(t, i < tt.n, turn.FirstTurn, "round %d turn %d", tt.round, i)
		}
	}
	assert.Nil(t, RoundOrder(1, 0), "empty table has no order")
}

func TestLobbyWaitsForMinPlayers(t *testing.T) {
	e := New(Options{MinPlayers: 2, MaxPlayers: 3, Rounds: 10, Seed: 1})

	_, b := e.Join("Pippo", false)
	require.Nil(t, b, "unexpected start")
	refused(t, e, "Pippo", ActionStart)
	e.Join("Pluto", false)
	refused(t, e, "Paperino", ActionStart)

	events := apply(t, e, "Pluto", ActionStart)
	require.Equal(t, []event.Kind{
		event.KindGameSetup,
		event.KindPlayerStatus, event.KindPlayerStatus,
		event.KindDraftPool, event.KindRoundTrack, event.KindNextTurn,
	}, kinds(events))

	setup := events[0].(event.GameSetup)
	assert.Equal(t, []string{"Pippo", "Pluto"}, setup.Players)
	assert.Len(t, setup.ToolCards, 3)
	for _, name := range []string{"Pippo", "Pluto"} {
		assert.Len(t, setup.PrivateObjectives[name], 1, name)
		assert.Len(t, setup.PatternChoices[name], 4, name)
	}
	assert.Len(t, events[3].(event.DraftPoolUpdate).Dice, 5)
	assert.Equal(t, event.NextTurn{Player: "Pippo", Round: 1, FirstTurn: true}, events[5])
	refused(t, e, "Pippo", ActionStart)
}

func TestSoloStartsImmediately(t *testing.T) {
	e := New(Options{Seed: 1})
	_, b := e.Join("Solo", true)
	require.NotEmpty(t, b, "solo game did not start")

	setup := b[0].(event.GameSetup)
	assert.Len(t, setup.PrivateObjectives["Solo"], 2)
	assert.Len(t, last[event.DraftPoolUpdate](t, b).Dice, 3)
}

func TestSoloJoinSeatsOnlySoloPlayer(t *testing.T) {
	e := New(Options{MinPlayers: 2, MaxPlayers: 4, Seed: 1})
	e.Join("Ghost", false)

	_, b := e.Join("Solo", true)
	require.NotEmpty(t, b, "solo game did not start")
	assert.Equal(t, []string{"Solo"}, b[0].(event.GameSetup).Players)
	assert.Len(t, last[event.DraftPoolUpdate](t, b).Dice, 3)

	active, ok := e.Active()
	require.True(t, ok)
	assert.Equal(t, "Solo", active)
}

func TestTurnFlow(t *testing.T) {
	e := twoPlayerGame(t, 10)

	refused(t, e, "Pluto", ActionDraft, "0")
	refused(t, e, "Pippo", ActionDraft, "9")
	refused(t, e, "Pippo", ActionDraft, "x")
	refused(t, e, "Pippo", ActionDraft)

	events := apply(t, e, "Pippo", ActionDraft, "0")
	assert.Len(t, last[event.DraftPoolUpdate](t, events).Dice, 4)
	st := last[event.PlayerStatus](t, events)
	require.NotNil(t, st.Pattern)
	assert.NotNil(t, st.Pattern.Grid[0][0].Die, "die not placed")
	refused(t, e, "Pippo", ActionDraft, "0")

	turns := []event.NextTurn{
		{Player: "Pluto", Round: 1, FirstTurn: true},
		{Player: "Pluto", Round: 1, FirstTurn: false},
		{Player: "Pippo", Round: 1, FirstTurn: false},
	}
	for _, want := range turns {
		active, _ := e.Active()
		require.Equal(t, want, last[event.NextTurn](t, apply(t, e, active, ActionPass)))
	}

	events = apply(t, e, "Pippo", ActionPass)
	track := last[event.RoundTrackUpdate](t, events)
	require.Len(t, track.Rounds, 1)
	assert.Len(t, track.Rounds[0], 4)
	assert.Len(t, last[event.DraftPoolUpdate](t, events).Dice, 5)
	assert.Equal(t, event.NextTurn{Player: "Pluto", Round: 2, FirstTurn: true}, last[event.NextTurn](t, events))
}

func TestDraftNeedsPattern(t *testing.T) {
	e := New(Options{MinPlayers: 2, MaxPlayers: 2, Seed: 1})
	e.Join("Pippo", false)
	e.Join("Pluto", false)
	refused(t, e, "Pippo", ActionDraft, "0")
	apply(t, e, "Pippo", ActionChoosePattern, "2")
	refused(t, e, "Pippo", ActionChoosePattern, "1")
	apply(t, e, "Pippo", ActionDraft, "0")
}

func TestChoosePatternSetsTokens(t *testing.T) {
	e := New(Options{MinPlayers: 1, MaxPlayers: 1, Seed: 1})
	_, b := e.Join("Solo", false)
	setup := b[0].(event.GameSetup)

	st := last[event.PlayerStatus](t, apply(t, e, "Solo", ActionChoosePattern, "3"))
	want := setup.PatternChoices["Solo"][3]
	assert.Equal(t, want.Name, st.Pattern.Name)
	assert.Equal(t, want.Difficulty, st.Tokens)
}

func TestToolCost(t *testing.T) {
	e := twoPlayerGame(t, 10)
	before := e.seat("Pippo").tokens

	apply(t, e, "Pippo", ActionUseTool, "0")
	require.Equal(t, before-1, e.seat("Pippo").tokens, "first use costs one token")
	refused(t, e, "Pippo", ActionUseTool, "1")

	apply(t, e, "Pippo", ActionPass)
	plutoBefore := e.seat("Pluto").tokens
	apply(t, e, "Pluto", ActionUseTool, "0")
	assert.Equal(t, plutoBefore-2, e.seat("Pluto").tokens, "second use costs two tokens")
}

func TestToolNeedsTokens(t *testing.T) {
	e := twoPlayerGame(t, 10)
	e.seat("Pippo").tokens = 0
	refused(t, e, "Pippo", ActionUseTool, "0")
}

func TestGameEnd(t *testing.T) {
	e := twoPlayerGame(t, 1)
	apply(t, e, "Pippo", ActionDraft, "0")

	var events []event.Event
	for range 4 {
		active, ok := e.Active()
		require.True(t, ok, "game ended early")
		events = apply(t, e, active, ActionPass)
	}
	end := last[event.GameEnd](t, events)
	require.Equal(t, PhaseDone, e.Phase())
	assert.Equal(t, 1+e.seat("Pippo").tokens, end.Scores["Pippo"])
	assert.Equal(t, e.seat("Pluto").tokens, end.Scores["Pluto"])
	refused(t, e, "Pippo", ActionPass)

	// A late joiner sees the final scores.
	catchUp, _ := e.Join("Paperino", false)
	last[event.GameEnd](t, catchUp)

	// start reopens the lobby with the players still connected.
	events = apply(t, e, "Pippo", ActionStart)
	require.Equal(t, PhasePlaying, e.Phase())
	last[event.GameSetup](t, events)
}

func TestLeaveSkipsDisconnectedSeats(t *testing.T) {
	e := twoPlayerGame(t, 10)

	require.Equal(t, "Pluto", last[event.NextTurn](t, e.Leave("Pippo")).Player)

	// Pluto plays both halves of the round, then opens round 2.
	apply(t, e, "Pluto", ActionPass)
	events := apply(t, e, "Pluto", ActionPass)
	require.Equal(t, event.NextTurn{Player: "Pluto", Round: 2, FirstTurn: true}, last[event.NextTurn](t, events))

	catchUp, broadcast := e.Join("Pippo", false)
	assert.Nil(t, broadcast, "rejoin broadcasts nothing")
	assert.Equal(t, 2, last[event.NextTurn](t, catchUp).Round)
	last[event.GameSetup](t, catchUp)
}

func TestLeaveInactiveKeepsTurn(t *testing.T) {
	e := twoPlayerGame(t, 10)
	require.Nil(t, e.Leave("Pluto"))
	active, _ := e.Active()
	assert.Equal(t, "Pippo", active)
}

func TestEmptyTableResets(t *testing.T) {
	e := twoPlayerGame(t, 10)
	e.Leave("Pippo")
	e.Leave("Pluto")
	require.Equal(t, PhaseLobby, e.Phase())
	_, ok := e.Active()
	require.False(t, ok, "no one should be active")

	e.Join("Pippo", false)
	_, b := e.Join("Pluto", false)
	assert.NotEmpty(t, b, "second game did not start")
}

func TestLeaveLobby(t *testing.T) {
	e := New(Options{MinPlayers: 2, MaxPlayers: 2, Seed: 1})
	e.Join("Pippo", false)
	e.Leave("Pippo")
	_, b := e.Join("Pluto", false)
	assert.Nil(t, b, "started without Pippo")
}

func TestUnknownAction(t *testing.T) {
	e := New(Options{Seed: 1})
	_, err := e.Apply("Pippo", protocol.ViewMessage{Action: "fly"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidInput), "got %v", err)
}

func TestBagRunsDry(t *testing.T) {
	e := New(Options{MinPlayers: 4, MaxPlayers: 4, Rounds: 10, Seed: 7})
	for _, n := range []string{"A", "B", "C", "D"} {
		e.Join(n, false)
	}
	total := 0
	for e.Phase() == PhasePlaying {
		total += len(e.pool)
		round := e.round
		for e.Phase() == PhasePlaying && e.round == round {
			active, _ := e.Active()
			apply(t, e, active, ActionPass)
		}
	}
	assert.Equal(t, 90, total, "dice drawn over the game")
	assert.Empty(t, e.bag)
}
