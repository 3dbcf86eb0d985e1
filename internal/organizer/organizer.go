// Package organizer keeps the client-side replica of the game state. Events
// received from the server are folded in with Push; the display reads the
// result through the accessors, which always return copies.
package organizer

import (
	"sync"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
)

type Organizer struct {
	mu sync.RWMutex

	username string
	version  uint64

	setup    *event.GameSetup
	scores   *event.GameEnd
	pool     []game.Die
	track    [][]game.Die
	turn     *event.NextTurn
	turnDiff bool

	statuses    []event.PlayerStatus
	connections []event.PlayerConnectionStatus
	changed     int
}

func New() *Organizer {
	return &Organizer{changed: -1}
}

// Push folds e into the state.
func (o *Organizer) Push(e event.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch e := e.(type) {
	case event.GameSetup:
		s := e.Clone()
		o.setup = &s
	case event.GameEnd:
		g := e.Clone()
		o.scores = &g
	case event.DraftPoolUpdate:
		o.pool = game.CloneDice(e.Dice)
	case event.RoundTrackUpdate:
		o.track = game.CloneRounds(e.Rounds)
	case event.NextTurn:
		o.turnDiff = o.turn == nil || !o.turn.Equal(e)
		o.turn = &e
	case event.PlayerStatus:
		o.pushStatus(e.Clone())
	case event.PlayerConnectionStatus:
		o.pushConnection(e)
	}
	o.version++
}

func (o *Organizer) pushStatus(s event.PlayerStatus) {
	for i := range o.statuses {
		if o.statuses[i].Player == s.Player {
			o.statuses[i] = s
			return
		}
	}
	o.statuses = append(o.statuses, s)
}

func (o *Organizer) pushConnection(c event.PlayerConnectionStatus) {
	for i := range o.connections {
		if o.connections[i].Player == c.Player {
			o.connections[i] = c
			o.changed = i
			return
		}
	}
	o.connections = append(o.connections, c)
	o.changed = len(o.connections) - 1
}

func (o *Organizer) GameSetup() (event.GameSetup, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.setup == nil {
		return event.GameSetup{}, false
	}
	return o.setup.Clone(), true
}

func (o *Organizer) Scoreboard() (event.GameEnd, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.scores == nil {
		return event.GameEnd{}, false
	}
	return o.scores.Clone(), true
}

// DraftPool returns the dice available for drafting, empty before the first
// update.
func (o *Organizer) DraftPool() []game.Die {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return game.CloneDice(o.pool)
}

// RoundTrack returns the leftover dice of every finished round.
func (o *Organizer) RoundTrack() [][]game.Die {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return game.CloneRounds(o.track)
}

func (o *Organizer) NextTurn() (event.NextTurn, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.turn == nil {
		return event.NextTurn{}, false
	}
	return *o.turn, true
}

// TurnChanged reports whether the latest NextTurn differed from the one
// before it. It is false until the first NextTurn arrives.
func (o *Organizer) TurnChanged() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.turnDiff
}

// PlayerStatus returns the latest status of player.
func (o *Organizer) PlayerStatus(player string) (event.PlayerStatus, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, s := range o.statuses {
		if s.Player == player {
			return s.Clone(), true
		}
	}
	return event.PlayerStatus{}, false
}

// PlayerStatuses returns every known status in arrival order.
func (o *Organizer) PlayerStatuses() []event.PlayerStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]event.PlayerStatus, len(o.statuses))
	for i, s := range o.statuses {
		out[i] = s.Clone()
	}
	return out
}

// Connections returns one entry per player ever seen, in first-seen order.
func (o *Organizer) Connections() []event.PlayerConnectionStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]event.PlayerConnectionStatus, len(o.connections))
	copy(out, o.connections)
	return out
}

// ChangedConnectionIndex is the position in Connections touched by the
// latest connection event, or -1.
func (o *Organizer) ChangedConnectionIndex() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.changed
}

func (o *Organizer) Username() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.username
}

func (o *Organizer) SetUsername(name string) {
	o.mu.Lock()
	o.username = name
	o.mu.Unlock()
}

// Version counts the pushes so far.
func (o *Organizer) Version() uint64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.version
}
