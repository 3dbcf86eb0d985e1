// Package event defines the update events the server emits to describe
// changes of the authoritative game state. The set of variants is closed:
// every type implementing Event lives in this package.
//
// Events capture values at construction time. The New* constructors copy
// every slice, map and pointer they are given, so later changes to the
// source data are never observable through an event.
package event

import (
	"maps"
	"slices"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
)

// Kind tags an event variant on the wire.
type Kind string

const (
	KindGameSetup        Kind = "game_setup"
	KindPlayerStatus     Kind = "player_status"
	KindConnectionStatus Kind = "connection_status"
	KindDraftPool        Kind = "draft_pool"
	KindRoundTrack       Kind = "round_track"
	KindNextTurn         Kind = "next_turn"
	KindGameEnd          Kind = "game_end"
)

// Event is one immutable update of the authoritative state.
type Event interface {
	Kind() Kind
	isEvent()
}

// GameSetup is emitted once when a game starts.
type GameSetup struct {
	Players           []string                  `json:"players"`
	PrivateObjectives map[string][]game.Card    `json:"privateObjectives"`
	ToolCards         []game.Card               `json:"toolCards"`
	PatternChoices    map[string][]game.Pattern `json:"patternChoices"`
}

// PlayerStatus carries a player's counters and chosen pattern.
type PlayerStatus struct {
	Player  string        `json:"player"`
	Tokens  int           `json:"tokens"`
	Pattern *game.Pattern `json:"pattern,omitempty"`
}

// PlayerConnectionStatus is emitted on every connect/disconnect transition.
type PlayerConnectionStatus struct {
	Player    string `json:"player"`
	Connected bool   `json:"connected"`
}

// DraftPoolUpdate replaces the dice available for drafting.
type DraftPoolUpdate struct {
	Dice []game.Die `json:"dice"`
}

// RoundTrackUpdate replaces the whole round track.
type RoundTrackUpdate struct {
	Rounds [][]game.Die `json:"rounds"`
}

// NextTurn announces whose turn begins. FirstTurn is true for the player's
// first action of the round. Two NextTurn values are equal iff their fields
// are equal.
type NextTurn struct {
	Player    string `json:"player"`
	Round     int    `json:"round"`
	FirstTurn bool   `json:"firstTurn"`
}

// GameEnd carries the final score of every player.
type GameEnd struct {
	Scores map[string]int `json:"scores"`
}

func (GameSetup) Kind() Kind              { return KindGameSetup }
func (PlayerStatus) Kind() Kind           { return KindPlayerStatus }
func (PlayerConnectionStatus) Kind() Kind { return KindConnectionStatus }
func (DraftPoolUpdate) Kind() Kind        { return KindDraftPool }
func (RoundTrackUpdate) Kind() Kind       { return KindRoundTrack }
func (NextTurn) Kind() Kind               { return KindNextTurn }
func (GameEnd) Kind() Kind                { return KindGameEnd }

func (GameSetup) isEvent()              {}
func (PlayerStatus) isEvent()           {}
func (PlayerConnectionStatus) isEvent() {}
func (DraftPoolUpdate) isEvent()        {}
func (RoundTrackUpdate) isEvent()       {}
func (NextTurn) isEvent()               {}
func (GameEnd) isEvent()                {}

// NewGameSetup captures a copy of the setup data.
func NewGameSetup(players []string, objectives map[string][]game.Card, tools []game.Card, patterns map[string][]game.Pattern) GameSetup {
	s := GameSetup{
		Players:           slices.Clone(players),
		PrivateObjectives: make(map[string][]game.Card, len(objectives)),
		ToolCards:         game.CloneCards(tools),
		PatternChoices:    make(map[string][]game.Pattern, len(patterns)),
	}
	if s.Players == nil {
		s.Players = []string{}
	}
	for name, cards := range objectives {
		s.PrivateObjectives[name] = game.CloneCards(cards)
	}
	for name, choices := range patterns {
		cp := make([]game.Pattern, len(choices))
		for i, p := range choices {
			cp[i] = p.Clone()
		}
		s.PatternChoices[name] = cp
	}
	return s
}

// Clone returns a deep copy.
func (s GameSetup) Clone() GameSetup {
	return NewGameSetup(s.Players, s.PrivateObjectives, s.ToolCards, s.PatternChoices)
}

// NewPlayerStatus captures a player's status. pattern may be nil while the
// player has not chosen one.
func NewPlayerStatus(player string, tokens int, pattern *game.Pattern) PlayerStatus {
	st := PlayerStatus{Player: player, Tokens: tokens}
	if pattern != nil {
		p := pattern.Clone()
		st.Pattern = &p
	}
	return st
}

// Clone returns a deep copy.
func (s PlayerStatus) Clone() PlayerStatus {
	return NewPlayerStatus(s.Player, s.Tokens, s.Pattern)
}

// NewDraftPoolUpdate captures a copy of the draft pool.
func NewDraftPoolUpdate(dice []game.Die) DraftPoolUpdate {
	return DraftPoolUpdate{Dice: game.CloneDice(dice)}
}

// NewRoundTrackUpdate captures a copy of the round track.
func NewRoundTrackUpdate(rounds [][]game.Die) RoundTrackUpdate {
	return RoundTrackUpdate{Rounds: game.CloneRounds(rounds)}
}

// Equal reports structural equality.
func (t NextTurn) Equal(other NextTurn) bool {
	return t == other
}

// NewGameEnd captures a copy of the scores.
func NewGameEnd(scores map[string]int) GameEnd {
	out := make(map[string]int, len(scores))
	maps.Copy(out, scores)
	return GameEnd{Scores: out}
}

// Clone returns a deep copy.
func (g GameEnd) Clone() GameEnd {
	return NewGameEnd(g.Scores)
}

// Score is one entry of a ranking.
type Score struct {
	Player string
	Points int
}

// Ranking orders the scores by points, highest first, ties broken by name.
func (g GameEnd) Ranking() []Score {
	out := make([]Score, 0, len(g.Scores))
	for p, pts := range g.Scores {
		out = append(out, Score{Player: p, Points: pts})
	}
	slices.SortFunc(out, func(a, b Score) int {
		if a.Points != b.Points {
			return b.Points - a.Points
		}
		if a.Player < b.Player {
			return -1
		}
		if a.Player > b.Player {
			return 1
		}
		return 0
	})
	return out
}
