// Package game holds the value types shared between the rule engine and the
// replication layer. It is a leaf package: the types carry no behaviour
// beyond copying and display helpers.
package game

import (
	"fmt"
	"strings"
)

// Color is the colour of a die or of a colour-restricted pattern cell.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	Purple Color = "purple"
)

// Colors lists every die colour in bag order.
var Colors = []Color{Red, Yellow, Green, Blue, Purple}

// Die is a single die with its rolled face.
type Die struct {
	Color Color `json:"color"`
	Value int   `json:"value"`
}

func (d Die) String() string {
	return fmt.Sprintf("%s%d", strings.ToUpper(string(d.Color[:1])), d.Value)
}

// Card is a private objective or a tool card.
type Card struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Cell is one position of a window pattern. Color and Value are placement
// restrictions (zero means none); Die is the die placed there, if any.
type Cell struct {
	Color Color `json:"color,omitempty"`
	Value int   `json:"value,omitempty"`
	Die   *Die  `json:"die,omitempty"`
}

// Pattern is a window pattern card as seen by clients.
type Pattern struct {
	Name       string   `json:"name"`
	Difficulty int      `json:"difficulty"`
	Grid       [][]Cell `json:"grid,omitempty"`
}

// Clone returns a deep copy of the pattern.
func (p Pattern) Clone() Pattern {
	out := Pattern{Name: p.Name, Difficulty: p.Difficulty}
	if p.Grid == nil {
		return out
	}
	out.Grid = make([][]Cell, len(p.Grid))
	for i, row := range p.Grid {
		out.Grid[i] = make([]Cell, len(row))
		for j, c := range row {
			out.Grid[i][j] = c
			if c.Die != nil {
				d := *c.Die
				out.Grid[i][j].Die = &d
			}
		}
	}
	return out
}

// CloneDice returns a copy of dice. A nil input yields an empty, non-nil slice.
func CloneDice(dice []Die) []Die {
	out := make([]Die, len(dice))
	copy(out, dice)
	return out
}

// CloneRounds returns a deep copy of a round track.
func CloneRounds(rounds [][]Die) [][]Die {
	out := make([][]Die, len(rounds))
	for i, r := range rounds {
		out[i] = CloneDice(r)
	}
	return out
}

// CloneCards returns a copy of cards.
func CloneCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}
