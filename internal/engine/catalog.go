package engine

import (
	"math/rand/v2"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
)

const (
	dicePerColor  = 18
	patternRows   = 4
	patternCols   = 5
	toolsPerGame  = 3
	patternChoice = 4
)

var toolCards = []game.Card{
	{ID: 1, Name: "Grozing Pliers", Description: "Increase or decrease the value of a drafted die by 1"},
	{ID: 2, Name: "Eglomise Brush", Description: "Move a die ignoring colour restrictions"},
	{ID: 3, Name: "Copper Foil Burnisher", Description: "Move a die ignoring value restrictions"},
	{ID: 4, Name: "Lathekin", Description: "Move exactly two dice"},
	{ID: 5, Name: "Lens Cutter", Description: "Swap a drafted die with a die on the round track"},
	{ID: 6, Name: "Flux Brush", Description: "Re-roll a drafted die"},
	{ID: 7, Name: "Glazing Hammer", Description: "Re-roll the draft pool"},
	{ID: 8, Name: "Running Pliers", Description: "Draft a second die this turn"},
	{ID: 9, Name: "Cork-backed Straightedge", Description: "Place a die away from other dice"},
	{ID: 10, Name: "Grinding Stone", Description: "Flip a drafted die to its opposite side"},
	{ID: 11, Name: "Flux Remover", Description: "Return a drafted die to the bag and draw a new one"},
	{ID: 12, Name: "Tap Wheel", Description: "Move up to two dice of the same colour as a round track die"},
}

var privateObjectives = []game.Card{
	{ID: 1, Name: "Shades of Red", Description: "Sum of values on red dice"},
	{ID: 2, Name: "Shades of Yellow", Description: "Sum of values on yellow dice"},
	{ID: 3, Name: "Shades of Green", Description: "Sum of values on green dice"},
	{ID: 4, Name: "Shades of Blue", Description: "Sum of values on blue dice"},
	{ID: 5, Name: "Shades of Purple", Description: "Sum of values on purple dice"},
}

type patternCard struct {
	name       string
	difficulty int
}

var patternCards = []patternCard{
	{"Kaleidoscopic Dream", 4}, {"Virtus", 5}, {"Aurorae Magnificus", 5},
	{"Via Lux", 4}, {"Sun Catcher", 3}, {"Bellesguard", 3},
	{"Firmitas", 5}, {"Symphony of Light", 6}, {"Aurora Sagradis", 4},
	{"Industria", 5}, {"Shadow Thief", 5}, {"Batllo", 5},
	{"Gravitas", 5}, {"Fractal Drops", 3}, {"Lux Astram", 5},
	{"Chromatic Splendor", 4}, {"Firelight", 3}, {"Luz Celestial", 3},
	{"Water of Life", 6}, {"Ripples of Light", 5}, {"Lux Mundi", 6},
	{"Comitas", 5}, {"Sun's Glory", 6}, {"Fulgor del Cielo", 5},
}

// buildPattern lays out a grid for card. Harder cards carry more
// restrictions.
func buildPattern(card patternCard, rng *rand.Rand) game.Pattern {
	grid := make([][]game.Cell, patternRows)
	for i := range grid {
		grid[i] = make([]game.Cell, patternCols)
	}
	cells := rng.Perm(patternRows * patternCols)
	restricted := 4 + 2*card.difficulty
	for _, c := range cells[:restricted] {
		cell := &grid[c/patternCols][c%patternCols]
		if rng.IntN(2) == 0 {
			cell.Color = game.Colors[rng.IntN(len(game.Colors))]
		} else {
			cell.Value = rng.IntN(6) + 1
		}
	}
	return game.Pattern{Name: card.name, Difficulty: card.difficulty, Grid: grid}
}

// newBag returns a shuffled bag of unrolled dice.
func newBag(rng *rand.Rand) []game.Color {
	bag := make([]game.Color, 0, dicePerColor*len(game.Colors))
	for _, c := range game.Colors {
		for range dicePerColor {
			bag = append(bag, c)
		}
	}
	rng.Shuffle(len(bag), func(i, j int) { bag[i], bag[j] = bag[j], bag[i] })
	return bag
}

// deal returns n distinct cards picked at random from deck.
func deal(deck []game.Card, n int, rng *rand.Rand) []game.Card {
	idx := rng.Perm(len(deck))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]game.Card, n)
	for i := range n {
		out[i] = deck[idx[i]]
	}
	return out
}
