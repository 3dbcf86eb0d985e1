// Package theme provides the Lip Gloss palette and styles of the game
// display. It is a leaf package with no internal imports besides value types.
package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
)

// Die colors.
var (
	ColorRed    = lipgloss.Color("#dc2626")
	ColorYellow = lipgloss.Color("#eab308")
	ColorGreen  = lipgloss.Color("#16a34a")
	ColorBlue   = lipgloss.Color("#2563eb")
	ColorPurple = lipgloss.Color("#9333ea")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorDefault = lipgloss.Color("#9ca3af")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorActive  = lipgloss.Color("#f59e0b")
)

// DieColor returns the Lip Gloss color of a die colour.
func DieColor(c game.Color) lipgloss.Color {
	switch c {
	case game.Red:
		return ColorRed
	case game.Yellow:
		return ColorYellow
	case game.Green:
		return ColorGreen
	case game.Blue:
		return ColorBlue
	case game.Purple:
		return ColorPurple
	default:
		return ColorDefault
	}
}

// Die renders a die as a coloured value badge.
func Die(d game.Die) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		Background(DieColor(d.Color)).
		Padding(0, 1).
		Render(dieFace(d.Value))
}

func dieFace(v int) string {
	faces := []string{"?", "⚀", "⚁", "⚂", "⚃", "⚄", "⚅"}
	if v < 1 || v > 6 {
		return faces[0]
	}
	return faces[v]
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorActive)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)
