package tui

import (
	"fmt"
	"strings"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/client"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/organizer"
)

// Session is what the display needs from a client session.
type Session interface {
	Organizer() *organizer.Organizer
	Do(action string, args ...string) error
	Updates() <-chan struct{}
	Notices() <-chan client.Notice
}

type playerRow struct {
	Name      string
	Connected bool
	Changed   bool
	Active    bool
	Tokens    int
	Pattern   string
}

// playerRows joins connection and player statuses, in connection order.
func playerRows(org *organizer.Organizer) []playerRow {
	conns := org.Connections()
	changed := org.ChangedConnectionIndex()
	active := ""
	if nt, ok := org.NextTurn(); ok {
		active = nt.Player
	}

	rows := make([]playerRow, len(conns))
	for i, c := range conns {
		row := playerRow{
			Name:      c.Player,
			Connected: c.Connected,
			Changed:   i == changed,
			Active:    c.Player == active,
		}
		if st, ok := org.PlayerStatus(c.Player); ok {
			row.Tokens = st.Tokens
			if st.Pattern != nil {
				row.Pattern = st.Pattern.Name
			}
		}
		rows[i] = row
	}
	return rows
}

// turnText describes the current turn from the local player's view.
func turnText(org *organizer.Organizer) string {
	if end, ok := org.Scoreboard(); ok {
		return "Game over: " + scoreText(end)
	}
	nt, ok := org.NextTurn()
	if !ok {
		return "Waiting for the game to start"
	}
	half := "second half"
	if nt.FirstTurn {
		half = "first half"
	}
	who := nt.Player + "'s turn"
	if nt.Player == org.Username() {
		who = "Your turn"
	}
	return fmt.Sprintf("Round %d (%s): %s", nt.Round, half, who)
}

func scoreText(end event.GameEnd) string {
	parts := make([]string, 0, len(end.Scores))
	for _, s := range end.Ranking() {
		parts = append(parts, fmt.Sprintf("%s %d", s.Player, s.Points))
	}
	return strings.Join(parts, ", ")
}

func diceText(dice []game.Die) string {
	if len(dice) == 0 {
		return "-"
	}
	parts := make([]string, len(dice))
	for i, d := range dice {
		parts[i] = d.String()
	}
	return strings.Join(parts, " ")
}

// setupText lists what the local player can choose from.
func setupText(org *organizer.Organizer) []string {
	setup, ok := org.GameSetup()
	if !ok {
		return nil
	}
	var lines []string
	tools := make([]string, len(setup.ToolCards))
	for i, c := range setup.ToolCards {
		tools[i] = fmt.Sprintf("[%d] %s", i, c.Name)
	}
	lines = append(lines, "Tools: "+strings.Join(tools, "  "))

	me := org.Username()
	if objs := setup.PrivateObjectives[me]; len(objs) > 0 {
		names := make([]string, len(objs))
		for i, c := range objs {
			names[i] = c.Name
		}
		lines = append(lines, "Objective: "+strings.Join(names, ", "))
	}
	if st, ok := org.PlayerStatus(me); !ok || st.Pattern == nil {
		choices := setup.PatternChoices[me]
		names := make([]string, len(choices))
		for i, p := range choices {
			names[i] = fmt.Sprintf("[%d] %s (%d)", i, p.Name, p.Difficulty)
		}
		if len(names) > 0 {
			lines = append(lines, "Patterns: "+strings.Join(names, "  "))
		}
	}
	return lines
}
