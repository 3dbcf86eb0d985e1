package tui

import (
	"strings"
)

const noGame = "no game in progress"

const helpText = "commands: start | choose_pattern <n> | draft <n> | use_tool <n> | pass | cards | quit"

// Command is one parsed input line.
type Command struct {
	Action string
	Args   []string
	Quit   bool
	Help   bool
	Cards  bool
}

// ParseCommand splits a command line into an action and its arguments.
// ok is false for a blank line.
func ParseCommand(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	action := strings.ToLower(fields[0])
	switch action {
	case "quit", "exit":
		return Command{Quit: true}, true
	case "help", "?":
		return Command{Help: true}, true
	case "cards":
		return Command{Cards: true}, true
	}
	return Command{Action: action, Args: fields[1:]}, true
}
