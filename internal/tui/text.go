package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/client"
	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/organizer"
)

// RunText drives s from a line-oriented terminal. The board is printed after
// every change and each input line is sent as a command. It returns when in
// is exhausted, a quit command is read or ctx ends.
func RunText(ctx context.Context, s Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
		close(lines)
	}()

	p := &textPrinter{out: out}
	fmt.Fprintln(out, helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.Updates():
			p.board(s.Organizer())
		case n := <-s.Notices():
			p.notice(n)
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			cmd, ok := ParseCommand(line)
			switch {
			case !ok:
			case cmd.Quit:
				return nil
			case cmd.Help:
				fmt.Fprintln(out, helpText)
			case cmd.Cards:
				if md := cardsMarkdown(s.Organizer()); md != "" {
					io.WriteString(out, md)
				} else {
					fmt.Fprintln(out, "! "+noGame)
				}
			default:
				if err := s.Do(cmd.Action, cmd.Args...); err != nil {
					fmt.Fprintf(out, "! %s\n", apperrors.Message(err))
				}
			}
		}
	}
}

type textPrinter struct {
	out     io.Writer
	version uint64
	printed bool
	turn    string
}

func (p *textPrinter) notice(n client.Notice) {
	if n.Error {
		fmt.Fprintf(p.out, "! %s\n", n.Text)
		return
	}
	fmt.Fprintf(p.out, "> %s\n", n.Text)
}

func (p *textPrinter) board(org *organizer.Organizer) {
	v := org.Version()
	if p.printed && v == p.version {
		return
	}
	p.version, p.printed = v, true

	var b strings.Builder
	b.WriteString("-- players\n")
	for _, r := range playerRows(org) {
		mark := " "
		if r.Changed {
			mark = "*"
		}
		state := "offline"
		if r.Connected {
			state = "online"
		}
		fmt.Fprintf(&b, "%s %-20s %-7s tokens %d", mark, r.Name, state, r.Tokens)
		if r.Pattern != "" {
			b.WriteString("  " + r.Pattern)
		}
		b.WriteByte('\n')
	}

	pool := org.DraftPool()
	entries := make([]string, len(pool))
	for i, d := range pool {
		entries[i] = fmt.Sprintf("[%d] %s", i, d)
	}
	fmt.Fprintf(&b, "-- pool: %s\n", strings.Join(entries, " "))

	track := org.RoundTrack()
	rounds := make([]string, len(track))
	for i, r := range track {
		rounds[i] = fmt.Sprintf("%d: %s", i+1, diceText(r))
	}
	if len(rounds) > 0 {
		fmt.Fprintf(&b, "-- track: %s\n", strings.Join(rounds, " | "))
	}
	for _, line := range setupText(org) {
		b.WriteString("-- " + line + "\n")
	}
	io.WriteString(p.out, b.String())

	if t := turnText(org); t != p.turn {
		p.turn = t
		fmt.Fprintf(p.out, "== %s\n", t)
	}
}
