// Package engine is a reference rule engine for the dice-drafting game. It
// enforces turn order and basic bookkeeping only; placement legality and real
// scoring are not modelled.
//
// An Engine is not safe for concurrent use. The router serialises calls.
package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/game"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

const (
	ActionStart         = "start"
	ActionChoosePattern = "choose_pattern"
	ActionDraft         = "draft"
	ActionUseTool       = "use_tool"
	ActionPass          = "pass"
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseDone    Phase = "done"
)

type Options struct {
	MinPlayers int
	MaxPlayers int
	Rounds     int
	// Seed drives every random draw. Zero picks a seed from the clock.
	Seed int64
}

func (o Options) withDefaults() Options {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = 4
	}
	if o.MinPlayers <= 0 || o.MinPlayers > o.MaxPlayers {
		o.MinPlayers = min(2, o.MaxPlayers)
	}
	if o.Rounds <= 0 {
		o.Rounds = 10
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	return o
}

type seat struct {
	name       string
	connected  bool
	tokens     int
	pattern    *game.Pattern
	choices    []game.Pattern
	objectives []game.Card
	drafted    int
}

func (s *seat) status() event.PlayerStatus {
	return event.NewPlayerStatus(s.name, s.tokens, s.pattern)
}

type Engine struct {
	opts   Options
	rng    *rand.Rand
	logger *logrus.Entry

	phase Phase
	lobby []string
	seats []*seat

	tools    []game.Card
	toolUsed map[int]bool
	setup    event.GameSetup

	bag   []game.Color
	pool  []game.Die
	track [][]game.Die

	round    int
	order    []Turn
	cursor   int
	hasDraft bool
	hasTool  bool
	scores   event.GameEnd
}

func New(opts Options) *Engine {
	opts = opts.withDefaults()
	seed := uint64(opts.Seed)
	return &Engine{
		opts:   opts,
		rng:    rand.New(rand.NewPCG(seed, seed^0x5ca1ab1e)),
		logger: logging.NewLogger("engine"),
		phase:  PhaseLobby,
	}
}

func (e *Engine) Phase() Phase { return e.phase }

// Active returns the player whose turn it is.
func (e *Engine) Active() (string, bool) {
	if e.phase != PhasePlaying {
		return "", false
	}
	return e.seats[e.order[e.cursor].Seat].name, true
}

// Join seats player in the lobby, or reconnects a seated player. A solo
// player is dealt a game alone. Anyone joining a game in progress gets its
// current state.
func (e *Engine) Join(player string, solo bool) (catchUp, broadcast []event.Event) {
	switch e.phase {
	case PhaseLobby:
		if solo {
			e.lobby = []string{player}
			return nil, e.start()
		}
		if !slices.Contains(e.lobby, player) {
			e.lobby = append(e.lobby, player)
		}
		if len(e.lobby) >= e.opts.MaxPlayers {
			return nil, e.start()
		}
		return nil, nil
	default:
		if s := e.seat(player); s != nil {
			s.connected = true
		}
		return e.snapshot(), nil
	}
}

// Leave marks player as gone. The turn moves on when the active player
// leaves; an empty table resets the game.
func (e *Engine) Leave(player string) []event.Event {
	if e.phase == PhaseLobby {
		e.lobby = slices.DeleteFunc(e.lobby, func(n string) bool { return n == player })
		return nil
	}
	s := e.seat(player)
	if s == nil {
		return nil
	}
	s.connected = false
	if !slices.ContainsFunc(e.seats, func(s *seat) bool { return s.connected }) {
		e.logger.Info("table empty, resetting")
		e.reset()
		return nil
	}
	if active, ok := e.Active(); ok && active == player {
		return e.advance()
	}
	return nil
}

// Apply executes one command of player.
func (e *Engine) Apply(player string, cmd protocol.ViewMessage) ([]event.Event, error) {
	switch cmd.Action {
	case ActionStart:
		return e.startCommand(player)
	case ActionChoosePattern:
		return e.choosePattern(player, cmd.Args)
	case ActionDraft:
		return e.draft(player, cmd.Args)
	case ActionUseTool:
		return e.useTool(player, cmd.Args)
	case ActionPass:
		if err := e.checkTurn(player); err != nil {
			return nil, err
		}
		return e.advance(), nil
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown action %q", cmd.Action))
	}
}

func (e *Engine) startCommand(player string) ([]event.Event, error) {
	if e.phase == PhaseDone {
		e.reopen()
	}
	if e.phase != PhaseLobby {
		return nil, apperrors.RuleViolation("a game is already running")
	}
	if !slices.Contains(e.lobby, player) {
		return nil, apperrors.RuleViolation("not in the lobby")
	}
	if len(e.lobby) < e.opts.MinPlayers {
		return nil, apperrors.RuleViolation(fmt.Sprintf("need at least %d players", e.opts.MinPlayers))
	}
	return e.start(), nil
}

func (e *Engine) choosePattern(player string, args []string) ([]event.Event, error) {
	if e.phase != PhasePlaying {
		return nil, apperrors.RuleViolation("no game running")
	}
	s := e.seat(player)
	if s == nil {
		return nil, apperrors.RuleViolation("not seated")
	}
	if s.pattern != nil {
		return nil, apperrors.RuleViolation("pattern already chosen")
	}
	i, err := index(args, len(s.choices))
	if err != nil {
		return nil, err
	}
	p := s.choices[i].Clone()
	s.pattern = &p
	s.tokens = p.Difficulty
	return []event.Event{s.status()}, nil
}

func (e *Engine) draft(player string, args []string) ([]event.Event, error) {
	if err := e.checkTurn(player); err != nil {
		return nil, err
	}
	s := e.seat(player)
	if s.pattern == nil {
		return nil, apperrors.RuleViolation("choose a pattern first")
	}
	if e.hasDraft {
		return nil, apperrors.RuleViolation("already drafted this turn")
	}
	i, err := index(args, len(e.pool))
	if err != nil {
		return nil, err
	}
	die := e.pool[i]
	e.pool = slices.Delete(e.pool, i, i+1)
	place(s.pattern, die)
	s.drafted++
	e.hasDraft = true
	return []event.Event{event.NewDraftPoolUpdate(e.pool), s.status()}, nil
}

func (e *Engine) useTool(player string, args []string) ([]event.Event, error) {
	if err := e.checkTurn(player); err != nil {
		return nil, err
	}
	s := e.seat(player)
	if e.hasTool {
		return nil, apperrors.RuleViolation("already used a tool this turn")
	}
	i, err := index(args, len(e.tools))
	if err != nil {
		return nil, err
	}
	cost := 1
	if e.toolUsed[e.tools[i].ID] {
		cost = 2
	}
	if s.tokens < cost {
		return nil, apperrors.RuleViolation(fmt.Sprintf("%s costs %d tokens", e.tools[i].Name, cost))
	}
	s.tokens -= cost
	e.toolUsed[e.tools[i].ID] = true
	e.hasTool = true
	return []event.Event{s.status()}, nil
}

func (e *Engine) checkTurn(player string) error {
	active, ok := e.Active()
	if !ok {
		return apperrors.RuleViolation("no game running")
	}
	if active != player {
		return apperrors.RuleViolation("not your turn")
	}
	return nil
}

// start seats the lobby and deals the game.
func (e *Engine) start() []event.Event {
	n := len(e.lobby)
	objectives := 1
	if n == 1 {
		objectives = 2
	}

	e.seats = make([]*seat, 0, n)
	deck := e.rng.Perm(len(patternCards))
	privates := deal(privateObjectives, n*objectives, e.rng)
	for i, name := range e.lobby {
		s := &seat{name: name, connected: true}
		for j := range patternChoice {
			s.choices = append(s.choices, buildPattern(patternCards[deck[i*patternChoice+j]], e.rng))
		}
		s.objectives = privates[i*objectives : (i+1)*objectives]
		e.seats = append(e.seats, s)
	}
	e.lobby = nil

	e.tools = deal(toolCards, toolsPerGame, e.rng)
	e.toolUsed = make(map[int]bool)
	e.bag = newBag(e.rng)
	e.track = nil
	e.round = 1
	e.draw()
	e.order = RoundOrder(e.round, n)
	e.cursor = 0
	e.hasDraft, e.hasTool = false, false
	e.phase = PhasePlaying

	names := make([]string, n)
	objs := make(map[string][]game.Card, n)
	choices := make(map[string][]game.Pattern, n)
	for i, s := range e.seats {
		names[i] = s.name
		objs[s.name] = s.objectives
		choices[s.name] = s.choices
	}
	e.setup = event.NewGameSetup(names, objs, e.tools, choices)
	e.logger.WithField("players", names).Info("game started")

	events := []event.Event{e.setup}
	for _, s := range e.seats {
		events = append(events, s.status())
	}
	events = append(events,
		event.NewDraftPoolUpdate(e.pool),
		event.NewRoundTrackUpdate(e.track),
	)
	return append(events, e.nextTurn())
}

// advance ends the current turn and moves to the next connected seat,
// closing rounds and the game as needed.
func (e *Engine) advance() []event.Event {
	var events []event.Event
	e.hasDraft, e.hasTool = false, false
	for {
		e.cursor++
		if e.cursor == len(e.order) {
			e.track = append(e.track, e.pool)
			e.pool = nil
			if e.round == e.opts.Rounds {
				return append(events, event.NewRoundTrackUpdate(e.track), e.finish())
			}
			e.round++
			e.draw()
			e.order = RoundOrder(e.round, len(e.seats))
			e.cursor = 0
			events = append(events, event.NewRoundTrackUpdate(e.track), event.NewDraftPoolUpdate(e.pool))
		}
		if e.seats[e.order[e.cursor].Seat].connected {
			return append(events, e.nextTurn())
		}
	}
}

func (e *Engine) nextTurn() event.NextTurn {
	t := e.order[e.cursor]
	return event.NextTurn{Player: e.seats[t.Seat].name, Round: e.round, FirstTurn: t.FirstTurn}
}

func (e *Engine) finish() event.GameEnd {
	scores := make(map[string]int, len(e.seats))
	for _, s := range e.seats {
		scores[s.name] = s.drafted + s.tokens
	}
	e.scores = event.NewGameEnd(scores)
	e.phase = PhaseDone
	e.logger.WithField("scores", scores).Info("game over")
	return e.scores
}

// draw fills the pool with 2n+1 dice, or what is left in the bag.
func (e *Engine) draw() {
	n := min(2*len(e.seats)+1, len(e.bag))
	e.pool = make([]game.Die, n)
	for i, c := range e.bag[:n] {
		e.pool[i] = game.Die{Color: c, Value: e.rng.IntN(6) + 1}
	}
	e.bag = e.bag[n:]
}

func (e *Engine) snapshot() []event.Event {
	events := []event.Event{e.setup.Clone()}
	for _, s := range e.seats {
		events = append(events, s.status())
	}
	events = append(events, event.NewDraftPoolUpdate(e.pool), event.NewRoundTrackUpdate(e.track))
	if e.phase == PhaseDone {
		return append(events, e.scores.Clone())
	}
	return append(events, e.nextTurn())
}

// reopen moves the connected players of a finished game back to the lobby.
func (e *Engine) reopen() {
	var lobby []string
	for _, s := range e.seats {
		if s.connected {
			lobby = append(lobby, s.name)
		}
	}
	e.reset()
	e.lobby = lobby
}

func (e *Engine) reset() {
	*e = Engine{opts: e.opts, rng: e.rng, logger: e.logger, phase: PhaseLobby}
}

func (e *Engine) seat(name string) *seat {
	for _, s := range e.seats {
		if s.name == name {
			return s
		}
	}
	return nil
}

// place puts die on the first free cell of p.
func place(p *game.Pattern, die game.Die) {
	for i := range p.Grid {
		for j := range p.Grid[i] {
			if p.Grid[i][j].Die == nil {
				d := die
				p.Grid[i][j].Die = &d
				return
			}
		}
	}
}

func index(args []string, n int) (int, error) {
	if len(args) != 1 {
		return 0, apperrors.RuleViolation("expected one index argument")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, apperrors.RuleViolation(fmt.Sprintf("bad index %q", args[0]))
	}
	if i < 0 || i >= n {
		return 0, apperrors.RuleViolation(fmt.Sprintf("index %d out of range", i))
	}
	return i, nil
}
