// Package router dispatches inbound client messages to the rule engine and
// publishes what the engine produces.
package router

import (
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/errors"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/event"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/logging"
	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/protocol"
)

// Engine is the rule engine. Apply validates and executes one command and
// returns the resulting events in order. A refused command returns an error
// and leaves the state untouched.
type Engine interface {
	Apply(player string, cmd protocol.ViewMessage) ([]event.Event, error)
}

// Joiner is implemented by engines that react to logins. catchUp goes to the
// joining player only; broadcast goes to everybody.
type Joiner interface {
	Join(player string, solo bool) (catchUp, broadcast []event.Event)
}

// Leaver is implemented by engines that react to a player disconnecting.
type Leaver interface {
	Leave(player string) []event.Event
}

// Publisher delivers to sessions.
type Publisher interface {
	Broadcast(e event.Event)
	Unicast(player string, e event.Event)
	Send(player string, msg protocol.Message)
}

// Forgetter is implemented by publishers that keep players around after
// they disconnect. Forget runs whenever a new game is dealt.
type Forgetter interface {
	Forget()
}

type Router struct {
	engine Engine
	pub    Publisher
	logger *logrus.Entry

	// serialises engine calls with the publication of their events
	mu sync.Mutex
}

func New(engine Engine, pub Publisher) *Router {
	return &Router{
		engine: engine,
		pub:    pub,
		logger: logging.NewLogger("router"),
	}
}

// Route handles one inbound message of player.
func (r *Router) Route(player string, msg protocol.Message) {
	logger := r.logger.WithFields(logrus.Fields{"player": player, "kind": msg.Kind})

	switch msg.Kind {
	case protocol.KindViewMessage:
		cmd, err := protocol.Decode[protocol.ViewMessage](msg)
		if err != nil {
			r.pub.Send(player, protocol.Error(err))
			return
		}
		r.apply(player, cmd, logger)
	case protocol.KindPing:
		r.pub.Send(player, protocol.MustNew(protocol.KindAck, protocol.Ack{Of: protocol.KindPing, Accepted: true}))
	case protocol.KindAck:
	default:
		logger.Debug("unexpected message")
		r.pub.Send(player, protocol.Error(apperrors.InvalidInput("unexpected "+string(msg.Kind)+" message")))
	}
}

func (r *Router) apply(player string, cmd protocol.ViewMessage, logger *logrus.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, err := r.engine.Apply(player, cmd)
	if err != nil {
		logger.WithError(err).WithField("action", cmd.Action).Debug("command refused")
		r.pub.Send(player, protocol.Error(err))
		return
	}
	r.publish(events)
}

// Joined tells the engine about a new session of player.
func (r *Router) Joined(player string, kind protocol.Kind) {
	j, ok := r.engine.(Joiner)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	catchUp, broadcast := j.Join(player, kind == protocol.KindLoginSP)
	for _, e := range catchUp {
		r.pub.Unicast(player, e)
	}
	r.publish(broadcast)
}

// Left tells the engine that player has no session anymore.
func (r *Router) Left(player string) {
	l, ok := r.engine.(Leaver)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.publish(l.Leave(player))
}

// publish broadcasts events in order. The caller holds mu.
func (r *Router) publish(events []event.Event) {
	dealt := false
	for _, e := range events {
		r.pub.Broadcast(e)
		if _, ok := e.(event.GameSetup); ok {
			dealt = true
		}
	}
	if f, ok := r.pub.(Forgetter); ok && dealt {
		f.Forget()
	}
}
