// Package roster tracks the players known to the server in join order. A
// player keeps its slot across disconnects, so a reconnecting player is
// shown in the same position.
package roster

import (
	"sync"
	"time"

	"github.com/michelemarzollo/ing-sw-2018-labate-maffiola-marzollo-sub002/internal/transport"
)

// Player is one roster entry.
type Player struct {
	Name      string
	Slot      int
	Connected bool
	Transport transport.Kind
	Solo      bool
	JoinedAt  time.Time
	LeftAt    time.Time
}

type Roster struct {
	mu       sync.RWMutex
	players  map[string]*Player
	order    []string
	nextSlot int
}

func New() *Roster {
	return &Roster{
		players: make(map[string]*Player),
	}
}

// Connect marks name connected through kind. A new name is assigned the next
// slot; a known name keeps its own. It reports whether the name was new.
func (r *Roster) Connect(name string, kind transport.Kind, solo bool) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok {
		p = &Player{Name: name, Slot: r.nextSlot}
		r.nextSlot++
		r.players[name] = p
		r.order = append(r.order, name)
	}
	p.Connected = true
	p.Transport = kind
	p.Solo = solo
	p.JoinedAt = time.Now()
	p.LeftAt = time.Time{}
	return *p, !ok
}

// Disconnect marks name disconnected. It reports false for an unknown or
// already disconnected name.
func (r *Roster) Disconnect(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[name]
	if !ok || !p.Connected {
		return false
	}
	p.Connected = false
	p.LeftAt = time.Now()
	return true
}

// All returns every player in slot order.
func (r *Roster) All() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Player, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, *r.players[name])
	}
	return result
}

// Reset forgets every disconnected player.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, name := range r.order {
		if r.players[name].Connected {
			kept = append(kept, name)
		} else {
			delete(r.players, name)
		}
	}
	r.order = kept
}
