package channel

import (
	"context"
	"sync"
	"time"

	"github.com/cursyhq/cursy/internal/bus"
)

// Presence is the user id -> online map. Entries are union-merged as
// status frames and REST seeds arrive; nothing expires them, so the map
// survives reconnects and only an explicit offline frame flips a user
// back. Process-lifetime state, no durability.
type Presence struct {
	mu  sync.RWMutex
	m   map[string]bool
	bus *bus.Bus
}

// NewPresence creates an empty presence map.
func NewPresence(b *bus.Bus) *Presence {
	return &Presence{m: make(map[string]bool), bus: b}
}

// Set records one user's online state.
func (p *Presence) Set(userID string, online bool) {
	if userID == "" {
		return
	}
	p.mu.Lock()
	p.m[userID] = online
	p.mu.Unlock()
	p.notify()
}

// MergeOnline marks every given user id online, leaving other entries alone.
func (p *Presence) MergeOnline(userIDs []string) {
	if len(userIDs) == 0 {
		return
	}
	p.mu.Lock()
	for _, id := range userIDs {
		if id != "" {
			p.m[id] = true
		}
	}
	p.mu.Unlock()
	p.notify()
}

// Snapshot returns a copy of the current map.
func (p *Presence) Snapshot() map[string]bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]bool, len(p.m))
	for k, v := range p.m {
		out[k] = v
	}
	return out
}

// Watch emits the current map immediately, then a fresh snapshot after
// every change. The channel closes when ctx is done.
func (p *Presence) Watch(ctx context.Context) <-chan map[string]bool {
	out := make(chan map[string]bool, 1)
	out <- p.Snapshot()

	events, unsub := p.bus.Subscribe("presence.", 64)
	go func() {
		defer close(out)
		defer unsub()
		for {
			select {
			case <-events:
				select {
				case out <- p.Snapshot():
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (p *Presence) notify() {
	if p.bus != nil {
		p.bus.Publish(bus.Event{Kind: "presence.updated", Timestamp: time.Now()})
	}
}
