package broadcast

import (
	"sync"

	"github.com/mcdev12/gavel/go/internal/auction/events"
)

// Gate joins a snapshot with a live stream without a race. Subscribe with
// Gate.Offer first, fetch the snapshot, then call Open with its sequence.
// Events offered before Open are held back; afterwards only events newer than
// everything already applied are delivered.
type Gate struct {
	mu      sync.Mutex
	deliver Handler
	open    bool
	floor   uint64
	pending []events.Event
	stale   uint64
}

// NewGate creates a closed gate delivering to deliver.
func NewGate(deliver Handler) *Gate {
	return &Gate{deliver: deliver}
}

// Offer is a Handler. deliver runs with the gate locked and must not call back
// into the gate.
func (g *Gate) Offer(event events.Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		g.pending = append(g.pending, event)
		return
	}
	g.release(event)
}

// Open applies the snapshot floor and flushes buffered events newer than it.
func (g *Gate) Open(snapshotSequence uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return
	}
	g.open = true
	g.floor = snapshotSequence
	pending := g.pending
	g.pending = nil
	for _, event := range pending {
		g.release(event)
	}
}

func (g *Gate) release(event events.Event) {
	if event.Sequence <= g.floor {
		g.stale++
		return
	}
	g.floor = event.Sequence
	g.deliver(event)
}

// Floor returns the sequence of the last delivered event or the snapshot.
func (g *Gate) Floor() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.floor
}

// Stale returns how many events were discarded as already covered.
func (g *Gate) Stale() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stale
}
