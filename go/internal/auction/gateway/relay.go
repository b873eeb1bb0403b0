package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/broadcast"
	"github.com/mcdev12/gavel/go/internal/auction/events"
)

// SnapshotFetcher reads snapshots from the authoritative auction server.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error)
}

// Relay is the backend of a read-only gateway. It re-publishes mirrored
// events on local channels and keeps a follower View per auction, so viewers
// bootstrap from this process instead of the auction server.
type Relay struct {
	fetcher SnapshotFetcher
	config  broadcast.Config

	mu       sync.Mutex
	auctions map[uuid.UUID]*relayed
	closed   bool
}

type relayed struct {
	// mu orders view updates with channel publishes so a snapshot taken from
	// the view never misses an event a new subscriber did not receive.
	mu      sync.Mutex
	channel *broadcast.Channel
	view    *broadcast.View
}

func NewRelay(fetcher SnapshotFetcher, cfg broadcast.Config) *Relay {
	return &Relay{
		fetcher:  fetcher,
		config:   cfg,
		auctions: make(map[uuid.UUID]*relayed),
	}
}

func (r *Relay) entry(auctionID uuid.UUID) (*relayed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	e, ok := r.auctions[auctionID]
	if !ok {
		e = &relayed{
			channel: broadcast.NewChannel(auctionID, r.config),
			view:    broadcast.NewView(),
		}
		r.auctions[auctionID] = e
		log.Info().Str("auction_id", auctionID.String()).Msg("relaying auction")
	}
	return e, true
}

// Channel implements ChannelSource. Channels are created on first use.
func (r *Relay) Channel(auctionID uuid.UUID) (*broadcast.Channel, bool) {
	e, ok := r.entry(auctionID)
	if !ok {
		return nil, false
	}
	return e.channel, true
}

// Publish applies a mirrored event. Events of auctions nobody watches are
// dropped.
func (r *Relay) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	e, ok := r.auctions[event.AuctionID]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Offer(event)
	return e.channel.Publish(ctx, event)
}

// Snapshot implements StateProvider. The first call per auction bootstraps
// the view from the auction server.
func (r *Relay) Snapshot(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error) {
	e, ok := r.entry(auctionID)
	if !ok {
		return events.Snapshot{}, broadcast.ErrClosed
	}

	e.mu.Lock()
	if e.view.Ready() {
		defer e.mu.Unlock()
		return e.view.State(), nil
	}
	e.mu.Unlock()

	snapshot, err := r.fetcher.Snapshot(ctx, auctionID)
	if err != nil {
		return events.Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.view.Ready() {
		e.view.Bootstrap(snapshot)
		log.Info().
			Str("auction_id", auctionID.String()).
			Uint64("sequence", snapshot.Sequence).
			Msg("relay view bootstrapped")
	}
	return e.view.State(), nil
}

// Active implements StateProvider.
func (r *Relay) Active() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.auctions))
	for id := range r.auctions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Close closes every relayed channel.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, e := range r.auctions {
		e.channel.Close()
		delete(r.auctions, id)
	}
}
