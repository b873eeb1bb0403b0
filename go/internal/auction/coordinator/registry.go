package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/broadcast"
	"github.com/mcdev12/gavel/go/internal/auction/events"
)

// RegistryConfig configures every session the registry starts.
type RegistryConfig struct {
	Coordinator Config
	Session     SessionConfig
	Channel     broadcast.Config
}

// live is one running auction: its actor and its broadcast channel.
type live struct {
	session *Session
	channel *broadcast.Channel
}

// Registry owns the live sessions of this process, one per auction. The
// broadcast channel of an auction is created with its session and closed when
// the session ends.
type Registry struct {
	source SnapshotSource
	config RegistryConfig
	sinks  []broadcast.Sink

	mu       sync.Mutex
	sessions map[uuid.UUID]*live
	starting map[uuid.UUID]chan struct{}
}

// NewRegistry creates an empty registry. sinks receive every event of every
// auction after local fan-out.
func NewRegistry(source SnapshotSource, cfg RegistryConfig, sinks ...broadcast.Sink) *Registry {
	return &Registry{
		source:   source,
		config:   cfg,
		sinks:    sinks,
		sessions: make(map[uuid.UUID]*live),
		starting: make(map[uuid.UUID]chan struct{}),
	}
}

// Start loads the auction and starts its session. Starting a running auction
// returns the existing session.
func (r *Registry) Start(ctx context.Context, auctionID uuid.UUID) (*Session, error) {
	for {
		r.mu.Lock()
		if l, ok := r.sessions[auctionID]; ok {
			r.mu.Unlock()
			return l.session, nil
		}
		wait, loading := r.starting[auctionID]
		if !loading {
			r.starting[auctionID] = make(chan struct{})
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l, err := r.load(ctx, auctionID)
	if err == nil {
		// running before anyone can reach it through the map
		l.session.Start()
	}

	r.mu.Lock()
	close(r.starting[auctionID])
	delete(r.starting, auctionID)
	if err == nil {
		r.sessions[auctionID] = l
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return l.session, nil
}

func (r *Registry) load(ctx context.Context, auctionID uuid.UUID) (*live, error) {
	auction, err := r.source.LoadAuction(ctx, auctionID)
	if err != nil {
		return nil, wrap(ErrSnapshotFailed, fmt.Errorf("load auction %s: %w", auctionID, err))
	}
	if auction == nil {
		return nil, wrap(ErrSnapshotFailed, fmt.Errorf("auction %s not found", auctionID))
	}
	players, err := r.source.ListPlayers(ctx, auctionID)
	if err != nil {
		return nil, wrap(ErrSnapshotFailed, fmt.Errorf("list players: %w", err))
	}
	teams, err := r.source.ListTeams(ctx, auctionID)
	if err != nil {
		return nil, wrap(ErrSnapshotFailed, fmt.Errorf("list teams: %w", err))
	}

	coord, err := New(*auction, players, teams, r.config.Coordinator)
	if err != nil {
		return nil, wrap(ErrSnapshotFailed, err)
	}
	channel := broadcast.NewChannel(auctionID, r.config.Channel, r.sinks...)

	log.Info().
		Str("auction_id", auctionID.String()).
		Int("players", len(players)).
		Int("teams", len(teams)).
		Msg("loaded auction for live session")

	return &live{
		session: NewSession(coord, channel, r.config.Session),
		channel: channel,
	}, nil
}

// Session returns the running session of an auction.
func (r *Registry) Session(auctionID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.sessions[auctionID]
	if !ok {
		return nil, false
	}
	return l.session, true
}

// Channel returns the broadcast channel of a running auction.
func (r *Registry) Channel(auctionID uuid.UUID) (*broadcast.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.sessions[auctionID]
	if !ok {
		return nil, false
	}
	return l.channel, true
}

// Submit forwards intent to the auction's session.
func (r *Registry) Submit(ctx context.Context, auctionID uuid.UUID, intent Intent) (Result, error) {
	s, ok := r.Session(auctionID)
	if !ok {
		return Result{}, reject(ErrNoSession, "no live session for auction %s", auctionID)
	}
	return s.Submit(ctx, intent)
}

// Snapshot returns the live state of a running auction.
func (r *Registry) Snapshot(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error) {
	s, ok := r.Session(auctionID)
	if !ok {
		return events.Snapshot{}, reject(ErrNoSession, "no live session for auction %s", auctionID)
	}
	return s.Snapshot(ctx)
}

// End stops the session and closes its channel, disconnecting every subscriber.
func (r *Registry) End(auctionID uuid.UUID) error {
	r.mu.Lock()
	l, ok := r.sessions[auctionID]
	delete(r.sessions, auctionID)
	r.mu.Unlock()
	if !ok {
		return reject(ErrNoSession, "no live session for auction %s", auctionID)
	}

	l.session.Stop()
	l.channel.Close()
	return nil
}

// Active lists the auctions with a running session.
func (r *Registry) Active() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Close ends every session.
func (r *Registry) Close() {
	for _, id := range r.Active() {
		_ = r.End(id)
	}
}
