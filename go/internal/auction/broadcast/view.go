package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/models"
)

// View is a follower copy of an auction's live state. It is bootstrapped from
// a snapshot and kept current from the event stream; it never guesses ahead of
// the published events.
type View struct {
	mu     sync.RWMutex
	state  events.Snapshot
	ready  bool
	gate   *Gate
	failed uint64
}

// NewView creates an empty view. Feed events with Offer as soon as the
// subscription exists, then call Bootstrap.
func NewView() *View {
	v := &View{}
	v.gate = NewGate(v.apply)
	return v
}

// Offer is a Handler for the auction topic.
func (v *View) Offer(event events.Event) {
	v.gate.Offer(event)
}

// Bootstrap installs the snapshot and releases newer buffered events.
func (v *View) Bootstrap(snapshot events.Snapshot) {
	v.mu.Lock()
	v.state = snapshot
	v.ready = true
	v.mu.Unlock()
	v.gate.Open(snapshot.Sequence)
}

// Ready reports whether a snapshot has been applied.
func (v *View) Ready() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ready
}

// State returns a copy of the current state.
func (v *View) State() events.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s := v.state
	s.Players = append([]models.Player(nil), v.state.Players...)
	s.Teams = append([]models.Team(nil), v.state.Teams...)
	s.Bids = append([]models.Bid(nil), v.state.Bids...)
	return s
}

func (v *View) apply(event events.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	payload, err := events.ParsePayload(event)
	if err != nil {
		v.failed++
		log.Error().Err(err).
			Str("auction_id", event.AuctionID.String()).
			Uint64("sequence", event.Sequence).
			Msg("failed to apply event to view")
		return
	}

	s := &v.state
	if player, ok := s.Player(event.PlayerID); ok && event.PlayerVersion != 0 {
		if event.PlayerVersion <= player.Version {
			s.Sequence = event.Sequence
			return
		}
		player.Version = event.PlayerVersion
		if event.PlayerStatus != "" {
			player.Status = event.PlayerStatus
		}
	}

	switch p := payload.(type) {
	case *events.PlayerSelectedPayload:
		id := p.PlayerID
		s.ActivePlayerID = &id
		s.CurrentPrice = p.CurrentPrice
		s.NextIncrement = p.NextIncrement
		s.NextBid = p.NextBid
		s.LeadingBid = nil
		s.Bids = nil
		v.setPrice(p.PlayerID, p.CurrentPrice)

	case *events.BidPlacedPayload:
		bid := models.Bid{
			ID:        p.BidID,
			PlayerID:  p.PlayerID,
			TeamID:    p.TeamID,
			Amount:    p.Amount,
			Timestamp: event.Timestamp,
		}
		s.Bids = append([]models.Bid{bid}, s.Bids...)
		s.LeadingBid = &bid
		s.CurrentPrice = p.Amount
		s.NextIncrement = p.NextIncrement
		s.NextBid = p.NextBid
		v.setPrice(p.PlayerID, p.Amount)

	case *events.BidUndonePayload:
		if len(s.Bids) > 0 {
			s.Bids = s.Bids[1:]
		}
		s.LeadingBid = p.LeadingBid
		s.CurrentPrice = p.CurrentPrice
		s.NextIncrement = p.NextIncrement
		s.NextBid = p.NextBid
		v.setPrice(p.PlayerID, p.CurrentPrice)

	case *events.PlayerSoldPayload:
		v.clearSelection()
		if player, ok := s.Player(p.PlayerID); ok {
			owner := p.TeamID
			player.TeamID = &owner
			player.CurrentPrice = p.Amount
		}
		v.setTeam(p.TeamID, p.TeamPointsUsed, p.TeamPlayersCount)

	case *events.PlayerUnsoldPayload:
		v.clearSelection()

	case *events.PlayerRelistedPayload:
		if player, ok := s.Player(p.PlayerID); ok {
			player.TeamID = nil
			player.CurrentPrice = p.CurrentPrice
		}

	case *events.PlayerReleasedPayload:
		if player, ok := s.Player(p.PlayerID); ok {
			player.TeamID = nil
			player.CurrentPrice = p.CurrentPrice
		}
		v.setTeam(p.TeamID, p.TeamPointsUsed, p.TeamPlayersCount)

	case *events.ModeChangedPayload:
		s.Mode = p.Mode

	case *events.SelectionClearedPayload:
		v.clearSelection()
	}
	s.Sequence = event.Sequence
}

func (v *View) setPrice(playerID uuid.UUID, price decimal.Decimal) {
	if player, ok := v.state.Player(playerID); ok {
		player.CurrentPrice = price
	}
}

func (v *View) setTeam(teamID uuid.UUID, pointsUsed decimal.Decimal, players int) {
	if team, ok := v.state.Team(teamID); ok {
		team.PointsUsed = pointsUsed
		team.PlayersCount = players
	}
}

func (v *View) clearSelection() {
	v.state.ActivePlayerID = nil
	v.state.CurrentPrice = decimal.Zero
	v.state.NextIncrement = decimal.Zero
	v.state.NextBid = decimal.Zero
	v.state.LeadingBid = nil
	v.state.Bids = nil
}
