package coordinator

import (
	"github.com/google/uuid"

	"github.com/mcdev12/gavel/go/internal/auction/bidrule"
	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/models"
)

// AuctionID returns the auction this coordinator owns.
func (c *Coordinator) AuctionID() uuid.UUID {
	return c.auction.ID
}

// Mode returns the current bidding mode.
func (c *Coordinator) Mode() models.BiddingMode {
	return c.mode
}

// Sequence returns the sequence of the last committed event.
func (c *Coordinator) Sequence() uint64 {
	return c.sequence
}

// ActivePlayer returns a copy of the selected player.
func (c *Coordinator) ActivePlayer() (models.Player, bool) {
	if !c.hasActive {
		return models.Player{}, false
	}
	return *c.players[c.active], true
}

// Player returns a copy of a player.
func (c *Coordinator) Player(id uuid.UUID) (models.Player, bool) {
	p, ok := c.players[id]
	if !ok {
		return models.Player{}, false
	}
	return *p, true
}

// Team returns a copy of a team.
func (c *Coordinator) Team(id uuid.UUID) (models.Team, bool) {
	t, ok := c.teams[id]
	if !ok {
		return models.Team{}, false
	}
	return t.Team(), true
}

// LeadingBid returns the leading bid on the selected player.
func (c *Coordinator) LeadingBid() (models.Bid, bool) {
	if !c.hasActive {
		return models.Bid{}, false
	}
	return c.bids.Leading(c.active)
}

// Snapshot copies the full live state at the current sequence.
func (c *Coordinator) Snapshot() events.Snapshot {
	snap := events.Snapshot{
		AuctionID: c.auction.ID,
		Sequence:  c.sequence,
		Mode:      c.mode,
		Auction:   c.auction,
		Players:   make([]models.Player, 0, len(c.playerOrder)),
		Teams:     make([]models.Team, 0, len(c.teamOrder)),
		Bids:      []models.Bid{},
		TakenAt:   c.clock.Now(),
	}
	snap.Auction.BidRules = append([]models.BidRule(nil), c.auction.BidRules...)

	for _, id := range c.playerOrder {
		p := *c.players[id]
		if p.TeamID != nil {
			owner := *p.TeamID
			p.TeamID = &owner
		}
		snap.Players = append(snap.Players, p)
	}
	for _, id := range c.teamOrder {
		snap.Teams = append(snap.Teams, c.teams[id].Team())
	}

	if p, ok := c.ActivePlayer(); ok {
		active := p.ID
		base := c.biddingBase(&p)
		increment := bidrule.Increment(c.auction, base)
		snap.ActivePlayerID = &active
		snap.CurrentPrice = p.CurrentPrice
		snap.NextIncrement = increment
		snap.NextBid = base.Add(increment)
		snap.Bids = c.bids.Bids(p.ID)
		if leading, ok := c.bids.Leading(p.ID); ok {
			snap.LeadingBid = &leading
		}
	}
	return snap
}
