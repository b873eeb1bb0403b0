package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

// Snapshot is the full live state of an auction at Sequence. A viewer applies
// it and then only events with a higher sequence.
type Snapshot struct {
	AuctionID      uuid.UUID          `json:"auction_id"`
	Sequence       uint64             `json:"sequence"`
	Mode           models.BiddingMode `json:"mode"`
	Auction        models.Auction     `json:"auction"`
	ActivePlayerID *uuid.UUID         `json:"active_player_id,omitempty"`
	CurrentPrice   decimal.Decimal    `json:"current_price"`
	NextIncrement  decimal.Decimal    `json:"next_increment"`
	NextBid        decimal.Decimal    `json:"next_bid"`
	LeadingBid     *models.Bid        `json:"leading_bid,omitempty"`
	Bids           []models.Bid       `json:"bids"`
	Players        []models.Player    `json:"players"`
	Teams          []models.Team      `json:"teams"`
	TakenAt        time.Time          `json:"taken_at"`
}

// Player returns the player with id from the snapshot.
func (s *Snapshot) Player(id uuid.UUID) (*models.Player, bool) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// Team returns the team with id from the snapshot.
func (s *Snapshot) Team(id uuid.UUID) (*models.Team, bool) {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i], true
		}
	}
	return nil, false
}
