package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BiddingMode selects which sale path the auctioneer is driving.
type BiddingMode string

const (
	BiddingModeLive   BiddingMode = "LIVE"
	BiddingModeDirect BiddingMode = "DIRECT"
)

// Valid reports whether m is a known mode.
func (m BiddingMode) Valid() bool {
	return m == BiddingModeLive || m == BiddingModeDirect
}

// BidRule raises the bid increment once the price reaches ThresholdAmount.
type BidRule struct {
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`
	IncrementAmount decimal.Decimal `json:"increment_amount"`
}

// Auction holds the bidding configuration for one auction.
type Auction struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	MinimumBid       decimal.Decimal `json:"minimum_bid"`
	BaseBidIncrement decimal.Decimal `json:"base_bid_increment"`
	PlayersPerTeam   int             `json:"players_per_team"`
	BidRules         []BidRule       `json:"bid_rules"`
	CreatedAt        time.Time       `json:"created_at"`
}
