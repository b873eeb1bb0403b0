package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is a live bid on the player under the auctioneer's focus.
type Bid struct {
	ID        uuid.UUID       `json:"id"`
	PlayerID  uuid.UUID       `json:"player_id"`
	TeamID    uuid.UUID       `json:"team_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
