package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlayerStatus is the auction lifecycle state of a player
type PlayerStatus string

const (
	PlayerStatusAvailable PlayerStatus = "AVAILABLE"
	PlayerStatusSold      PlayerStatus = "SOLD"
	PlayerStatusUnsold    PlayerStatus = "UNSOLD"
)

// Player represents a player put up for auction
type Player struct {
	ID           uuid.UUID       `json:"id"`
	AuctionID    uuid.UUID       `json:"auction_id"`
	Name         string          `json:"name"`
	Role         string          `json:"role,omitempty"`
	BasePrice    decimal.Decimal `json:"base_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Status       PlayerStatus    `json:"status"`
	TeamID       *uuid.UUID      `json:"team_id,omitempty"`

	// Version increases on every change to price or status during a live session.
	Version uint64 `json:"version"`
}
