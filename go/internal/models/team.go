package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Team is a bidding team inside one auction
type Team struct {
	ID           uuid.UUID       `json:"id"`
	AuctionID    uuid.UUID       `json:"auction_id"`
	Name         string          `json:"name"`
	BudgetAmount decimal.Decimal `json:"budget_amount"`
	PointsUsed   decimal.Decimal `json:"points_used"`
	PlayersCount int             `json:"players_count"`
}

// RemainingBudget is BudgetAmount minus PointsUsed.
func (t Team) RemainingBudget() decimal.Decimal {
	return t.BudgetAmount.Sub(t.PointsUsed)
}
