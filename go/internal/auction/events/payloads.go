package events

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

// PlayerSelectedPayload is the payload for a PlayerSelected event
type PlayerSelectedPayload struct {
	PlayerID      uuid.UUID       `json:"player_id"`
	PlayerName    string          `json:"player_name"`
	BasePrice     decimal.Decimal `json:"base_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	NextIncrement decimal.Decimal `json:"next_increment"`
	NextBid       decimal.Decimal `json:"next_bid"`
	Random        bool            `json:"random"`
}

// ClearedExhausted is the SelectionCleared reason when no AVAILABLE player is left.
const ClearedExhausted = "exhausted"

// SelectionClearedPayload is the payload for a SelectionCleared event
type SelectionClearedPayload struct {
	PreviousPlayerID *uuid.UUID `json:"previous_player_id,omitempty"`
	Reason           string     `json:"reason"`
}

// BidPlacedPayload is the payload for a BidPlaced event
type BidPlacedPayload struct {
	BidID         uuid.UUID       `json:"bid_id"`
	PlayerID      uuid.UUID       `json:"player_id"`
	TeamID        uuid.UUID       `json:"team_id"`
	TeamName      string          `json:"team_name"`
	Amount        decimal.Decimal `json:"amount"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	Increment     decimal.Decimal `json:"increment"`
	Jump          bool            `json:"jump"`
	NextIncrement decimal.Decimal `json:"next_increment"`
	NextBid       decimal.Decimal `json:"next_bid"`
	BidCount      int             `json:"bid_count"`
}

// BidUndonePayload is the payload for a BidUndone event
type BidUndonePayload struct {
	RemovedBidID  uuid.UUID       `json:"removed_bid_id"`
	PlayerID      uuid.UUID       `json:"player_id"`
	RemovedTeamID uuid.UUID       `json:"removed_team_id"`
	RemovedAmount decimal.Decimal `json:"removed_amount"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	LeadingBid    *models.Bid     `json:"leading_bid,omitempty"`
	NextIncrement decimal.Decimal `json:"next_increment"`
	NextBid       decimal.Decimal `json:"next_bid"`
	BidCount      int             `json:"bid_count"`
}

// PlayerSoldPayload is the payload for a PlayerSold event
type PlayerSoldPayload struct {
	PlayerID            uuid.UUID       `json:"player_id"`
	PlayerName          string          `json:"player_name"`
	TeamID              uuid.UUID       `json:"team_id"`
	TeamName            string          `json:"team_name"`
	Amount              decimal.Decimal `json:"amount"`
	Direct              bool            `json:"direct"`
	TeamPointsUsed      decimal.Decimal `json:"team_points_used"`
	TeamRemainingBudget decimal.Decimal `json:"team_remaining_budget"`
	TeamPlayersCount    int             `json:"team_players_count"`
}

// PlayerUnsoldPayload is the payload for a PlayerUnsold event
type PlayerUnsoldPayload struct {
	PlayerID   uuid.UUID          `json:"player_id"`
	PlayerName string             `json:"player_name"`
	Mode       models.BiddingMode `json:"mode"`
}

// PlayerRelistedPayload is the payload for a PlayerRelisted event
type PlayerRelistedPayload struct {
	PlayerID     uuid.UUID       `json:"player_id"`
	PlayerName   string          `json:"player_name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// PlayerReleasedPayload is the payload for a PlayerReleased event
type PlayerReleasedPayload struct {
	PlayerID            uuid.UUID       `json:"player_id"`
	PlayerName          string          `json:"player_name"`
	TeamID              uuid.UUID       `json:"team_id"`
	TeamName            string          `json:"team_name"`
	Refund              decimal.Decimal `json:"refund"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	TeamPointsUsed      decimal.Decimal `json:"team_points_used"`
	TeamRemainingBudget decimal.Decimal `json:"team_remaining_budget"`
	TeamPlayersCount    int             `json:"team_players_count"`
}

// ModeChangedPayload is the payload for a ModeChanged event
type ModeChangedPayload struct {
	Previous models.BiddingMode `json:"previous"`
	Mode     models.BiddingMode `json:"mode"`
}
