// Package events holds the wire types shared by the coordinator, the broadcast
// channel and the gateways. It imports nothing from those packages.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

// Type names a committed state change.
type Type string

const (
	TypePlayerSelected   Type = "PlayerSelected"
	TypeSelectionCleared Type = "SelectionCleared"
	TypeBidPlaced        Type = "BidPlaced"
	TypeBidUndone        Type = "BidUndone"
	TypePlayerSold       Type = "PlayerSold"
	TypePlayerUnsold     Type = "PlayerUnsold"
	TypePlayerRelisted   Type = "PlayerRelisted"
	TypePlayerReleased   Type = "PlayerReleased"
	TypeModeChanged      Type = "ModeChanged"
)

// StatusChange reports whether events of this type change a player's status.
// Those events are also published on the player's own topic.
func (t Type) StatusChange() bool {
	switch t {
	case TypePlayerSold, TypePlayerUnsold, TypePlayerRelisted, TypePlayerReleased:
		return true
	}
	return false
}

// Event is the envelope for every committed change in one auction.
//
// Sequence increases by one for every event of the auction and is the order
// every subscriber observes. PlayerVersion is the player's version after the
// change and lets a viewer discard events older than its snapshot.
type Event struct {
	ID            uuid.UUID           `json:"id"`
	AuctionID     uuid.UUID           `json:"auction_id"`
	Type          Type                `json:"type"`
	Sequence      uint64              `json:"sequence"`
	PlayerID      uuid.UUID           `json:"player_id"`
	TeamID        *uuid.UUID          `json:"team_id,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	PlayerStatus  models.PlayerStatus `json:"player_status,omitempty"`
	PlayerVersion uint64              `json:"player_version"`
	Timestamp     time.Time           `json:"timestamp"`
	Data          json.RawMessage     `json:"data"`
}

// New builds an event with a JSON encoded payload. Sequence is assigned by the
// caller.
func New(auctionID uuid.UUID, typ Type, at time.Time, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Type:      typ,
		Timestamp: at,
		Data:      data,
	}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ParsePayload decodes the payload into the struct matching the event type.
// Unknown types return nil without error.
func ParsePayload(e Event) (interface{}, error) {
	var payload interface{}
	switch e.Type {
	case TypePlayerSelected:
		payload = &PlayerSelectedPayload{}
	case TypeSelectionCleared:
		payload = &SelectionClearedPayload{}
	case TypeBidPlaced:
		payload = &BidPlacedPayload{}
	case TypeBidUndone:
		payload = &BidUndonePayload{}
	case TypePlayerSold:
		payload = &PlayerSoldPayload{}
	case TypePlayerUnsold:
		payload = &PlayerUnsoldPayload{}
	case TypePlayerRelisted:
		payload = &PlayerRelistedPayload{}
	case TypePlayerReleased:
		payload = &PlayerReleasedPayload{}
	case TypeModeChanged:
		payload = &ModeChangedPayload{}
	default:
		return nil, nil
	}
	if err := e.Decode(payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// AuctionTopic carries every event of an auction.
func AuctionTopic(auctionID uuid.UUID) string {
	return "auction." + auctionID.String()
}

// PlayerTopic carries status changes of one player.
func PlayerTopic(auctionID, playerID uuid.UUID) string {
	return AuctionTopic(auctionID) + ".player." + playerID.String()
}
