// Package intent turns loosely typed client payloads into coordinator intents.
// Nothing unparsed reaches the coordinator.
package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/models"
)

// Raw is an intent as sent by a client. Amount may be a JSON number or a
// numeric string.
type Raw struct {
	RequestID string          `json:"request_id,omitempty"`
	Type      string          `json:"type"`
	PlayerID  string          `json:"player_id,omitempty"`
	TeamID    string          `json:"team_id,omitempty"`
	Amount    json.RawMessage `json:"amount,omitempty"`
	Mode      string          `json:"mode,omitempty"`
}

// Intent type names accepted from clients.
const (
	TypeSelectPlayer       = "select_player"
	TypeSelectRandomPlayer = "select_random_player"
	TypePlaceBid           = "place_bid"
	TypeJumpBid            = "jump_bid"
	TypeUndoLastBid        = "undo_last_bid"
	TypeMarkSold           = "mark_sold"
	TypeMarkUnsold         = "mark_unsold"
	TypeSetMode            = "set_mode"
)

// Parse decodes a client frame and converts it.
func Parse(data []byte) (Raw, coordinator.Intent, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, nil, coordinator.Rejectf(coordinator.ErrUnknownIntent, "malformed intent: %v", err)
	}
	in, err := FromRaw(raw)
	return raw, in, err
}

// FromRaw validates raw and builds the matching intent.
func FromRaw(raw Raw) (coordinator.Intent, error) {
	switch strings.ToLower(strings.TrimSpace(raw.Type)) {
	case TypeSelectPlayer:
		playerID, err := requiredID(raw.PlayerID, "player")
		if err != nil {
			return nil, err
		}
		return coordinator.SelectPlayer{PlayerID: playerID}, nil

	case TypeSelectRandomPlayer:
		return coordinator.SelectRandomPlayer{}, nil

	case TypePlaceBid:
		teamID, err := requiredID(raw.TeamID, "team")
		if err != nil {
			return nil, err
		}
		playerID, err := optionalID(raw.PlayerID, "player")
		if err != nil {
			return nil, err
		}
		return coordinator.PlaceBid{TeamID: teamID, PlayerID: playerID}, nil

	case TypeJumpBid:
		teamID, err := requiredID(raw.TeamID, "team")
		if err != nil {
			return nil, err
		}
		playerID, err := optionalID(raw.PlayerID, "player")
		if err != nil {
			return nil, err
		}
		amount, ok, err := ParseAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, coordinator.Rejectf(coordinator.ErrMalformedAmount, "jump bid requires an amount")
		}
		return coordinator.JumpBid{TeamID: teamID, PlayerID: playerID, Amount: amount}, nil

	case TypeUndoLastBid:
		return coordinator.UndoLastBid{}, nil

	case TypeMarkSold:
		teamID, err := optionalID(raw.TeamID, "team")
		if err != nil {
			return nil, err
		}
		amount, ok, err := ParseAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		sold := coordinator.MarkSold{TeamID: teamID}
		if ok {
			sold.FinalPrice = decimal.NewNullDecimal(amount)
		}
		return sold, nil

	case TypeMarkUnsold:
		return coordinator.MarkUnsold{}, nil

	case TypeSetMode:
		mode := models.BiddingMode(strings.ToUpper(strings.TrimSpace(raw.Mode)))
		if !mode.Valid() {
			return nil, coordinator.Rejectf(coordinator.ErrUnknownMode, "unknown bidding mode %q", raw.Mode)
		}
		return coordinator.SetMode{Mode: mode}, nil

	case "":
		return nil, coordinator.Rejectf(coordinator.ErrUnknownIntent, "intent type is required")
	default:
		return nil, coordinator.Rejectf(coordinator.ErrUnknownIntent, "unknown intent type %q", raw.Type)
	}
}

// ParseAmount reads a JSON number or numeric string. ok is false when the
// field is absent or null. Non numeric, non finite and negative amounts are
// rejected.
func ParseAmount(raw json.RawMessage) (amount decimal.Decimal, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Zero, false, coordinator.Rejectf(coordinator.ErrMalformedAmount, "amount is not a valid string")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return decimal.Zero, false, nil
		}
	}

	amount, err = ParseAmountString(text)
	if err != nil {
		return decimal.Zero, false, err
	}
	return amount, true, nil
}

// Amounts are stored as NUMERIC(14,2).
const (
	AmountScale       = 2
	maxAmountExponent = 12
)

// MaxAmount is the first amount the store cannot hold.
var MaxAmount = decimal.New(1, maxAmountExponent)

// ParseAmountString parses a decimal amount typed by a user.
func ParseAmountString(text string) (decimal.Decimal, error) {
	switch strings.ToLower(strings.TrimLeft(text, "+-")) {
	case "nan", "inf", "infinity":
		return decimal.Zero, coordinator.Rejectf(coordinator.ErrMalformedAmount, "amount %q is not finite", text)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, coordinator.Rejectf(coordinator.ErrMalformedAmount, "amount %q is not a number", text)
	}
	// Exponent bounds first: comparing a huge exponent rescales it.
	if amount.Exponent() < -AmountScale || amount.Exponent() > maxAmountExponent {
		return decimal.Zero, coordinator.Rejectf(coordinator.ErrMalformedAmount, "amount %q is out of range", text)
	}
	if amount.Abs().GreaterThanOrEqual(MaxAmount) {
		return decimal.Zero, coordinator.Rejectf(coordinator.ErrMalformedAmount, "amount %s must be below %s", amount, MaxAmount)
	}
	if amount.IsNegative() {
		return decimal.Zero, coordinator.Rejectf(coordinator.ErrMalformedAmount, "amount %s must not be negative", amount)
	}
	return amount, nil
}

func requiredID(value, what string) (uuid.UUID, error) {
	id, err := optionalID(value, what)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, coordinator.Rejectf(coordinator.ErrMissingSelection, "a %s must be chosen", what)
	}
	return id, nil
}

func optionalID(value, what string) (uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, coordinator.Rejectf(coordinator.ErrMissingSelection, "invalid %s id %q", what, value)
	}
	return id, nil
}

// String renders a raw intent for logs.
func (r Raw) String() string {
	return fmt.Sprintf("%s(player=%s team=%s amount=%s)", r.Type, r.PlayerID, r.TeamID, string(r.Amount))
}
