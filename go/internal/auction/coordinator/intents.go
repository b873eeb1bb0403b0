package coordinator

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

// Intent is a typed, already validated request from a caller. Raw client
// payloads are converted by the intent package.
type Intent interface {
	Name() string
	apply(ctx context.Context, c *Coordinator) (outcome, error)
}

// SelectPlayer puts a player under the auctioneer's focus.
type SelectPlayer struct {
	PlayerID uuid.UUID
}

// SelectRandomPlayer selects a random AVAILABLE player.
type SelectRandomPlayer struct{}

// PlaceBid raises the price by the resolved increment. PlayerID is optional;
// when set the bid is refused unless that player is still selected.
type PlaceBid struct {
	TeamID   uuid.UUID
	PlayerID uuid.UUID
}

// JumpBid sets the price directly to Amount.
type JumpBid struct {
	TeamID   uuid.UUID
	PlayerID uuid.UUID
	Amount   decimal.Decimal
}

// UndoLastBid removes the most recent bid on the selected player.
type UndoLastBid struct{}

// MarkSold sells the selected player. TeamID and FinalPrice are only read in
// DIRECT mode; LIVE mode sells to the leading bid.
type MarkSold struct {
	TeamID     uuid.UUID
	FinalPrice decimal.NullDecimal
}

// MarkUnsold closes the selected player without a sale.
type MarkUnsold struct{}

// SetMode switches between LIVE and DIRECT bidding.
type SetMode struct {
	Mode models.BiddingMode
}

// RelistPlayer returns an UNSOLD player to the pool.
type RelistPlayer struct {
	PlayerID uuid.UUID
}

// ReleasePlayer takes a SOLD player off its team's roster and refunds the team.
// Refund defaults to the sale price. TeamID, when set, must match the owner.
type ReleasePlayer struct {
	PlayerID uuid.UUID
	TeamID   uuid.UUID
	Refund   decimal.NullDecimal
}

func (SelectPlayer) Name() string       { return "select_player" }
func (SelectRandomPlayer) Name() string { return "select_random_player" }
func (PlaceBid) Name() string           { return "place_bid" }
func (JumpBid) Name() string            { return "jump_bid" }
func (UndoLastBid) Name() string        { return "undo_last_bid" }
func (MarkSold) Name() string           { return "mark_sold" }
func (MarkUnsold) Name() string         { return "mark_unsold" }
func (SetMode) Name() string            { return "set_mode" }
func (RelistPlayer) Name() string       { return "relist_player" }
func (ReleasePlayer) Name() string      { return "release_player" }

func (i SelectPlayer) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.selectPlayer(i.PlayerID, false)
}

func (SelectRandomPlayer) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.selectRandom()
}

func (i PlaceBid) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.placeBid(i)
}

func (i JumpBid) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.jumpBid(i)
}

func (UndoLastBid) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.undoLastBid()
}

func (i MarkSold) apply(ctx context.Context, c *Coordinator) (outcome, error) {
	return c.markSold(ctx, i)
}

func (MarkUnsold) apply(ctx context.Context, c *Coordinator) (outcome, error) {
	return c.markUnsold(ctx)
}

func (i SetMode) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.setMode(i.Mode)
}

func (i RelistPlayer) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.relistPlayer(i.PlayerID)
}

func (i ReleasePlayer) apply(_ context.Context, c *Coordinator) (outcome, error) {
	return c.releasePlayer(i)
}
