package coordinator

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/models"
)

// SnapshotSource is what a session needs to load an auction when it starts.
type SnapshotSource interface {
	LoadAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error)
	ListTeams(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error)
}

// SaleRecord is the durable outcome of a sale.
type SaleRecord struct {
	AuctionID uuid.UUID
	PlayerID  uuid.UUID
	TeamID    uuid.UUID
	Amount    decimal.Decimal
	Direct    bool
}

// OutcomeRecorder persists sold and unsold outcomes. The durable write is the
// system of record; it happens before the in-memory state changes.
type OutcomeRecorder interface {
	RecordSale(ctx context.Context, sale SaleRecord) error
	RecordUnsold(ctx context.Context, auctionID, playerID uuid.UUID) error
}

// Publisher delivers committed events to viewers.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type nopRecorder struct{}

func (nopRecorder) RecordSale(context.Context, SaleRecord) error             { return nil }
func (nopRecorder) RecordUnsold(context.Context, uuid.UUID, uuid.UUID) error { return nil }
