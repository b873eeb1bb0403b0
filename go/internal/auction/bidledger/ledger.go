// Package bidledger keeps the in-memory bids placed on the player under the
// auctioneer's focus. Bids are never persisted individually.
package bidledger

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

// Ledger records bids per player, most recent first. It is not safe for
// concurrent use.
type Ledger struct {
	clock clockwork.Clock
	bids  map[uuid.UUID][]models.Bid
}

// New creates an empty ledger. A nil clock uses the real clock.
func New(clock clockwork.Clock) *Ledger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Ledger{
		clock: clock,
		bids:  make(map[uuid.UUID][]models.Bid),
	}
}

// Place records a bid and returns it.
func (l *Ledger) Place(playerID, teamID uuid.UUID, amount decimal.Decimal) models.Bid {
	bid := models.Bid{
		ID:        uuid.New(),
		PlayerID:  playerID,
		TeamID:    teamID,
		Amount:    amount,
		Timestamp: l.clock.Now(),
	}
	l.bids[playerID] = append([]models.Bid{bid}, l.bids[playerID]...)
	return bid
}

// Leading returns the most recent bid for playerID.
func (l *Ledger) Leading(playerID uuid.UUID) (models.Bid, bool) {
	bids := l.bids[playerID]
	if len(bids) == 0 {
		return models.Bid{}, false
	}
	return bids[0], true
}

// UndoLast removes the most recent bid. It returns the removed bid and the new
// leading bid; ok is false when there was nothing to remove and hasLeading is
// false when no bids remain.
func (l *Ledger) UndoLast(playerID uuid.UUID) (removed, leading models.Bid, hasLeading, ok bool) {
	bids := l.bids[playerID]
	if len(bids) == 0 {
		return models.Bid{}, models.Bid{}, false, false
	}
	removed = bids[0]
	rest := bids[1:]
	if len(rest) == 0 {
		delete(l.bids, playerID)
		return removed, models.Bid{}, false, true
	}
	l.bids[playerID] = rest
	return removed, rest[0], true, true
}

// Clear discards every bid for playerID.
func (l *Ledger) Clear(playerID uuid.UUID) {
	delete(l.bids, playerID)
}

// Bids returns a copy of the bids for playerID, most recent first.
func (l *Ledger) Bids(playerID uuid.UUID) []models.Bid {
	bids := l.bids[playerID]
	out := make([]models.Bid, len(bids))
	copy(out, bids)
	return out
}

// Count returns the number of open bids for playerID.
func (l *Ledger) Count(playerID uuid.UUID) int {
	return len(l.bids[playerID])
}
