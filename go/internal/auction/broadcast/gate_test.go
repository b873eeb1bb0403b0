package broadcast

import (
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/gavel/go/internal/auction/events"
)

func TestGateBuffersUntilOpen(t *testing.T) {
	auctionID := uuid.New()
	var got []uint64
	g := NewGate(func(e events.Event) { got = append(got, e.Sequence) })

	// events 4..7 arrive while the snapshot (taken at 5) is in flight
	for seq := uint64(4); seq <= 7; seq++ {
		g.Offer(event(auctionID, seq, events.TypeBidPlaced))
	}
	check.Equal(t, 0, len(got))

	g.Open(5)
	check.Equal(t, []uint64{6, 7}, got)
	check.Equal(t, uint64(2), g.Stale())

	g.Offer(event(auctionID, 8, events.TypeBidPlaced))
	check.Equal(t, []uint64{6, 7, 8}, got)
	check.Equal(t, uint64(8), g.Floor())
}

func TestGateDiscardsDuplicates(t *testing.T) {
	auctionID := uuid.New()
	var got []uint64
	g := NewGate(func(e events.Event) { got = append(got, e.Sequence) })
	g.Open(0)

	g.Offer(event(auctionID, 1, events.TypeBidPlaced))
	g.Offer(event(auctionID, 1, events.TypeBidPlaced))
	g.Offer(event(auctionID, 2, events.TypeBidPlaced))

	check.Equal(t, []uint64{1, 2}, got)
	check.Equal(t, uint64(1), g.Stale())
}

func TestGateOpenIsOnce(t *testing.T) {
	var got []uint64
	g := NewGate(func(e events.Event) { got = append(got, e.Sequence) })
	g.Open(3)
	g.Open(0)

	g.Offer(event(uuid.New(), 2, events.TypeBidPlaced))
	check.Equal(t, 0, len(got))
}
