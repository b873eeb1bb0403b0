package broadcast

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/models"
)

type viewFixture struct {
	auctionID uuid.UUID
	player    models.Player
	team      models.Team
	seq       uint64
	version   uint64
}

func newViewFixture() *viewFixture {
	auctionID := uuid.New()
	return &viewFixture{
		auctionID: auctionID,
		player: models.Player{
			ID:           uuid.New(),
			AuctionID:    auctionID,
			Name:         "R. Sharma",
			BasePrice:    decimal.NewFromInt(500),
			CurrentPrice: decimal.NewFromInt(500),
			Status:       models.PlayerStatusAvailable,
		},
		team: models.Team{
			ID:           uuid.New(),
			AuctionID:    auctionID,
			Name:         "Mumbai",
			BudgetAmount: decimal.NewFromInt(10000),
		},
	}
}

func (f *viewFixture) snapshot() events.Snapshot {
	return events.Snapshot{
		AuctionID: f.auctionID,
		Sequence:  f.seq,
		Mode:      models.BiddingModeLive,
		Players:   []models.Player{f.player},
		Teams:     []models.Team{f.team},
	}
}

func (f *viewFixture) next(t *testing.T, typ events.Type, status models.PlayerStatus, payload interface{}) events.Event {
	t.Helper()
	ev, err := events.New(f.auctionID, typ, time.Now(), payload)
	assert.NoError(t, err)
	f.seq++
	f.version++
	ev.Sequence = f.seq
	ev.PlayerID = f.player.ID
	ev.PlayerStatus = status
	ev.PlayerVersion = f.version
	return ev
}

func TestViewFollowsStream(t *testing.T) {
	f := newViewFixture()
	selected := f.next(t, events.TypePlayerSelected, models.PlayerStatusAvailable, events.PlayerSelectedPayload{
		PlayerID:     f.player.ID,
		CurrentPrice: decimal.NewFromInt(500),
		NextBid:      decimal.NewFromInt(600),
	})
	bid := f.next(t, events.TypeBidPlaced, models.PlayerStatusAvailable, events.BidPlacedPayload{
		BidID:    uuid.New(),
		PlayerID: f.player.ID,
		TeamID:   f.team.ID,
		Amount:   decimal.NewFromInt(600),
		NextBid:  decimal.NewFromInt(700),
	})

	v := NewView()
	v.Offer(selected)
	v.Offer(bid)
	check.False(t, v.Ready())

	// snapshot was taken before any event
	f.player.Version = 0
	snap := events.Snapshot{
		AuctionID: f.auctionID,
		Mode:      models.BiddingModeLive,
		Players:   []models.Player{f.player},
		Teams:     []models.Team{f.team},
	}
	v.Bootstrap(snap)
	assert.True(t, v.Ready())

	state := v.State()
	check.Equal(t, uint64(2), state.Sequence)
	assert.NotNil(t, state.ActivePlayerID)
	check.Equal(t, f.player.ID, *state.ActivePlayerID)
	check.Equal(t, "600", state.CurrentPrice.String())
	assert.NotNil(t, state.LeadingBid)
	check.Equal(t, f.team.ID, state.LeadingBid.TeamID)
	check.Equal(t, 1, len(state.Bids))

	sold := f.next(t, events.TypePlayerSold, models.PlayerStatusSold, events.PlayerSoldPayload{
		PlayerID:         f.player.ID,
		TeamID:           f.team.ID,
		Amount:           decimal.NewFromInt(600),
		TeamPointsUsed:   decimal.NewFromInt(600),
		TeamPlayersCount: 1,
	})
	v.Offer(sold)

	state = v.State()
	check.Nil(t, state.ActivePlayerID)
	check.Equal(t, 0, len(state.Bids))
	check.Equal(t, models.PlayerStatusSold, state.Players[0].Status)
	assert.NotNil(t, state.Players[0].TeamID)
	check.Equal(t, f.team.ID, *state.Players[0].TeamID)
	check.Equal(t, "600", state.Teams[0].PointsUsed.String())
	check.Equal(t, 1, state.Teams[0].PlayersCount)
}

func TestViewDiscardsEventsCoveredBySnapshot(t *testing.T) {
	f := newViewFixture()
	selected := f.next(t, events.TypePlayerSelected, models.PlayerStatusAvailable, events.PlayerSelectedPayload{
		PlayerID:     f.player.ID,
		CurrentPrice: decimal.NewFromInt(500),
	})
	bid := f.next(t, events.TypeBidPlaced, models.PlayerStatusAvailable, events.BidPlacedPayload{
		BidID:    uuid.New(),
		PlayerID: f.player.ID,
		TeamID:   f.team.ID,
		Amount:   decimal.NewFromInt(600),
	})

	v := NewView()
	v.Offer(selected)
	v.Offer(bid)

	// snapshot already includes both events
	f.player.Version = f.version
	f.player.CurrentPrice = decimal.NewFromInt(600)
	snap := f.snapshot()
	active := f.player.ID
	snap.ActivePlayerID = &active
	snap.CurrentPrice = decimal.NewFromInt(600)
	snap.Bids = []models.Bid{{ID: uuid.New(), PlayerID: f.player.ID, TeamID: f.team.ID, Amount: decimal.NewFromInt(600)}}
	v.Bootstrap(snap)

	state := v.State()
	check.Equal(t, 1, len(state.Bids))
	check.Equal(t, "600", state.CurrentPrice.String())
	check.Equal(t, uint64(2), state.Sequence)
}

func TestViewModeChange(t *testing.T) {
	f := newViewFixture()
	v := NewView()
	v.Bootstrap(f.snapshot())

	ev, err := events.New(f.auctionID, events.TypeModeChanged, time.Now(), events.ModeChangedPayload{
		Previous: models.BiddingModeLive,
		Mode:     models.BiddingModeDirect,
	})
	assert.NoError(t, err)
	ev.Sequence = 1
	v.Offer(ev)

	check.Equal(t, models.BiddingModeDirect, v.State().Mode)
}
