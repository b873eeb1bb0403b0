package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fakeRecorder struct {
	mu      sync.Mutex
	sales   []SaleRecord
	unsold  []uuid.UUID
	failing error
}

func (r *fakeRecorder) RecordSale(_ context.Context, sale SaleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	r.sales = append(r.sales, sale)
	return nil
}

func (r *fakeRecorder) RecordUnsold(_ context.Context, _, playerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing != nil {
		return r.failing
	}
	r.unsold = append(r.unsold, playerID)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	events  []events.Event
	failing error
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing != nil {
		return p.failing
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type fakeSource struct {
	auction *models.Auction
	players []models.Player
	teams   []models.Team
	err     error
}

func (s *fakeSource) LoadAuction(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.auction == nil || s.auction.ID != id {
		return nil, errors.New("auction not found")
	}
	a := *s.auction
	return &a, nil
}

func (s *fakeSource) ListPlayers(context.Context, uuid.UUID) ([]models.Player, error) {
	return append([]models.Player(nil), s.players...), nil
}

func (s *fakeSource) ListTeams(context.Context, uuid.UUID) ([]models.Team, error) {
	return append([]models.Team(nil), s.teams...), nil
}

// fixture is an auction with three teams and four players.
type fixture struct {
	auction  models.Auction
	players  []models.Player
	teams    []models.Team
	clock    *clockwork.FakeClock
	recorder *fakeRecorder
}

func newFixture() *fixture {
	auctionID := uuid.New()
	f := &fixture{
		auction: models.Auction{
			ID:               auctionID,
			Name:             "Premier League Auction",
			BaseBidIncrement: d(100),
			PlayersPerTeam:   5,
			BidRules: []models.BidRule{
				{ThresholdAmount: d(1000), IncrementAmount: d(200)},
				{ThresholdAmount: d(5000), IncrementAmount: d(500)},
			},
		},
		clock:    clockwork.NewFakeClockAt(time.Date(2025, 4, 12, 19, 30, 0, 0, time.UTC)),
		recorder: &fakeRecorder{},
	}
	for _, name := range []string{"Gill", "Pant", "Bumrah", "Jadeja"} {
		f.players = append(f.players, models.Player{
			ID:           uuid.New(),
			AuctionID:    auctionID,
			Name:         name,
			BasePrice:    d(500),
			CurrentPrice: d(500),
			Status:       models.PlayerStatusAvailable,
		})
	}
	for _, name := range []string{"Titans", "Kings", "Royals"} {
		f.teams = append(f.teams, models.Team{
			ID:           uuid.New(),
			AuctionID:    auctionID,
			Name:         name,
			BudgetAmount: d(10000),
			PointsUsed:   decimal.Zero,
		})
	}
	return f
}

func (f *fixture) config() Config {
	return Config{
		Clock:    f.clock,
		Selector: FirstSelector,
		Recorder: f.recorder,
	}
}

func (f *fixture) coordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := New(f.auction, f.players, f.teams, f.config())
	assert.NoError(t, err)
	return c
}

func (f *fixture) player(i int) uuid.UUID { return f.players[i].ID }
func (f *fixture) team(i int) uuid.UUID   { return f.teams[i].ID }

func apply(t *testing.T, c *Coordinator, intent Intent) []events.Event {
	t.Helper()
	evs, err := c.Apply(context.Background(), intent)
	assert.NoError(t, err)
	return evs
}

func price(t *testing.T, c *Coordinator, id uuid.UUID) string {
	t.Helper()
	p, ok := c.Player(id)
	assert.True(t, ok)
	return p.CurrentPrice.String()
}
