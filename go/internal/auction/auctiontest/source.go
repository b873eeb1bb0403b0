// Package auctiontest provides an in-memory auction source for tests of the
// transport layers.
package auctiontest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/models"
)

// Source is a coordinator.SnapshotSource and coordinator.OutcomeRecorder
// backed by memory.
type Source struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*models.Auction
	players  map[uuid.UUID][]models.Player
	teams    map[uuid.UUID][]models.Team
	sales    []coordinator.SaleRecord
	unsold   []uuid.UUID
}

var (
	_ coordinator.SnapshotSource  = (*Source)(nil)
	_ coordinator.OutcomeRecorder = (*Source)(nil)
)

func NewSource() *Source {
	return &Source{
		auctions: make(map[uuid.UUID]*models.Auction),
		players:  make(map[uuid.UUID][]models.Player),
		teams:    make(map[uuid.UUID][]models.Team),
	}
}

// Add stores an auction with its players and teams.
func (s *Source) Add(a models.Auction, players []models.Player, teams []models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = &a
	s.players[a.ID] = append([]models.Player(nil), players...)
	s.teams[a.ID] = append([]models.Team(nil), teams...)
}

func (s *Source) LoadAuction(_ context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("auction %s not found", auctionID)
	}
	cp := *a
	return &cp, nil
}

func (s *Source) ListPlayers(_ context.Context, auctionID uuid.UUID) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Player(nil), s.players[auctionID]...), nil
}

func (s *Source) ListTeams(_ context.Context, auctionID uuid.UUID) ([]models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Team(nil), s.teams[auctionID]...), nil
}

func (s *Source) RecordSale(_ context.Context, sale coordinator.SaleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales = append(s.sales, sale)
	return nil
}

func (s *Source) RecordUnsold(_ context.Context, _, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsold = append(s.unsold, playerID)
	return nil
}

// Sales returns the recorded sales in order.
func (s *Source) Sales() []coordinator.SaleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coordinator.SaleRecord(nil), s.sales...)
}

// Auction is a small auction: base increment 100, players at base price 500,
// teams with a budget of 10000 and room for five players.
type Auction struct {
	Auction models.Auction
	Players []models.Player
	Teams   []models.Team
}

// NewAuction builds an Auction with the given number of players and teams.
func NewAuction(players, teams int) Auction {
	id := uuid.New()
	a := Auction{
		Auction: models.Auction{
			ID:               id,
			Name:             "Test Auction",
			BaseBidIncrement: decimal.NewFromInt(100),
			PlayersPerTeam:   5,
			CreatedAt:        time.Date(2025, 4, 12, 19, 0, 0, 0, time.UTC),
		},
	}
	for i := 0; i < players; i++ {
		a.Players = append(a.Players, models.Player{
			ID:           uuid.New(),
			AuctionID:    id,
			Name:         fmt.Sprintf("Player %d", i+1),
			Role:         "Batter",
			BasePrice:    decimal.NewFromInt(500),
			CurrentPrice: decimal.NewFromInt(500),
			Status:       models.PlayerStatusAvailable,
		})
	}
	for i := 0; i < teams; i++ {
		a.Teams = append(a.Teams, models.Team{
			ID:           uuid.New(),
			AuctionID:    id,
			Name:         fmt.Sprintf("Team %d", i+1),
			BudgetAmount: decimal.NewFromInt(10000),
			PointsUsed:   decimal.Zero,
		})
	}
	return a
}

// Registry returns a registry over a fresh Source holding a. Selection is
// deterministic.
func (a Auction) Registry() (*coordinator.Registry, *Source) {
	src := NewSource()
	src.Add(a.Auction, a.Players, a.Teams)
	cfg := coordinator.RegistryConfig{
		Coordinator: coordinator.Config{
			Selector: coordinator.FirstSelector,
			Recorder: src,
		},
		Session: coordinator.DefaultSessionConfig(),
	}
	return coordinator.NewRegistry(src, cfg), src
}
