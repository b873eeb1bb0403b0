// Package store is the Postgres collaborator of the live bidding engine: it
// loads an auction when a session starts, persists sale outcomes and follows
// roster changes made by the admin service.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/models"
	"github.com/mcdev12/gavel/go/internal/sqlutil"
)

// Schema is the DDL for the tables the engine reads and writes.
//
//go:embed schema.sql
var Schema string

var (
	// ErrNotFound is returned when the auction does not exist.
	ErrNotFound = errors.New("auction not found")
	// ErrConflict is returned when a durable write no longer matches the stored state.
	ErrConflict = errors.New("stored state changed")
)

// Repository implements coordinator.SnapshotSource and coordinator.OutcomeRecorder.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ coordinator.SnapshotSource  = (*Repository)(nil)
	_ coordinator.OutcomeRecorder = (*Repository)(nil)
)

const loadAuction = `
SELECT id, name, minimum_bid, base_bid_increment, players_per_team, bid_rules, created_at
FROM auctions
WHERE id = $1`

func (r *Repository) LoadAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	var (
		a     models.Auction
		rules pqtype.NullRawMessage
	)
	err := r.db.QueryRowContext(ctx, loadAuction, auctionID).Scan(
		&a.ID, &a.Name, &a.MinimumBid, &a.BaseBidIncrement, &a.PlayersPerTeam, &rules, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}

	a.BidRules, err = DecodeBidRules(rules)
	if err != nil {
		return nil, fmt.Errorf("auction %s: %w", auctionID, err)
	}
	return &a, nil
}

// DecodeBidRules reads the bid_rules JSONB column. A NULL column means no rules.
func DecodeBidRules(raw pqtype.NullRawMessage) ([]models.BidRule, error) {
	if !raw.Valid || len(raw.RawMessage) == 0 {
		return nil, nil
	}
	var rules []models.BidRule
	if err := json.Unmarshal(raw.RawMessage, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode bid rules: %w", err)
	}
	return rules, nil
}

// EncodeBidRules is the inverse of DecodeBidRules.
func EncodeBidRules(rules []models.BidRule) (pqtype.NullRawMessage, error) {
	if len(rules) == 0 {
		return pqtype.NullRawMessage{}, nil
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return pqtype.NullRawMessage{}, fmt.Errorf("failed to encode bid rules: %w", err)
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

const listPlayers = `
SELECT id, auction_id, name, role, base_price, current_price, status, team_id
FROM auction_players
WHERE auction_id = $1
ORDER BY name, id`

func (r *Repository) ListPlayers(ctx context.Context, auctionID uuid.UUID) ([]models.Player, error) {
	rows, err := r.db.QueryContext(ctx, listPlayers, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var (
			p      models.Player
			status string
			teamID uuid.NullUUID
		)
		if err := rows.Scan(&p.ID, &p.AuctionID, &p.Name, &p.Role, &p.BasePrice, &p.CurrentPrice, &status, &teamID); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		p.Status = models.PlayerStatus(status)
		p.TeamID = sqlutil.FromNullUUID(teamID)
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}

const listTeams = `
SELECT id, auction_id, name, budget_amount, points_used, players_count
FROM auction_teams
WHERE auction_id = $1
ORDER BY name, id`

func (r *Repository) ListTeams(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx, listTeams, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(&t.ID, &t.AuctionID, &t.Name, &t.BudgetAmount, &t.PointsUsed, &t.PlayersCount); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

const markPlayerSold = `
UPDATE auction_players
SET status = 'SOLD', team_id = $3, current_price = $4, updated_at = now()
WHERE id = $1 AND auction_id = $2 AND status = 'AVAILABLE'`

const chargeTeam = `
UPDATE auction_teams
SET points_used = points_used + $3, players_count = players_count + 1
WHERE id = $1 AND auction_id = $2 AND budget_amount - points_used >= $3`

// RecordSale marks the player SOLD and charges the team in one transaction.
// Either guard failing rolls both back with ErrConflict.
func (r *Repository) RecordSale(ctx context.Context, sale coordinator.SaleRecord) error {
	err := sqlutil.InTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, markPlayerSold, sale.PlayerID, sale.AuctionID, sale.TeamID, sale.Amount)
		if err != nil {
			return fmt.Errorf("failed to mark player sold: %w", err)
		}
		if err := sqlutil.ExpectOne(res, fmt.Errorf("player %s is no longer available: %w", sale.PlayerID, ErrConflict)); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, chargeTeam, sale.TeamID, sale.AuctionID, sale.Amount)
		if err != nil {
			return fmt.Errorf("failed to charge team: %w", err)
		}
		return sqlutil.ExpectOne(res, fmt.Errorf("team %s cannot afford %s: %w", sale.TeamID, sale.Amount, ErrConflict))
	})
	if err != nil {
		return err
	}
	return nil
}

const markPlayerUnsold = `
UPDATE auction_players
SET status = 'UNSOLD', team_id = NULL, updated_at = now()
WHERE id = $1 AND auction_id = $2 AND status = 'AVAILABLE'`

func (r *Repository) RecordUnsold(ctx context.Context, auctionID, playerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, markPlayerUnsold, playerID, auctionID)
	if err != nil {
		return fmt.Errorf("failed to mark player unsold: %w", err)
	}
	return sqlutil.ExpectOne(res, fmt.Errorf("player %s is no longer available: %w", playerID, ErrConflict))
}
