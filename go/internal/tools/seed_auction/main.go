package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/store"
	"github.com/mcdev12/gavel/go/internal/dbconfig"
	"github.com/mcdev12/gavel/go/internal/models"
)

// Seed is the layout of the input file.
type Seed struct {
	Auction models.Auction  `json:"auction"`
	Teams   []models.Team   `json:"teams"`
	Players []models.Player `json:"players"`
}

func main() {
	path := flag.String("file", "go/internal/assets/sample_auction.json", "seed file")
	applySchema := flag.Bool("schema", false, "create the tables before seeding")
	flag.Parse()

	ctx := context.Background()

	// 1) Load the seed file
	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *path, err)
		os.Exit(1)
	}
	seed, err := loadSeed(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load seed: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv().WithApplicationName("gavel-seed")
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to %s: %v\n", cfg.Redacted(), err)
		os.Exit(1)
	}
	defer pool.Close()

	if *applySchema {
		if _, err := pool.Exec(ctx, store.Schema); err != nil {
			fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema applied")
	}

	// 3) Seed everything in one transaction
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return seedAuction(ctx, tx, seed)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed auction: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf(
		"Auction seed: id=%s teams=%d players=%d\n",
		seed.Auction.ID, len(seed.Teams), len(seed.Players),
	)
}

// loadSeed decodes and validates a seed file. Missing IDs are generated and
// every team and player is attached to the auction.
func loadSeed(r io.Reader) (Seed, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}

	a := &seed.Auction
	if a.Name == "" {
		return Seed{}, errors.New("auction name is required")
	}
	if !a.BaseBidIncrement.IsPositive() {
		return Seed{}, errors.New("auction base_bid_increment must be positive")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	for i := range seed.Teams {
		t := &seed.Teams[i]
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.AuctionID = a.ID
		if t.BudgetAmount.IsNegative() {
			return Seed{}, fmt.Errorf("team %q has a negative budget", t.Name)
		}
	}

	for i := range seed.Players {
		p := &seed.Players[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.AuctionID = a.ID
		if p.BasePrice.IsNegative() {
			return Seed{}, fmt.Errorf("player %q has a negative base price", p.Name)
		}
		if p.CurrentPrice.LessThan(p.BasePrice) {
			p.CurrentPrice = p.BasePrice
		}
		if p.Status == "" {
			p.Status = models.PlayerStatusAvailable
		}
	}
	return seed, nil
}

func seedAuction(ctx context.Context, tx pgx.Tx, seed Seed) error {
	a := seed.Auction
	rules, err := store.EncodeBidRules(a.BidRules)
	if err != nil {
		return err
	}
	var rulesArg any
	if rules.Valid {
		rulesArg = string(rules.RawMessage)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO auctions (id, name, minimum_bid, base_bid_increment, players_per_team, bid_rules)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET
          name = EXCLUDED.name,
          minimum_bid = EXCLUDED.minimum_bid,
          base_bid_increment = EXCLUDED.base_bid_increment,
          players_per_team = EXCLUDED.players_per_team,
          bid_rules = EXCLUDED.bid_rules
    `, a.ID, a.Name, numeric(a.MinimumBid), numeric(a.BaseBidIncrement), a.PlayersPerTeam, rulesArg)
	if err != nil {
		return fmt.Errorf("upsert auction: %w", err)
	}

	for _, t := range seed.Teams {
		_, err := tx.Exec(ctx, `
            INSERT INTO auction_teams (id, auction_id, name, budget_amount)
            VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO UPDATE SET
              name = EXCLUDED.name,
              budget_amount = EXCLUDED.budget_amount
        `, t.ID, t.AuctionID, t.Name, numeric(t.BudgetAmount))
		if err != nil {
			return fmt.Errorf("upsert team %q: %w", t.Name, err)
		}
	}

	for _, p := range seed.Players {
		_, err := tx.Exec(ctx, `
            INSERT INTO auction_players (id, auction_id, name, role, base_price, current_price, status)
            VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (id) DO UPDATE SET
              name = EXCLUDED.name,
              role = EXCLUDED.role,
              base_price = EXCLUDED.base_price
        `, p.ID, p.AuctionID, p.Name, p.Role, numeric(p.BasePrice), numeric(p.CurrentPrice), string(p.Status))
		if err != nil {
			return fmt.Errorf("upsert player %q: %w", p.Name, err)
		}
	}
	return nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
