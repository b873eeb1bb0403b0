package main

import (
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/gavel/go/internal/models"
)

func TestLoadSampleSeed(t *testing.T) {
	f, err := os.Open("../../assets/sample_auction.json")
	assert.NoError(t, err)
	defer f.Close()

	seed, err := loadSeed(f)
	assert.NoError(t, err)
	check.Equal(t, "Premier Cricket Auction", seed.Auction.Name)
	check.Equal(t, 2, len(seed.Auction.BidRules))
	check.Equal(t, 4, len(seed.Teams))
	check.Equal(t, 6, len(seed.Players))

	for _, p := range seed.Players {
		check.NotEqual(t, uuid.Nil, p.ID)
		check.Equal(t, seed.Auction.ID, p.AuctionID)
		check.Equal(t, models.PlayerStatusAvailable, p.Status)
		check.True(t, p.CurrentPrice.Equal(p.BasePrice))
	}
	for _, team := range seed.Teams {
		check.Equal(t, seed.Auction.ID, team.AuctionID)
	}
}

func TestLoadSeedValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `auction`},
		{name: "no name", body: `{"auction":{"base_bid_increment":"100"}}`},
		{name: "no increment", body: `{"auction":{"name":"x"}}`},
		{name: "negative budget", body: `{"auction":{"name":"x","base_bid_increment":"100"},"teams":[{"name":"t","budget_amount":"-1"}]}`},
		{name: "negative base price", body: `{"auction":{"name":"x","base_bid_increment":"100"},"players":[{"name":"p","base_price":"-5"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadSeed(strings.NewReader(tc.body))
			check.Error(t, err)
		})
	}
}

func TestNumeric(t *testing.T) {
	seed, err := loadSeed(strings.NewReader(`{"auction":{"name":"x","base_bid_increment":"12.50"}}`))
	assert.NoError(t, err)
	n := numeric(seed.Auction.BaseBidIncrement)
	check.True(t, n.Valid)
	check.Equal(t, int64(1250), n.Int.Int64())
	check.Equal(t, int32(-2), n.Exp)
}
