package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/models"
)

func TestDecodeBidRules(t *testing.T) {
	rules, err := DecodeBidRules(pqtype.NullRawMessage{})
	assert.NoError(t, err)
	check.Equal(t, 0, len(rules))

	rules, err = DecodeBidRules(pqtype.NullRawMessage{
		RawMessage: []byte(`[{"threshold_amount":"1000","increment_amount":"200"},{"threshold_amount":5000,"increment_amount":500}]`),
		Valid:      true,
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(rules))
	check.Equal(t, "1000", rules[0].ThresholdAmount.String())
	check.Equal(t, "200", rules[0].IncrementAmount.String())
	check.Equal(t, "5000", rules[1].ThresholdAmount.String())
	check.Equal(t, "500", rules[1].IncrementAmount.String())

	_, err = DecodeBidRules(pqtype.NullRawMessage{RawMessage: []byte(`{"not":"a list"}`), Valid: true})
	check.Error(t, err)
}

func TestEncodeBidRules(t *testing.T) {
	raw, err := EncodeBidRules(nil)
	assert.NoError(t, err)
	check.False(t, raw.Valid)

	raw, err = EncodeBidRules([]models.BidRule{{
		ThresholdAmount: decimal.NewFromInt(1000),
		IncrementAmount: decimal.NewFromInt(250),
	}})
	assert.NoError(t, err)
	check.True(t, raw.Valid)

	rules, err := DecodeBidRules(raw)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(rules))
	check.Equal(t, "250", rules[0].IncrementAmount.String())
}

func TestSchemaDeclaresTables(t *testing.T) {
	for _, table := range []string{"auctions", "auction_teams", "auction_players"} {
		check.True(t, strings.Contains(Schema, "CREATE TABLE IF NOT EXISTS "+table))
	}
	check.True(t, strings.Contains(Schema, "'auction_roster_changes'"))
}

func TestDecodeRosterChange(t *testing.T) {
	auctionID, playerID, teamID := uuid.New(), uuid.New(), uuid.New()

	t.Run("relist", func(t *testing.T) {
		c, err := DecodeRosterChange(fmt.Sprintf(
			`{"auction_id":%q,"kind":"relist","player_id":%q,"team_id":null,"refund":null}`, auctionID, playerID))
		assert.NoError(t, err)
		check.Equal(t, auctionID, c.AuctionID)
		check.Equal(t, ChangeRelist, c.Kind)
		check.Nil(t, c.TeamID)
		check.False(t, c.Refund.Valid)

		in, err := c.Intent()
		assert.NoError(t, err)
		check.Equal(t, coordinator.Intent(coordinator.RelistPlayer{PlayerID: playerID}), in)
	})

	t.Run("release with refund", func(t *testing.T) {
		c, err := DecodeRosterChange(fmt.Sprintf(
			`{"auction_id":%q,"kind":"release","player_id":%q,"team_id":%q,"refund":1250.50}`, auctionID, playerID, teamID))
		assert.NoError(t, err)
		assert.True(t, c.Refund.Valid)
		check.Equal(t, "1250.5", c.Refund.Decimal.String())

		in, err := c.Intent()
		assert.NoError(t, err)
		rel, ok := in.(coordinator.ReleasePlayer)
		assert.True(t, ok)
		check.Equal(t, playerID, rel.PlayerID)
		check.Equal(t, teamID, rel.TeamID)
		check.Equal(t, "1250.5", rel.Refund.Decimal.String())
	})

	t.Run("unknown kind", func(t *testing.T) {
		c, err := DecodeRosterChange(fmt.Sprintf(`{"auction_id":%q,"kind":"trade","player_id":%q}`, auctionID, playerID))
		assert.NoError(t, err)
		_, err = c.Intent()
		check.Error(t, err)
	})

	t.Run("missing ids", func(t *testing.T) {
		_, err := DecodeRosterChange(`{"kind":"relist"}`)
		check.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeRosterChange(`relist`)
		check.Error(t, err)
	})
}

type fakeSubmitter struct {
	auctionID uuid.UUID
	intent    coordinator.Intent
	err       error
}

func (f *fakeSubmitter) Submit(_ context.Context, auctionID uuid.UUID, in coordinator.Intent) (coordinator.Result, error) {
	f.auctionID = auctionID
	f.intent = in
	return coordinator.Result{}, f.err
}

func TestForward(t *testing.T) {
	auctionID, playerID := uuid.New(), uuid.New()
	payload := fmt.Sprintf(`{"auction_id":%q,"kind":"relist","player_id":%q}`, auctionID, playerID)

	t.Run("submits to the live session", func(t *testing.T) {
		sub := &fakeSubmitter{}
		assert.NoError(t, forward(context.Background(), sub, 0, payload))
		check.Equal(t, auctionID, sub.auctionID)
		check.Equal(t, coordinator.Intent(coordinator.RelistPlayer{PlayerID: playerID}), sub.intent)
	})

	t.Run("no session is not an error", func(t *testing.T) {
		sub := &fakeSubmitter{err: coordinator.Rejectf(coordinator.ErrNoSession, "no live session")}
		check.NoError(t, forward(context.Background(), sub, 0, payload))
	})

	t.Run("rejections are reported", func(t *testing.T) {
		sub := &fakeSubmitter{err: coordinator.Rejectf(coordinator.ErrNotUnsold, "already available")}
		err := forward(context.Background(), sub, 0, payload)
		check.True(t, errors.Is(err, coordinator.ErrNotUnsold))
	})

	t.Run("bad payload never reaches the session", func(t *testing.T) {
		sub := &fakeSubmitter{}
		check.Error(t, forward(context.Background(), sub, 0, `{}`))
		check.Nil(t, sub.intent)
	})
}
