package bidledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestPlaceAndLeading(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))
	l := New(clock)
	player, teamA, teamB := uuid.New(), uuid.New(), uuid.New()

	_, ok := l.Leading(player)
	check.False(t, ok)

	first := l.Place(player, teamA, decimal.NewFromInt(100))
	clock.Advance(time.Second)
	second := l.Place(player, teamB, decimal.NewFromInt(200))

	leading, ok := l.Leading(player)
	assert.True(t, ok)
	check.Equal(t, second.ID, leading.ID)
	check.Equal(t, teamB, leading.TeamID)
	check.True(t, second.Timestamp.After(first.Timestamp))

	bids := l.Bids(player)
	assert.Equal(t, 2, len(bids))
	check.Equal(t, second.ID, bids[0].ID)
	check.Equal(t, first.ID, bids[1].ID)
	check.Equal(t, 2, l.Count(player))
}

func TestUndoLast(t *testing.T) {
	l := New(clockwork.NewFakeClock())
	player, teamA, teamB := uuid.New(), uuid.New(), uuid.New()

	first := l.Place(player, teamA, decimal.NewFromInt(100))
	second := l.Place(player, teamB, decimal.NewFromInt(200))

	removed, leading, hasLeading, ok := l.UndoLast(player)
	assert.True(t, ok)
	check.Equal(t, second.ID, removed.ID)
	check.True(t, hasLeading)
	check.Equal(t, first.ID, leading.ID)

	removed, _, hasLeading, ok = l.UndoLast(player)
	assert.True(t, ok)
	check.Equal(t, first.ID, removed.ID)
	check.False(t, hasLeading)
	check.Equal(t, 0, l.Count(player))

	_, _, _, ok = l.UndoLast(player)
	check.False(t, ok)
}

func TestClearIsPerPlayer(t *testing.T) {
	l := New(nil)
	p1, p2, team := uuid.New(), uuid.New(), uuid.New()

	l.Place(p1, team, decimal.NewFromInt(100))
	l.Place(p2, team, decimal.NewFromInt(100))
	l.Clear(p1)

	check.Equal(t, 0, l.Count(p1))
	check.Equal(t, 1, l.Count(p2))
}

func TestBidsReturnsCopy(t *testing.T) {
	l := New(nil)
	player := uuid.New()
	l.Place(player, uuid.New(), decimal.NewFromInt(100))

	bids := l.Bids(player)
	bids[0].Amount = decimal.NewFromInt(999)

	leading, _ := l.Leading(player)
	check.Equal(t, "100", leading.Amount.String())
}
