package bidrule

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/mcdev12/gavel/go/internal/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func auctionWith(base int64, rules ...models.BidRule) models.Auction {
	return models.Auction{BaseBidIncrement: d(base), BidRules: rules}
}

func rule(threshold, increment int64) models.BidRule {
	return models.BidRule{ThresholdAmount: d(threshold), IncrementAmount: d(increment)}
}

func TestIncrement(t *testing.T) {
	tests := []struct {
		name    string
		auction models.Auction
		price   int64
		want    string
	}{
		{
			name:    "no rules falls back to base increment",
			auction: auctionWith(100),
			price:   5000,
			want:    "100",
		},
		{
			name:    "below first threshold",
			auction: auctionWith(100, rule(1000, 200)),
			price:   900,
			want:    "100",
		},
		{
			name:    "threshold is inclusive",
			auction: auctionWith(100, rule(1000, 200)),
			price:   1000,
			want:    "200",
		},
		{
			name:    "unsorted rules are sorted before evaluation",
			auction: auctionWith(100, rule(5000, 500), rule(1000, 200), rule(2000, 300)),
			price:   2500,
			want:    "300",
		},
		{
			name:    "last rule of a duplicate threshold wins",
			auction: auctionWith(100, rule(1000, 200), rule(1000, 250)),
			price:   1200,
			want:    "250",
		},
		{
			name:    "negative rules are ignored",
			auction: auctionWith(100, rule(-1, 1000), rule(1000, -5)),
			price:   2000,
			want:    "100",
		},
		{
			name:    "zero threshold applies from the start",
			auction: auctionWith(100, rule(0, 50)),
			price:   0,
			want:    "50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Increment(tt.auction, d(tt.price))
			check.Equal(t, tt.want, got.String())
		})
	}
}

func TestNextBidCrossingThreshold(t *testing.T) {
	auction := auctionWith(100, rule(1000, 200))

	price := d(900)
	check.Equal(t, "100", Increment(auction, price).String())

	// the bid that crosses the threshold still uses the old increment
	price = NextBid(auction, price)
	check.Equal(t, "1000", price.String())
	check.Equal(t, "200", Increment(auction, price).String())
	check.Equal(t, "1200", NextBid(auction, price).String())
}

func TestNormalizeKeepsInput(t *testing.T) {
	rules := []models.BidRule{rule(2000, 300), rule(1000, 200)}
	sorted := Normalize(rules)

	check.Equal(t, 2, len(sorted))
	check.Equal(t, "1000", sorted[0].ThresholdAmount.String())
	check.Equal(t, "2000", rules[0].ThresholdAmount.String())
}

func TestIncrementMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(t, "rules")
		base := rapid.Int64Range(1, 100).Draw(t, "base")

		// non-decreasing increments as thresholds grow
		rules := make([]models.BidRule, 0, n)
		threshold, increment := int64(0), base
		for i := 0; i < n; i++ {
			threshold += rapid.Int64Range(1, 1000).Draw(t, "gap")
			increment += rapid.Int64Range(0, 100).Draw(t, "step")
			rules = append(rules, rule(threshold, increment))
		}
		auction := auctionWith(base, rules...)

		p1 := rapid.Int64Range(0, 10000).Draw(t, "p1")
		p2 := p1 + rapid.Int64Range(0, 10000).Draw(t, "delta")

		i1 := Increment(auction, d(p1))
		i2 := Increment(auction, d(p2))
		if i2.LessThan(i1) {
			t.Fatalf("increment decreased: increment(%d)=%s > increment(%d)=%s", p1, i1, p2, i2)
		}
	})
}
