// Package bidrule resolves the bid increment that applies at a given price.
package bidrule

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

// Increment returns the increment for the next bid at currentPrice.
//
// Rules are evaluated in ascending threshold order and the last rule whose
// threshold is at or below currentPrice wins. Rules with a negative threshold or
// increment are ignored. When no rule applies the auction's base increment is used.
func Increment(auction models.Auction, currentPrice decimal.Decimal) decimal.Decimal {
	rules := Normalize(auction.BidRules)

	increment := auction.BaseBidIncrement
	for _, rule := range rules {
		if rule.ThresholdAmount.GreaterThan(currentPrice) {
			break
		}
		increment = rule.IncrementAmount
	}
	return increment
}

// NextBid is the amount the next regular bid must reach.
func NextBid(auction models.Auction, currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Add(Increment(auction, currentPrice))
}

// Normalize drops malformed rules and returns the rest sorted by threshold.
// Rules with equal thresholds keep their original relative order.
func Normalize(rules []models.BidRule) []models.BidRule {
	valid := make([]models.BidRule, 0, len(rules))
	for _, rule := range rules {
		if rule.ThresholdAmount.IsNegative() || rule.IncrementAmount.IsNegative() {
			continue
		}
		valid = append(valid, rule)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].ThresholdAmount.LessThan(valid[j].ThresholdAmount)
	})
	return valid
}
