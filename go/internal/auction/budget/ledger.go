// Package budget tracks a team's spending capacity and roster size during a
// live session.
package budget

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/models"
)

var (
	// ErrInsufficientBudget is returned by Commit when the amount exceeds the remaining budget.
	ErrInsufficientBudget = errors.New("amount exceeds team remaining budget")
	// ErrNegativeAmount is returned for negative sale or refund amounts.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrEmptyRoster is returned by Release when the team holds no players.
	ErrEmptyRoster = errors.New("team has no players to release")
)

// Ledger owns one team's budget. It is not safe for concurrent use; the
// coordinator session is its only writer.
type Ledger struct {
	team models.Team
}

// NewLedger starts a ledger from a persisted team record.
func NewLedger(team models.Team) *Ledger {
	return &Ledger{team: team}
}

// Team returns a copy of the current team state.
func (l *Ledger) Team() models.Team {
	return l.team
}

// Remaining is budgetAmount minus pointsUsed.
func (l *Ledger) Remaining() decimal.Decimal {
	return l.team.RemainingBudget()
}

// CanAfford reports whether the team can pay amount.
func (l *Ledger) CanAfford(amount decimal.Decimal) bool {
	return l.Remaining().GreaterThanOrEqual(amount)
}

// HasRosterSpace reports whether the team can take another player. A cap of
// zero or less means the roster is unlimited.
func (l *Ledger) HasRosterSpace(capacity int) bool {
	if capacity <= 0 {
		return true
	}
	return l.team.PlayersCount < capacity
}

// Commit records a completed sale. It must only be called once the sale has
// been validated; it never leaves the remaining budget negative.
func (l *Ledger) Commit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if !l.CanAfford(amount) {
		return fmt.Errorf("commit %s with %s remaining: %w", amount, l.Remaining(), ErrInsufficientBudget)
	}
	l.team.PointsUsed = l.team.PointsUsed.Add(amount)
	l.team.PlayersCount++
	return nil
}

// Release takes a player off the roster and refunds up to refund points.
// pointsUsed never drops below zero. It returns the refund actually applied.
func (l *Ledger) Release(refund decimal.Decimal) (decimal.Decimal, error) {
	if refund.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	if l.team.PlayersCount <= 0 {
		return decimal.Zero, ErrEmptyRoster
	}
	applied := decimal.Min(refund, l.team.PointsUsed)
	if applied.IsNegative() {
		applied = decimal.Zero
	}
	l.team.PointsUsed = l.team.PointsUsed.Sub(applied)
	l.team.PlayersCount--
	return applied, nil
}
