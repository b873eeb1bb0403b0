package intent

import (
	"strings"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
)

// ErrPremiumRequired is returned when a caller without premium access submits
// a jump bid.
var ErrPremiumRequired = &coordinator.Rejection{
	Kind:    coordinator.KindValidation,
	Reason:  "premium_required",
	Message: "jump bids require premium access",
}

// Principal is the caller on whose behalf an intent is submitted.
type Principal struct {
	UserID  string
	Premium bool
}

// Entitlements answers premium lookups. It is filled from configuration; the
// entitlement service itself lives elsewhere.
type Entitlements struct {
	premium map[string]bool
}

// NewEntitlements grants premium access to userIDs.
func NewEntitlements(userIDs []string) *Entitlements {
	e := &Entitlements{premium: make(map[string]bool, len(userIDs))}
	for _, id := range userIDs {
		if id = strings.TrimSpace(id); id != "" {
			e.premium[id] = true
		}
	}
	return e
}

// Principal resolves the caller.
func (e *Entitlements) Principal(userID string) Principal {
	return Principal{UserID: userID, Premium: e != nil && e.premium[userID]}
}

// Authorize applies caller side gating before an intent reaches the
// coordinator.
func Authorize(p Principal, in coordinator.Intent) error {
	if _, ok := in.(coordinator.JumpBid); ok && !p.Premium {
		return ErrPremiumRequired
	}
	return nil
}
