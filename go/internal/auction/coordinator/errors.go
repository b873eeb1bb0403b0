package coordinator

import (
	"errors"
	"fmt"
)

// Kind groups rejections by how the caller should recover.
type Kind string

const (
	// KindValidation means the intent itself is invalid. Nothing changed.
	KindValidation Kind = "validation_rejection"
	// KindStateConflict means the intent is not legal in the current state. Nothing changed.
	KindStateConflict Kind = "state_conflict"
	// KindTransport means a collaborator failed. Viewers should refetch the snapshot.
	KindTransport Kind = "transport_failure"
)

// Reason is a stable machine readable rejection code.
type Reason string

const (
	ReasonSelfRaise          Reason = "self_raise"
	ReasonInsufficientBudget Reason = "insufficient_budget"
	ReasonBelowIncrement     Reason = "below_minimum_increment"
	ReasonMalformedAmount    Reason = "malformed_amount"
	ReasonMissingSelection   Reason = "missing_selection"
	ReasonRosterFull         Reason = "roster_full"
	ReasonUnknownTeam        Reason = "unknown_team"
	ReasonUnknownPlayer      Reason = "unknown_player"
	ReasonUnknownMode        Reason = "unknown_mode"
	ReasonUnknownIntent      Reason = "unknown_intent"
	ReasonNoActivePlayer     Reason = "no_active_player"
	ReasonNotSelected        Reason = "player_not_selected"
	ReasonNotAvailable       Reason = "player_not_available"
	ReasonNoCandidates       Reason = "no_available_players"
	ReasonNoBid              Reason = "no_bid"
	ReasonBidsOpen           Reason = "bids_open"
	ReasonWrongMode          Reason = "wrong_mode"
	ReasonNotUnsold          Reason = "not_unsold"
	ReasonNotOwned           Reason = "not_owned"
	ReasonNoSession          Reason = "no_session"
	ReasonSessionClosed      Reason = "session_closed"
	ReasonPersistFailed      Reason = "persist_failed"
	ReasonPublishFailed      Reason = "publish_failed"
	ReasonSnapshotFailed     Reason = "snapshot_failed"
)

// Rejection is returned for every intent the coordinator refuses. Message names
// the violated constraint and is safe to show to the initiating user.
type Rejection struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return r.Message + ": " + r.Err.Error()
	}
	return r.Message
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Is matches any rejection with the same reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Reason == r.Reason
}

// Sentinel rejections for errors.Is checks.
var (
	ErrSelfRaise          = &Rejection{Kind: KindValidation, Reason: ReasonSelfRaise, Message: "team already holds the leading bid"}
	ErrInsufficientBudget = &Rejection{Kind: KindValidation, Reason: ReasonInsufficientBudget, Message: "amount exceeds team remaining budget"}
	ErrBelowIncrement     = &Rejection{Kind: KindValidation, Reason: ReasonBelowIncrement, Message: "amount is below the minimum increment"}
	ErrMalformedAmount    = &Rejection{Kind: KindValidation, Reason: ReasonMalformedAmount, Message: "amount must be a finite non-negative number"}
	ErrMissingSelection   = &Rejection{Kind: KindValidation, Reason: ReasonMissingSelection, Message: "a required selection is missing"}
	ErrRosterFull         = &Rejection{Kind: KindValidation, Reason: ReasonRosterFull, Message: "team roster is full"}
	ErrUnknownTeam        = &Rejection{Kind: KindValidation, Reason: ReasonUnknownTeam, Message: "team is not part of this auction"}
	ErrUnknownPlayer      = &Rejection{Kind: KindValidation, Reason: ReasonUnknownPlayer, Message: "player is not part of this auction"}
	ErrUnknownMode        = &Rejection{Kind: KindValidation, Reason: ReasonUnknownMode, Message: "bidding mode must be LIVE or DIRECT"}
	ErrUnknownIntent      = &Rejection{Kind: KindValidation, Reason: ReasonUnknownIntent, Message: "unknown intent"}
	ErrNoActivePlayer     = &Rejection{Kind: KindStateConflict, Reason: ReasonNoActivePlayer, Message: "no player is selected"}
	ErrNotSelected        = &Rejection{Kind: KindStateConflict, Reason: ReasonNotSelected, Message: "player is not the selected player"}
	ErrNotAvailable       = &Rejection{Kind: KindStateConflict, Reason: ReasonNotAvailable, Message: "player is not available"}
	ErrNoCandidates       = &Rejection{Kind: KindStateConflict, Reason: ReasonNoCandidates, Message: "no available players left"}
	ErrNoBid              = &Rejection{Kind: KindStateConflict, Reason: ReasonNoBid, Message: "no valid bid to sell against"}
	ErrBidsOpen           = &Rejection{Kind: KindStateConflict, Reason: ReasonBidsOpen, Message: "selected player has open bids"}
	ErrWrongMode          = &Rejection{Kind: KindStateConflict, Reason: ReasonWrongMode, Message: "operation is not allowed in the current bidding mode"}
	ErrNotUnsold          = &Rejection{Kind: KindStateConflict, Reason: ReasonNotUnsold, Message: "player is not unsold"}
	ErrNotOwned           = &Rejection{Kind: KindStateConflict, Reason: ReasonNotOwned, Message: "player is not owned by the team"}
	ErrNoSession          = &Rejection{Kind: KindStateConflict, Reason: ReasonNoSession, Message: "no live session for auction"}
	ErrSessionClosed      = &Rejection{Kind: KindStateConflict, Reason: ReasonSessionClosed, Message: "live session has ended"}
	ErrPersistFailed      = &Rejection{Kind: KindTransport, Reason: ReasonPersistFailed, Message: "failed to persist outcome"}
	ErrPublishFailed      = &Rejection{Kind: KindTransport, Reason: ReasonPublishFailed, Message: "failed to publish event"}
	ErrSnapshotFailed     = &Rejection{Kind: KindTransport, Reason: ReasonSnapshotFailed, Message: "failed to fetch snapshot"}
)

// reject copies a sentinel with a specific message.
func reject(base *Rejection, format string, args ...interface{}) *Rejection {
	return &Rejection{
		Kind:    base.Kind,
		Reason:  base.Reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// wrap copies a sentinel and attaches the underlying error.
func wrap(base *Rejection, err error) *Rejection {
	return &Rejection{
		Kind:    base.Kind,
		Reason:  base.Reason,
		Message: base.Message,
		Err:     err,
	}
}

// AsRejection extracts a rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// Rejectf builds a rejection of the same kind and reason as base with a
// specific message. Boundary packages use it for input they refuse.
func Rejectf(base *Rejection, format string, args ...interface{}) *Rejection {
	return reject(base, format, args...)
}
