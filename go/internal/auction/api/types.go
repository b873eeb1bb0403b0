package api

import (
	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/auction/intent"
)

// ServiceName is the fully qualified name of the bidding service.
const ServiceName = "gavel.bidding.v1.BiddingService"

// Procedure paths of the bidding service.
const (
	StartSessionProcedure       = "/" + ServiceName + "/StartSession"
	EndSessionProcedure         = "/" + ServiceName + "/EndSession"
	GetSnapshotProcedure        = "/" + ServiceName + "/GetSnapshot"
	SelectPlayerProcedure       = "/" + ServiceName + "/SelectPlayer"
	SelectRandomPlayerProcedure = "/" + ServiceName + "/SelectRandomPlayer"
	PlaceBidProcedure           = "/" + ServiceName + "/PlaceBid"
	JumpBidProcedure            = "/" + ServiceName + "/JumpBid"
	UndoLastBidProcedure        = "/" + ServiceName + "/UndoLastBid"
	MarkSoldProcedure           = "/" + ServiceName + "/MarkSold"
	MarkUnsoldProcedure         = "/" + ServiceName + "/MarkUnsold"
	SetModeProcedure            = "/" + ServiceName + "/SetMode"
)

// UserHeader carries the caller's user ID.
const UserHeader = "X-User-ID"

type AuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type EndSessionResponse struct {
	AuctionID string `json:"auction_id"`
	Ended     bool   `json:"ended"`
}

// IntentRequest is an intent for one auction. The intent type comes from the
// procedure; a type in the body is ignored.
type IntentRequest struct {
	AuctionID string `json:"auction_id"`
	intent.Raw
}

type IntentResponse struct {
	RequestID string         `json:"request_id,omitempty"`
	Intent    string         `json:"intent"`
	Events    []events.Event `json:"events"`
	Sequence  uint64         `json:"sequence"`
	// PublishError is set when the change was committed but not every viewer
	// was reached. Viewers should refetch the snapshot.
	PublishError string `json:"publish_error,omitempty"`
}
