// Package api exposes the live bidding engine over Connect.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/auction/intent"
)

// Sessions defines what the service layer needs from the session registry
type Sessions interface {
	Start(ctx context.Context, auctionID uuid.UUID) (*coordinator.Session, error)
	End(auctionID uuid.UUID) error
	Snapshot(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error)
	Submit(ctx context.Context, auctionID uuid.UUID, intent coordinator.Intent) (coordinator.Result, error)
}

// Service implements the bidding service procedures
type Service struct {
	sessions     Sessions
	entitlements *intent.Entitlements
}

// NewService creates a new bidding service
func NewService(sessions Sessions, entitlements *intent.Entitlements) *Service {
	return &Service{
		sessions:     sessions,
		entitlements: entitlements,
	}
}

// NewBiddingServiceHandler builds the HTTP handler for every procedure and
// returns the path to mount it on.
func NewBiddingServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(StartSessionProcedure, connect.NewUnaryHandler(StartSessionProcedure, svc.StartSession, opts...))
	mux.Handle(EndSessionProcedure, connect.NewUnaryHandler(EndSessionProcedure, svc.EndSession, opts...))
	mux.Handle(GetSnapshotProcedure, connect.NewUnaryHandler(GetSnapshotProcedure, svc.GetSnapshot, opts...))
	mux.Handle(SelectPlayerProcedure, connect.NewUnaryHandler(SelectPlayerProcedure, svc.SelectPlayer, opts...))
	mux.Handle(SelectRandomPlayerProcedure, connect.NewUnaryHandler(SelectRandomPlayerProcedure, svc.SelectRandomPlayer, opts...))
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, svc.PlaceBid, opts...))
	mux.Handle(JumpBidProcedure, connect.NewUnaryHandler(JumpBidProcedure, svc.JumpBid, opts...))
	mux.Handle(UndoLastBidProcedure, connect.NewUnaryHandler(UndoLastBidProcedure, svc.UndoLastBid, opts...))
	mux.Handle(MarkSoldProcedure, connect.NewUnaryHandler(MarkSoldProcedure, svc.MarkSold, opts...))
	mux.Handle(MarkUnsoldProcedure, connect.NewUnaryHandler(MarkUnsoldProcedure, svc.MarkUnsold, opts...))
	mux.Handle(SetModeProcedure, connect.NewUnaryHandler(SetModeProcedure, svc.SetMode, opts...))
	return "/" + ServiceName + "/", mux
}

// StartSession loads the auction and starts its live session
func (s *Service) StartSession(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[events.Snapshot], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.sessions.Start(ctx, auctionID); err != nil {
		return nil, toConnectError(err)
	}
	snapshot, err := s.sessions.Snapshot(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("user_id", req.Header().Get(UserHeader)).
		Msg("live session started")
	return connect.NewResponse(&snapshot), nil
}

// EndSession stops the live session and disconnects its viewers
func (s *Service) EndSession(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[EndSessionResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.End(auctionID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&EndSessionResponse{AuctionID: auctionID.String(), Ended: true}), nil
}

// GetSnapshot returns the live state of a running auction
func (s *Service) GetSnapshot(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[events.Snapshot], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.sessions.Snapshot(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&snapshot), nil
}

func (s *Service) SelectPlayer(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeSelectPlayer)
}

func (s *Service) SelectRandomPlayer(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeSelectRandomPlayer)
}

func (s *Service) PlaceBid(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypePlaceBid)
}

func (s *Service) JumpBid(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeJumpBid)
}

func (s *Service) UndoLastBid(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeUndoLastBid)
}

func (s *Service) MarkSold(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeMarkSold)
}

func (s *Service) MarkUnsold(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeMarkUnsold)
}

func (s *Service) SetMode(ctx context.Context, req *connect.Request[IntentRequest]) (*connect.Response[IntentResponse], error) {
	return s.submit(ctx, req, intent.TypeSetMode)
}

func (s *Service) submit(ctx context.Context, req *connect.Request[IntentRequest], typ string) (*connect.Response[IntentResponse], error) {
	auctionID, err := parseAuctionID(req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	raw := req.Msg.Raw
	raw.Type = typ
	in, err := intent.FromRaw(raw)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := intent.Authorize(s.entitlements.Principal(req.Header().Get(UserHeader)), in); err != nil {
		return nil, toConnectError(err)
	}

	result, err := s.sessions.Submit(ctx, auctionID, in)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &IntentResponse{
		RequestID: raw.RequestID,
		Intent:    in.Name(),
		Events:    result.Events,
	}
	if n := len(result.Events); n > 0 {
		resp.Sequence = result.Events[n-1].Sequence
	}
	if result.PublishErr != nil {
		resp.PublishError = result.PublishErr.Error()
	}
	return connect.NewResponse(resp), nil
}

func parseAuctionID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid auction_id: %w", err))
	}
	return id, nil
}

// Error metadata keys carrying the rejection taxonomy.
const (
	kindHeader   = "Rejection-Kind"
	reasonHeader = "Rejection-Reason"
)

// toConnectError maps a rejection kind to a Connect code.
func toConnectError(err error) error {
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	r, ok := coordinator.AsRejection(err)
	if !ok {
		return connect.NewError(connect.CodeInternal, err)
	}

	code := connect.CodeInternal
	switch {
	case r.Reason == coordinator.ReasonNoSession:
		code = connect.CodeNotFound
	case r.Kind == coordinator.KindValidation:
		code = connect.CodeInvalidArgument
	case r.Kind == coordinator.KindStateConflict:
		code = connect.CodeFailedPrecondition
	case r.Kind == coordinator.KindTransport:
		code = connect.CodeUnavailable
	}

	cerr := connect.NewError(code, errors.New(r.Error()))
	cerr.Meta().Set(kindHeader, string(r.Kind))
	cerr.Meta().Set(reasonHeader, string(r.Reason))
	return cerr
}

// FromConnectError rebuilds the rejection carried by a Connect error. Other
// errors are returned unchanged.
func FromConnectError(err error) error {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return err
	}
	reason := cerr.Meta().Get(reasonHeader)
	if reason == "" {
		return err
	}
	return &coordinator.Rejection{
		Kind:    coordinator.Kind(cerr.Meta().Get(kindHeader)),
		Reason:  coordinator.Reason(reason),
		Message: cerr.Message(),
	}
}
