package api

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mcdev12/gavel/go/internal/auction/events"
)

// Client calls the read side of the bidding service. Relay gateways use it
// to bootstrap viewers from the authoritative server.
type Client struct {
	getSnapshot  *connect.Client[AuctionRequest, events.Snapshot]
	startSession *connect.Client[AuctionRequest, events.Snapshot]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &Client{
		getSnapshot:  connect.NewClient[AuctionRequest, events.Snapshot](httpClient, baseURL+GetSnapshotProcedure, opts...),
		startSession: connect.NewClient[AuctionRequest, events.Snapshot](httpClient, baseURL+StartSessionProcedure, opts...),
	}
}

// Snapshot fetches the live state of auctionID. A missing session is
// reported as coordinator.ErrNoSession.
func (c *Client) Snapshot(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error) {
	resp, err := c.getSnapshot.CallUnary(ctx, connect.NewRequest(&AuctionRequest{AuctionID: auctionID.String()}))
	if err != nil {
		return events.Snapshot{}, FromConnectError(err)
	}
	return *resp.Msg, nil
}

// StartSession starts the live session of auctionID and returns its snapshot.
func (c *Client) StartSession(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error) {
	resp, err := c.startSession.CallUnary(ctx, connect.NewRequest(&AuctionRequest{AuctionID: auctionID.String()}))
	if err != nil {
		return events.Snapshot{}, FromConnectError(err)
	}
	return *resp.Msg, nil
}
