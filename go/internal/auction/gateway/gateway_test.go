package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/gavel/go/internal/auction/auctiontest"
	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/auction/intent"
)

type liveAuction struct {
	auction  auctiontest.Auction
	registry *coordinator.Registry
	server   *httptest.Server
	service  *Service
}

func newLiveAuction(t *testing.T) *liveAuction {
	t.Helper()
	a := auctiontest.NewAuction(3, 2)
	registry, _ := a.Registry()
	_, err := registry.Start(context.Background(), a.Auction.ID)
	assert.NoError(t, err)

	svc := NewService(DefaultConnectionConfig(), Backend{
		Channels:     registry,
		State:        registry,
		Submitter:    registry,
		Entitlements: intent.NewEntitlements([]string{"vip"}),
	})
	server := newServer(svc)
	t.Cleanup(func() {
		svc.Stop()
		server.Close()
		registry.Close()
	})
	return &liveAuction{auction: a, registry: registry, server: server, service: svc}
}

func newServer(svc *Service) *httptest.Server {
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func wsURL(server *httptest.Server, auctionID uuid.UUID, user string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/auction?auction_id=" + auctionID.String() + "&user_id=" + user
}

func dial(t *testing.T, server *httptest.Server, auctionID uuid.UUID, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, auctionID, user), nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f Frame
	assert.NoError(t, conn.ReadJSON(&f))
	return f
}

// readOutcome reads the event frames and the ack or rejection the initiator
// gets for one intent, in whatever order they arrive.
func readOutcome(t *testing.T, conn *websocket.Conn, wantEvents int) (evs []events.Event, reply Frame) {
	t.Helper()
	for len(evs) < wantEvents || reply.Type == "" {
		f := readFrame(t, conn)
		switch f.Type {
		case FrameEvent:
			evs = append(evs, *f.Event)
		case FrameAck, FrameRejection:
			reply = f
		default:
			t.Fatalf("unexpected %s frame", f.Type)
		}
	}
	return evs, reply
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	assert.NoError(t, conn.WriteJSON(frame))
}

func TestBootstrapThenStream(t *testing.T) {
	live := newLiveAuction(t)
	auctionID := live.auction.Auction.ID
	player := live.auction.Players[0]
	teamA, teamB := live.auction.Teams[0], live.auction.Teams[1]

	bidder := dial(t, live.server, auctionID, "u1")
	viewer := dial(t, live.server, auctionID, "u2")

	for _, conn := range []*websocket.Conn{bidder, viewer} {
		f := readFrame(t, conn)
		assert.Equal(t, FrameSnapshot, f.Type)
		check.Equal(t, auctionID, f.Snapshot.AuctionID)
		check.Equal(t, uint64(0), f.Snapshot.Sequence)
	}

	send(t, bidder, map[string]any{"request_id": "r1", "type": "select_player", "player_id": player.ID.String()})
	evs, reply := readOutcome(t, bidder, 1)
	check.Equal(t, events.TypePlayerSelected, evs[0].Type)
	assert.Equal(t, FrameAck, reply.Type)
	check.Equal(t, "r1", reply.RequestID)
	check.Equal(t, "select_player", reply.Ack.Intent)
	check.Equal(t, []uint64{1}, reply.Ack.Sequences)

	f := readFrame(t, viewer)
	assert.Equal(t, FrameEvent, f.Type)
	check.Equal(t, uint64(1), f.Event.Sequence)

	send(t, bidder, map[string]any{"request_id": "r2", "type": "place_bid", "team_id": teamA.ID.String()})
	evs, reply = readOutcome(t, bidder, 1)
	check.Equal(t, "600", evs[0].Amount.String())
	check.Equal(t, FrameAck, reply.Type)

	f = readFrame(t, viewer)
	check.Equal(t, uint64(2), f.Event.Sequence)
	check.Equal(t, "600", f.Event.Amount.String())

	t.Run("rejections reach only the initiator", func(t *testing.T) {
		send(t, bidder, map[string]any{"request_id": "r3", "type": "place_bid", "team_id": teamA.ID.String()})
		f := readFrame(t, bidder)
		assert.Equal(t, FrameRejection, f.Type)
		check.Equal(t, "r3", f.RequestID)
		check.Equal(t, string(coordinator.ReasonSelfRaise), f.Rejection.Reason)
		check.Equal(t, string(coordinator.KindValidation), f.Rejection.Kind)

		send(t, bidder, map[string]any{"request_id": "r4", "type": "place_bid", "team_id": teamB.ID.String()})
		evs, reply := readOutcome(t, bidder, 1)
		check.Equal(t, FrameAck, reply.Type)
		check.Equal(t, uint64(3), evs[0].Sequence)

		// the viewer's next frame is the accepted bid, not the rejection
		f = readFrame(t, viewer)
		assert.Equal(t, FrameEvent, f.Type)
		check.Equal(t, uint64(3), f.Event.Sequence)
		check.Equal(t, "700", f.Event.Amount.String())
	})

	t.Run("jump bid needs premium", func(t *testing.T) {
		send(t, bidder, map[string]any{"type": "jump_bid", "team_id": teamA.ID.String(), "amount": 2000})
		f := readFrame(t, bidder)
		assert.Equal(t, FrameRejection, f.Type)
		check.Equal(t, "premium_required", f.Rejection.Reason)
	})

	t.Run("malformed frames are rejected", func(t *testing.T) {
		assert.NoError(t, bidder.WriteMessage(websocket.TextMessage, []byte("bid please")))
		f := readFrame(t, bidder)
		assert.Equal(t, FrameRejection, f.Type)
		check.Equal(t, string(coordinator.ReasonUnknownIntent), f.Rejection.Reason)
	})
}

func TestLateJoinerGetsCurrentState(t *testing.T) {
	live := newLiveAuction(t)
	auctionID := live.auction.Auction.ID
	ctx := context.Background()

	_, err := live.registry.Submit(ctx, auctionID, coordinator.SelectPlayer{PlayerID: live.auction.Players[1].ID})
	assert.NoError(t, err)
	_, err = live.registry.Submit(ctx, auctionID, coordinator.PlaceBid{TeamID: live.auction.Teams[0].ID})
	assert.NoError(t, err)

	conn := dial(t, live.server, auctionID, "late")
	f := readFrame(t, conn)
	assert.Equal(t, FrameSnapshot, f.Type)
	check.Equal(t, uint64(2), f.Snapshot.Sequence)
	assert.NotNil(t, f.Snapshot.ActivePlayerID)
	check.Equal(t, live.auction.Players[1].ID, *f.Snapshot.ActivePlayerID)
	check.Equal(t, "600", f.Snapshot.CurrentPrice.String())

	_, err = live.registry.Submit(ctx, auctionID, coordinator.PlaceBid{TeamID: live.auction.Teams[1].ID})
	assert.NoError(t, err)

	f = readFrame(t, conn)
	assert.Equal(t, FrameEvent, f.Type)
	check.Equal(t, uint64(3), f.Event.Sequence)
}

func TestUnknownAuction(t *testing.T) {
	live := newLiveAuction(t)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(live.server, uuid.New(), "u1"), nil)
	check.Error(t, err)
	assert.NotNil(t, resp)
	check.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionEndClosesConnections(t *testing.T) {
	live := newLiveAuction(t)
	conn := dial(t, live.server, live.auction.Auction.ID, "u1")
	readFrame(t, conn)

	assert.NoError(t, live.registry.End(live.auction.Auction.ID))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	check.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestStateRoutes(t *testing.T) {
	live := newLiveAuction(t)
	auctionID := live.auction.Auction.ID

	conn := dial(t, live.server, auctionID, "u1")
	readFrame(t, conn)

	t.Run("state", func(t *testing.T) {
		resp, err := http.Get(live.server.URL + "/api/auctions/" + auctionID.String() + "/state")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var snap events.Snapshot
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
		check.Equal(t, auctionID, snap.AuctionID)
		check.Equal(t, 3, len(snap.Players))
	})

	t.Run("no session", func(t *testing.T) {
		resp, err := http.Get(live.server.URL + "/api/auctions/" + uuid.New().String() + "/state")
		assert.NoError(t, err)
		resp.Body.Close()
		check.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad id", func(t *testing.T) {
		resp, err := http.Get(live.server.URL + "/api/auctions/nope/state")
		assert.NoError(t, err)
		resp.Body.Close()
		check.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("active", func(t *testing.T) {
		resp, err := http.Get(live.server.URL + "/api/auctions/active")
		assert.NoError(t, err)
		defer resp.Body.Close()

		var active ActiveAuctionsResponse
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&active))
		check.Equal(t, []string{auctionID.String()}, active.Auctions)
	})

	t.Run("stats", func(t *testing.T) {
		resp, err := http.Get(live.server.URL + "/ws/stats")
		assert.NoError(t, err)
		defer resp.Body.Close()

		var stats ConnectionStats
		assert.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
		check.Equal(t, 1, stats.TotalConnections)
		check.Equal(t, 1, stats.ActiveAuctions)
		assert.Equal(t, 1, len(stats.Channels))
		check.Equal(t, 1, stats.Channels[0].Subscriptions)
	})
}
