package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/broadcast"
	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/auction/events"
	"github.com/mcdev12/gavel/go/internal/auction/intent"
)

// ChannelSource hands out the broadcast channel of a live auction.
type ChannelSource interface {
	Channel(auctionID uuid.UUID) (*broadcast.Channel, bool)
}

// StateProvider serves snapshots of live auctions.
type StateProvider interface {
	Snapshot(ctx context.Context, auctionID uuid.UUID) (events.Snapshot, error)
	Active() []uuid.UUID
}

// IntentSubmitter forwards client intents to the auction's session.
type IntentSubmitter interface {
	Submit(ctx context.Context, auctionID uuid.UUID, intent coordinator.Intent) (coordinator.Result, error)
}

// Backend is what the gateway serves from. Submitter is nil on read-only
// relays.
type Backend struct {
	Channels     ChannelSource
	State        StateProvider
	Submitter    IntentSubmitter
	Entitlements *intent.Entitlements
}

// ConnectionManager manages WebSocket connections for live auctions
type ConnectionManager struct {
	// Connection pools organized by auction ID
	auctionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	backend  Backend
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID        string
	UserID    string
	AuctionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	gate      *broadcast.Gate
	sub       *broadcast.Subscription
	closed    chan struct{}
	closeOnce sync.Once
	closeCode int
	closeText string
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	SnapshotTimeout time.Duration
	SubmitTimeout   time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		SnapshotTimeout: 5 * time.Second,
		SubmitTimeout:   10 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, backend Backend) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	return &ConnectionManager{
		auctionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		backend: backend,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and bootstraps
// it: subscribe, send the snapshot, then stream events newer than it.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string, auctionID uuid.UUID) error {
	channel, ok := cm.backend.Channels.Channel(auctionID)
	if !ok {
		http.Error(w, "no live session for auction", http.StatusNotFound)
		return coordinator.Rejectf(coordinator.ErrNoSession, "no live session for auction %s", auctionID)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		AuctionID:   auctionID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		closed:      make(chan struct{}),
	}
	connection.gate = broadcast.NewGate(connection.deliverEvent)

	if err := connection.bootstrap(r.Context(), channel); err != nil {
		cancel()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "snapshot unavailable"),
			time.Now().Add(cm.config.WriteTimeout))
		conn.Close()
		return err
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()
	go connection.watch()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("auction_id", auctionID.String()).
		Msg("WebSocket connection established")

	return nil
}

// bootstrap subscribes before fetching the snapshot so no event falls between
// the two; the gate discards whatever the snapshot already covers.
func (c *Connection) bootstrap(ctx context.Context, channel *broadcast.Channel) error {
	sub, err := channel.Subscribe(events.AuctionTopic(c.AuctionID), c.gate.Offer)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	c.sub = sub

	snapCtx, cancel := context.WithTimeout(ctx, c.Manager.config.SnapshotTimeout)
	defer cancel()
	snapshot, err := c.Manager.backend.State.Snapshot(snapCtx, c.AuctionID)
	if err != nil {
		sub.Unsubscribe()
		return fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	if !c.sendFrame(Frame{Type: FrameSnapshot, Snapshot: &snapshot}) {
		sub.Unsubscribe()
		return errors.New("failed to queue snapshot")
	}
	c.gate.Open(snapshot.Sequence)
	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	select {
	case <-conn.closed:
		return
	default:
	}
	if cm.auctionConnections[conn.AuctionID] == nil {
		cm.auctionConnections[conn.AuctionID] = make(map[*Connection]bool)
	}
	cm.auctionConnections[conn.AuctionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("auction_id", conn.AuctionID.String()).
		Int("total_connections", len(cm.auctionConnections[conn.AuctionID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.auctionConnections[conn.AuctionID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)

			// Clean up empty auction connection pools
			if len(connections) == 0 {
				delete(cm.auctionConnections, conn.AuctionID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID).
				Str("auction_id", conn.AuctionID.String()).
				Msg("connection unregistered")
		}
	}
}

// CloseAll disconnects every client.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.auctionConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		conn.closeWith(websocket.CloseGoingAway, "gateway shutting down")
	}
}

// ConnectionStats is a point in time view of the gateway.
type ConnectionStats struct {
	TotalConnections   int               `json:"total_connections"`
	ActiveAuctions     int               `json:"active_auctions"`
	AuctionConnections map[string]int    `json:"auction_connections"`
	Channels           []broadcast.Stats `json:"channels"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	stats := ConnectionStats{
		ActiveAuctions:     len(cm.auctionConnections),
		AuctionConnections: make(map[string]int, len(cm.auctionConnections)),
	}
	ids := make([]uuid.UUID, 0, len(cm.auctionConnections))
	for auctionID, connections := range cm.auctionConnections {
		stats.TotalConnections += len(connections)
		stats.AuctionConnections[auctionID.String()] = len(connections)
		ids = append(ids, auctionID)
	}
	cm.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if channel, ok := cm.backend.Channels.Channel(id); ok {
			stats.Channels = append(stats.Channels, channel.Stats())
		}
	}
	return stats
}

// deliverEvent runs on the subscription goroutine with the gate held.
func (c *Connection) deliverEvent(event events.Event) {
	c.sendFrame(Frame{Type: FrameEvent, Event: &event})
}

// sendFrame queues a frame without blocking. A client that cannot keep up is
// disconnected and has to bootstrap again.
func (c *Connection) sendFrame(frame Frame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("frame", string(frame.Type)).Msg("failed to marshal frame")
		return false
	}

	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.Send <- data:
		return true
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("connection send buffer full, closing connection")
		c.closeWith(websocket.CloseTryAgainLater, "too slow, reconnect to resync")
		return false
	}
}

// closeWith stops the connection once. The write pump sends the close frame.
func (c *Connection) closeWith(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.closed)
		c.cancel()
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		c.Manager.unregisterConnection(c)
	})
}

// watch ends the connection when its subscription is dropped by the channel.
func (c *Connection) watch() {
	select {
	case <-c.sub.Done():
		switch err := c.sub.Err(); err {
		case nil:
		case broadcast.ErrClosed:
			c.closeWith(websocket.CloseNormalClosure, "live session ended")
		default:
			c.closeWith(websocket.CloseTryAgainLater, "too slow, reconnect to resync")
		}
	case <-c.closed:
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.closeWith(websocket.CloseNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.Send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-c.closed:
			c.drain()
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeText))
			return

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// drain flushes frames queued before the connection was closed.
func (c *Connection) drain() {
	for {
		select {
		case message := <-c.Send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer c.closeWith(websocket.CloseNormalClosure, "")

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage submits an intent frame. The outcome goes back to this
// connection only; the committed events reach everyone through the channel.
func (c *Connection) handleClientMessage(message []byte) {
	raw, in, err := intent.Parse(message)
	if err != nil {
		c.sendFrame(rejectionFrame(raw.RequestID, err))
		return
	}

	submitter := c.Manager.backend.Submitter
	if submitter == nil {
		c.sendFrame(rejectionFrame(raw.RequestID, ErrReadOnly))
		return
	}

	principal := c.Manager.backend.Entitlements.Principal(c.UserID)
	if err := intent.Authorize(principal, in); err != nil {
		c.sendFrame(rejectionFrame(raw.RequestID, err))
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.Manager.config.SubmitTimeout)
	defer cancel()
	result, err := submitter.Submit(ctx, c.AuctionID, in)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Str("intent", in.Name()).
			Msg("intent rejected")
		c.sendFrame(rejectionFrame(raw.RequestID, err))
		return
	}
	c.sendFrame(ackFrame(raw.RequestID, in.Name(), result))
}
