// Package broadcast fans committed auction events out to subscribers. There is
// one Channel per live auction session and the session is its only publisher,
// so every subscriber observes the same order.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/events"
)

var (
	// ErrClosed is returned after the channel has been torn down.
	ErrClosed = errors.New("broadcast channel closed")
	// ErrSlowSubscriber is the reason a subscription was dropped for not keeping up.
	ErrSlowSubscriber = errors.New("subscriber queue full")
	// ErrTransport wraps sink delivery failures.
	ErrTransport = errors.New("broadcast transport failure")
)

// Handler is invoked once per delivered event, in publish order.
type Handler func(events.Event)

// Sink receives every published event after local fan-out, e.g. a durable
// mirror for relay gateways.
type Sink interface {
	Deliver(ctx context.Context, event events.Event) error
}

// Config tunes a channel.
type Config struct {
	// QueueSize is the per-subscription buffer. A subscriber whose queue is
	// full when an event is published is dropped.
	QueueSize int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

// Stats is a point in time view of a channel.
type Stats struct {
	AuctionID     string `json:"auction_id"`
	Subscriptions int    `json:"subscriptions"`
	Published     uint64 `json:"published"`
	Dropped       uint64 `json:"dropped"`
}

// Channel is the authoritative publisher for one auction.
type Channel struct {
	auctionID uuid.UUID
	config    Config
	sinks     []Sink

	mu        sync.Mutex
	subs      map[string]map[uint64]*Subscription
	nextID    uint64
	closed    bool
	published uint64
	dropped   uint64
}

// NewChannel creates the channel for auctionID.
func NewChannel(auctionID uuid.UUID, cfg Config, sinks ...Sink) *Channel {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return &Channel{
		auctionID: auctionID,
		config:    cfg,
		sinks:     sinks,
		subs:      make(map[string]map[uint64]*Subscription),
	}
}

// AuctionID returns the auction this channel serves.
func (c *Channel) AuctionID() uuid.UUID {
	return c.auctionID
}

// Subscribe registers handler for topic. Past events are not replayed.
func (c *Channel) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, errors.New("nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	c.nextID++
	sub := &Subscription{
		id:      c.nextID,
		topic:   topic,
		channel: c,
		queue:   make(chan events.Event, c.config.QueueSize),
		handler: handler,
		done:    make(chan struct{}),
	}
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[uint64]*Subscription)
	}
	c.subs[topic][sub.id] = sub
	go sub.run()

	log.Debug().
		Str("auction_id", c.auctionID.String()).
		Str("topic", topic).
		Uint64("subscription_id", sub.id).
		Msg("subscribed")
	return sub, nil
}

// Publish delivers event to the auction topic and, for status changes, to the
// player topic. Local subscribers never block the publisher. A sink failure is
// returned wrapped in ErrTransport after local delivery has happened.
func (c *Channel) Publish(ctx context.Context, event events.Event) error {
	if event.AuctionID != c.auctionID {
		return fmt.Errorf("event for auction %s published on channel %s", event.AuctionID, c.auctionID)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.published++
	c.fanOut(events.AuctionTopic(event.AuctionID), event)
	if event.Type.StatusChange() && event.PlayerID != uuid.Nil {
		c.fanOut(events.PlayerTopic(event.AuctionID, event.PlayerID), event)
	}
	c.mu.Unlock()

	var errs []error
	for _, sink := range c.sinks {
		if err := sink.Deliver(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrTransport, errors.Join(errs...))
	}
	return nil
}

// fanOut must be called with c.mu held.
func (c *Channel) fanOut(topic string, event events.Event) {
	for id, sub := range c.subs[topic] {
		select {
		case sub.queue <- event:
		default:
			delete(c.subs[topic], id)
			c.dropped++
			sub.stop(ErrSlowSubscriber)
			log.Warn().
				Str("auction_id", c.auctionID.String()).
				Str("topic", topic).
				Uint64("subscription_id", id).
				Uint64("sequence", event.Sequence).
				Msg("dropping slow subscriber")
		}
	}
}

func (c *Channel) remove(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if subs, ok := c.subs[sub.topic]; ok {
		delete(subs, sub.id)
		if len(subs) == 0 {
			delete(c.subs, sub.topic)
		}
	}
}

// Close stops every subscription. Publish and Subscribe fail afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for topic, subs := range c.subs {
		for _, sub := range subs {
			sub.stop(ErrClosed)
		}
		delete(c.subs, topic)
	}
}

// Stats returns channel statistics.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, subs := range c.subs {
		n += len(subs)
	}
	return Stats{
		AuctionID:     c.auctionID.String(),
		Subscriptions: n,
		Published:     c.published,
		Dropped:       c.dropped,
	}
}

// Subscription is one handler registered on a topic.
type Subscription struct {
	id      uint64
	topic   string
	channel *Channel
	queue   chan events.Event
	handler Handler
	done    chan struct{}

	stopOnce sync.Once
	errMu    sync.Mutex
	err      error
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Done is closed once the handler will not be called again.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended, nil if Unsubscribe was called.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Unsubscribe stops delivery. Events already queued may still be handled.
func (s *Subscription) Unsubscribe() {
	s.channel.remove(s)
	s.stop(nil)
}

func (s *Subscription) stop(reason error) {
	s.stopOnce.Do(func() {
		s.errMu.Lock()
		s.err = reason
		s.errMu.Unlock()
		close(s.queue)
	})
}

func (s *Subscription) run() {
	defer close(s.done)
	for event := range s.queue {
		s.handler(event)
	}
}
