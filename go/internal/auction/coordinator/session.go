package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/go/internal/auction/events"
)

// SessionConfig tunes the session actor.
type SessionConfig struct {
	MailboxSize    int
	PublishTimeout time.Duration
}

// DefaultSessionConfig returns sensible defaults
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MailboxSize:    256,
		PublishTimeout: 5 * time.Second,
	}
}

// Result is what an accepted intent produced. When PublishErr is set the
// events are committed but some viewers may have missed them and should
// refetch the snapshot.
type Result struct {
	Events     []events.Event
	PublishErr error
}

type request struct {
	ctx      context.Context
	intent   Intent
	snapshot bool
	reply    chan response
}

type response struct {
	result   Result
	snapshot events.Snapshot
	err      error
}

// Session is the single writer for one auction. Each intent is validated,
// persisted, applied and published before the next one is taken from the
// mailbox.
type Session struct {
	coord     *Coordinator
	publisher Publisher
	config    SessionConfig

	mailbox chan request
	done    chan struct{}
	stopped chan struct{}

	lifecycle sync.Mutex
	running   bool
	closed    bool
}

// NewSession wraps coord. Call Start before submitting.
func NewSession(coord *Coordinator, publisher Publisher, cfg SessionConfig) *Session {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = DefaultSessionConfig().MailboxSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultSessionConfig().PublishTimeout
	}
	return &Session{
		coord:     coord,
		publisher: publisher,
		config:    cfg,
		mailbox:   make(chan request, cfg.MailboxSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start runs the actor goroutine. Starting a stopped session does nothing.
func (s *Session) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.running || s.closed {
		return
	}
	s.running = true
	go s.run()
	log.Info().Str("auction_id", s.coord.AuctionID().String()).Msg("live session started")
}

// Stop finishes the intent in progress and stops the actor. Queued intents
// are answered with ErrSessionClosed. Stopping a session that never started
// returns at once.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	first := !s.closed
	if first {
		s.closed = true
		close(s.done)
		if !s.running {
			close(s.stopped)
		}
	}
	s.lifecycle.Unlock()

	<-s.stopped
	if first {
		log.Info().Str("auction_id", s.coord.AuctionID().String()).Msg("live session stopped")
	}
}

// AuctionID returns the auction this session drives.
func (s *Session) AuctionID() uuid.UUID {
	return s.coord.AuctionID()
}

// Submit queues intent and waits for its result. If ctx ends after the intent
// was queued the intent may still be applied in full; it is never applied in
// part.
func (s *Session) Submit(ctx context.Context, intent Intent) (Result, error) {
	resp, err := s.call(ctx, request{ctx: ctx, intent: intent})
	return resp.result, err
}

// Snapshot returns the state after every previously accepted intent. Its
// Sequence is the sequence of the last published event.
func (s *Session) Snapshot(ctx context.Context) (events.Snapshot, error) {
	resp, err := s.call(ctx, request{ctx: ctx, snapshot: true})
	return resp.snapshot, err
}

func (s *Session) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)

	select {
	case <-s.done:
		return response{}, ErrSessionClosed
	default:
	}

	select {
	case s.mailbox <- req:
	case <-s.done:
		return response{}, ErrSessionClosed
	case <-ctx.Done():
		return response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, resp.err
	case <-s.stopped:
		select {
		case resp := <-req.reply:
			return resp, resp.err
		default:
			return response{}, ErrSessionClosed
		}
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case req := <-s.mailbox:
			req.reply <- s.handle(req)
		}
	}
}

func (s *Session) handle(req request) response {
	if req.snapshot {
		return response{snapshot: s.coord.Snapshot()}
	}
	if err := req.ctx.Err(); err != nil {
		return response{err: err}
	}

	// Once validation starts the intent runs to completion.
	ctx := context.WithoutCancel(req.ctx)
	auctionID := s.coord.AuctionID().String()

	out, err := s.coord.apply(ctx, req.intent)
	if err != nil {
		logRejection(auctionID, req.intent, err)
		return response{err: err}
	}

	result := Result{Events: out.events}
	result.PublishErr = s.publish(ctx, out.events)

	if out.advance {
		if result.PublishErr != nil {
			log.Warn().
				Str("auction_id", auctionID).
				Str("player_id", out.sold.String()).
				Msg("sale not acknowledged by broadcast, skipping auto-advance")
		} else {
			next, err := s.coord.Advance(out.sold)
			if err != nil {
				log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to auto-select next player")
			} else {
				result.Events = append(result.Events, next...)
				result.PublishErr = s.publish(ctx, next)
			}
		}
	}

	log.Info().
		Str("auction_id", auctionID).
		Str("intent", req.intent.Name()).
		Int("events", len(result.Events)).
		Uint64("sequence", s.coord.Sequence()).
		Msg("intent applied")
	return response{result: result}
}

// publish sends every event even if an earlier one failed and returns the
// first failure.
func (s *Session) publish(ctx context.Context, evs []events.Event) error {
	if s.publisher == nil {
		return nil
	}
	var first error
	for _, ev := range evs {
		pctx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
		err := s.publisher.Publish(pctx, ev)
		cancel()
		if err != nil {
			log.Error().Err(err).
				Str("auction_id", ev.AuctionID.String()).
				Str("event_type", string(ev.Type)).
				Uint64("sequence", ev.Sequence).
				Msg("failed to publish event")
			if first == nil {
				first = wrap(ErrPublishFailed, err)
			}
		}
	}
	return first
}

func logRejection(auctionID string, intent Intent, err error) {
	name := "unknown"
	if intent != nil {
		name = intent.Name()
	}
	if r, ok := AsRejection(err); ok && r.Kind != KindTransport {
		log.Debug().
			Str("auction_id", auctionID).
			Str("intent", name).
			Str("kind", string(r.Kind)).
			Str("reason", string(r.Reason)).
			Msg(r.Message)
		return
	}
	log.Error().Err(err).
		Str("auction_id", auctionID).
		Str("intent", name).
		Msg("intent failed")
}
