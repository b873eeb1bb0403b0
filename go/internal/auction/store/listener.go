package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
)

type ListenerConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // How often to check the connection is alive
	SubmitTimeout time.Duration // Max time to wait for a session to accept a change
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "auction_roster_changes",
		PingInterval:  90 * time.Second,
		SubmitTimeout: 5 * time.Second,
	}
}

// Submitter is what the listener needs from the session registry.
type Submitter interface {
	Submit(ctx context.Context, auctionID uuid.UUID, intent coordinator.Intent) (coordinator.Result, error)
}

// ChangeKind is the roster change an admin action made.
type ChangeKind string

const (
	ChangeRelist  ChangeKind = "relist"
	ChangeRelease ChangeKind = "release"
)

// RosterChange is the JSON payload sent by notify_auction_roster_change.
type RosterChange struct {
	AuctionID uuid.UUID           `json:"auction_id"`
	Kind      ChangeKind          `json:"kind"`
	PlayerID  uuid.UUID           `json:"player_id"`
	TeamID    *uuid.UUID          `json:"team_id"`
	Refund    decimal.NullDecimal `json:"refund"`
}

// DecodeRosterChange parses a notification payload.
func DecodeRosterChange(extra string) (RosterChange, error) {
	var c RosterChange
	if err := json.Unmarshal([]byte(extra), &c); err != nil {
		return RosterChange{}, fmt.Errorf("invalid roster change payload: %w", err)
	}
	if c.AuctionID == uuid.Nil || c.PlayerID == uuid.Nil {
		return RosterChange{}, errors.New("roster change is missing auction_id or player_id")
	}
	return c, nil
}

// Intent converts the change into the coordinator intent that mirrors it.
func (c RosterChange) Intent() (coordinator.Intent, error) {
	switch c.Kind {
	case ChangeRelist:
		return coordinator.RelistPlayer{PlayerID: c.PlayerID}, nil
	case ChangeRelease:
		in := coordinator.ReleasePlayer{PlayerID: c.PlayerID, Refund: c.Refund}
		if c.TeamID != nil {
			in.TeamID = *c.TeamID
		}
		return in, nil
	default:
		return nil, fmt.Errorf("unknown roster change kind %q", c.Kind)
	}
}

// RosterListener follows roster changes made outside the live session and
// forwards them to the session of the affected auction, if one is running.
// Auctions without a session pick the change up from the store on start.
type RosterListener struct {
	listener  *pq.Listener
	submitter Submitter
	cfg       ListenerConfig
}

func NewRosterListener(submitter Submitter, cfg ListenerConfig) (*RosterListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("roster listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for roster changes")

	return &RosterListener{
		listener:  l,
		submitter: submitter,
		cfg:       cfg,
	}, nil
}

// Start blocks until ctx is done.
func (l *RosterListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(l.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("roster listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was re-established, notifications sent meanwhile are lost
				log.Warn().Msg("roster listener reconnected")
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle roster change")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping roster listener")
			}
		}
	}
}

func (l *RosterListener) Stop() error {
	return l.listener.Close()
}

func (l *RosterListener) handleNotification(ctx context.Context, extra string) error {
	return forward(ctx, l.submitter, l.cfg.SubmitTimeout, extra)
}

func forward(ctx context.Context, submitter Submitter, timeout time.Duration, extra string) error {
	change, err := DecodeRosterChange(extra)
	if err != nil {
		return err
	}
	in, err := change.Intent()
	if err != nil {
		return err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err = submitter.Submit(ctx, change.AuctionID, in)
	if errors.Is(err, coordinator.ErrNoSession) {
		log.Debug().
			Str("auction_id", change.AuctionID.String()).
			Str("kind", string(change.Kind)).
			Msg("no live session for roster change")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply %s of player %s: %w", change.Kind, change.PlayerID, err)
	}

	log.Info().
		Str("auction_id", change.AuctionID.String()).
		Str("player_id", change.PlayerID.String()).
		Str("kind", string(change.Kind)).
		Msg("applied roster change")
	return nil
}
