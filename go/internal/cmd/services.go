package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/gavel/go/internal/auction/api"
	"github.com/mcdev12/gavel/go/internal/auction/broadcast"
	"github.com/mcdev12/gavel/go/internal/auction/coordinator"
	"github.com/mcdev12/gavel/go/internal/auction/gateway"
	"github.com/mcdev12/gavel/go/internal/auction/intent"
	"github.com/mcdev12/gavel/go/internal/auction/store"
	"github.com/mcdev12/gavel/go/internal/dbconfig"
)

type Services struct {
	Registry *coordinator.Registry
	Bidding  *api.Service
	Gateway  *gateway.Service
	Listener *store.RosterListener      // nil unless enabled
	Mirror   *broadcast.JetStreamMirror // nil unless enabled
}

func setupServices(database *sql.DB, dbConfig dbconfig.Config, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository → Registry → transport services

	repo := store.NewRepository(database)

	var sinks []broadcast.Sink
	var mirror *broadcast.JetStreamMirror
	if config.NATS.Enabled {
		jsConfig := broadcast.DefaultJetStreamConfig()
		jsConfig.URL = config.NATS.URL
		jsConfig.StreamName = config.NATS.StreamName
		jsConfig.SubjectPrefix = config.NATS.SubjectPrefix

		m, err := broadcast.NewJetStreamMirror(jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event mirror: %w", err)
		}
		mirror = m
		sinks = append(sinks, mirror)
	}

	registry := coordinator.NewRegistry(repo, coordinator.RegistryConfig{
		Coordinator: coordinator.Config{
			Clock:     clockwork.NewRealClock(),
			Selector:  coordinator.NewRandomSelector(config.Session.RandomSeed),
			Recorder:  repo,
			UndoReset: coordinator.UndoReset(config.Session.UndoReset),
		},
		Session: coordinator.SessionConfig{
			MailboxSize:    config.Session.MailboxSize,
			PublishTimeout: config.Session.PublishTimeout,
		},
		Channel: broadcast.Config{QueueSize: config.Session.QueueSize},
	}, sinks...)

	entitlements := intent.NewEntitlements(config.Entitlements.Premium)

	connConfig := gateway.DefaultConnectionConfig()
	connConfig.SendBufferSize = config.Gateway.SendBufferSize
	connConfig.SubmitTimeout = config.Gateway.SubmitTimeout
	connConfig.SnapshotTimeout = config.Gateway.SnapshotTimeout

	services := &Services{
		Registry: registry,
		Bidding:  api.NewService(registry, entitlements),
		Gateway: gateway.NewService(connConfig, gateway.Backend{
			Channels:     registry,
			State:        registry,
			Submitter:    registry,
			Entitlements: entitlements,
		}),
		Mirror: mirror,
	}

	if config.Listener.Enabled {
		listenerConfig := store.DefaultListenerConfig()
		listenerConfig.DatabaseURL = dbConfig.WithApplicationName(dbConfig.ApplicationName + "-roster-listener").DSN()
		listenerConfig.NotifyChannel = config.Listener.Channel

		listener, err := store.NewRosterListener(registry, listenerConfig)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to create roster listener: %w", err)
		}
		services.Listener = listener
	}

	return services, nil
}

// Close ends every live session and releases the external connections.
func (s *Services) Close() {
	if s.Listener != nil {
		s.Listener.Stop()
	}
	s.Gateway.Stop()
	s.Registry.Close()
	if s.Mirror != nil {
		s.Mirror.Close()
	}
}
