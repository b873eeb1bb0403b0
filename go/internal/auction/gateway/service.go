package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the auction gateway: WebSocket streaming, snapshot routes and,
// on relays, the JetStream consumer feeding them.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	eventConsumer     *EventConsumer
	relay             *Relay
}

// Config holds configuration for a relay gateway
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for a relay gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates the gateway of the authoritative auction server.
func NewService(config ConnectionConfig, backend Backend) *Service {
	connectionManager := NewConnectionManager(config, backend)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(backend.State),
	}
}

// NewRelayService creates a read-only gateway fed from JetStream.
func NewRelayService(config Config, relay *Relay) (*Service, error) {
	eventConsumer, err := NewEventConsumer(relay, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	s := NewService(config.ConnectionConfig, Backend{Channels: relay, State: relay})
	s.eventConsumer = eventConsumer
	s.relay = relay
	return s, nil
}

// Start begins the gateway service and blocks until ctx is done
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.relay != nil).Msg("starting auction gateway service")

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("auction gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	s.connectionManager.CloseAll()
	if s.relay != nil {
		s.relay.Close()
	}

	log.Info().Msg("auction gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("auction gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

// ConsumerInfo reports the relay's JetStream consumer, nil when not relaying.
func (s *Service) ConsumerInfo(ctx context.Context) (map[string]interface{}, error) {
	if s.eventConsumer == nil {
		return nil, nil
	}
	info, err := s.eventConsumer.GetConsumerInfo(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"stream":          info.Stream,
		"consumer":        info.Name,
		"num_pending":     info.NumPending,
		"num_ack_pending": info.NumAckPending,
		"redelivered":     info.NumRedelivered,
	}, nil
}
