package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Service is the draft gateway: WebSocket event streams and state snapshots.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	eventConsumer     *EventConsumer
}

// Config holds configuration for the draft gateway service. A nil JetStream
// config means events arrive through Sink from an in-process orchestrator.
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  *JetStreamConsumerConfig
}

// DefaultConfig returns default configuration for the draft gateway
func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// NewService creates a new draft gateway service
func NewService(ctx context.Context, config Config, provider StateProvider, clock clockwork.Clock) (*Service, error) {
	cm := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, provider),
		stateHandler:      NewStateHandler(provider, clock),
	}

	if config.JetStreamConfig != nil {
		consumer, err := NewEventConsumer(ctx, cm, *config.JetStreamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create event consumer: %w", err)
		}
		s.eventConsumer = consumer
	}
	return s, nil
}

// Sink receives events to push to connected clients.
func (s *Service) Sink() events.Sink {
	return s.connectionManager
}

// Start runs the gateway until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	<-ctx.Done()

	log.Info().Msg("draft gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("draft gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("draft gateway routes registered")
}

// Stats returns statistics about open connections.
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.Stats()
}
