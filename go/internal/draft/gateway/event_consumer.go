package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamConsumerConfig holds configuration for the JetStream consumer
type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultJetStreamConsumerConfig returns default JetStream consumer configuration
func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "DRAFT_EVENTS",
		ConsumerName:  "draft-gateway",
		SubjectFilter: "draft.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer feeds the connection manager from the draft event stream
// when the gateway runs apart from the orchestrator.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	js                jetstream.JetStream
	consumer          jetstream.Consumer
	config            JetStreamConsumerConfig
}

// NewEventConsumer connects to NATS and creates or reuses the durable consumer.
func NewEventConsumer(ctx context.Context, cm *ConnectionManager, config JetStreamConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		js:                js,
		config:            config,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err == nil {
		log.Info().
			Str("consumer", ec.config.ConsumerName).
			Str("stream", ec.config.StreamName).
			Msg("using existing JetStream consumer")
		ec.consumer = consumer
		return nil
	}

	// Live updates only; reconnecting clients fetch a state snapshot.
	consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Draft gateway WebSocket consumer",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("created JetStream consumer")

	ec.consumer = consumer
	return nil
}

// Start consumes until ctx is done.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := ec.processMessage(msg.Data()); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process message")
				// Malformed envelopes will never decode; drop them.
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to TERM message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (ec *EventConsumer) processMessage(data []byte) error {
	var evt events.Envelope
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	log.Debug().
		Str("event_id", evt.EventID.String()).
		Str("draft_id", evt.DraftID.String()).
		Str("event_type", evt.EventType).
		Msg("processing JetStream event")

	ec.connectionManager.Broadcast(evt)
	return nil
}

// Stop closes the NATS connection.
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
