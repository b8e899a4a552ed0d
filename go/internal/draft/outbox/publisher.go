package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int           // Number of replicas for the stream
	DuplicateWindow time.Duration // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFT_EVENTS",
		SubjectPrefix:   "draft.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour, // 7 days
		MaxMsgs:         -1,                 // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// JetStreamPublisher publishes outbox events to a JetStream stream. The
// event id doubles as the message id so redeliveries inside the duplicate
// window are dropped by the server.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
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

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := streamConfig(p.config)

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	msg, err := buildMsg(p.config.SubjectPrefix, event)
	if err != nil {
		return err
	}

	ack, err := p.js.PublishMsg(ctx, msg,
		jetstream.WithMsgID(event.ID.String()),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Info().
		Str("subject", msg.Subject).
		Str("event_id", event.ID.String()).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")
	return nil
}

// Connected reports whether the NATS connection is up.
func (p *JetStreamPublisher) Connected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func buildMsg(prefix string, event OutboxEvent) (*nats.Msg, error) {
	data, err := json.Marshal(event.Envelope())
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &nats.Msg{
		Subject: fmt.Sprintf("%s.%s.%s", prefix, event.DraftID, event.EventType),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{event.EventType},
			"Draft-ID":   []string{event.DraftID.String()},
			"Event-ID":   []string{event.ID.String()},
		},
	}, nil
}

func streamConfig(cfg JetStreamConfig) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Draft event stream for outbox pattern",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
