package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener relays outbox rows to a Publisher as they are notified, with a
// periodic sweep for anything a notification missed.
type Listener struct {
	queries   *Queries
	listener  *pq.Listener
	publisher Publisher
	metrics   MetricsCollector
	cfg       ListenerConfig

	mu        sync.Mutex
	running   bool
	processed uint64
	lastEvent time.Time
}

func NewListener(dbConn *sql.DB, publisher Publisher, metrics MetricsCollector, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	if metrics == nil {
		metrics = &NoOpMetricsCollector{}
	}
	return &Listener{
		queries:   New(dbConn),
		listener:  l,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	l.setRunning(true)
	defer l.setRunning(false)

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// rows written while the relay was down
	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent events")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was re-established, notifications may have been lost
				if err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// Stats returns the number of relayed events and when the last one went out.
func (l *Listener) Stats() (uint64, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed, l.lastEvent
}

// Running reports whether Start is looping.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Listener) setRunning(v bool) {
	l.mu.Lock()
	l.running = v
	l.mu.Unlock()
}

// handleNotification handles a pg listen notification. Extra is the outbox row id.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := l.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// already relayed by the fallback sweep
			return nil
		}
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}

	return l.relay(ctx, event)
}

// processUnsent relays unsent rows in creation order.
func (l *Listener) processUnsent(ctx context.Context) error {
	start := time.Now()
	unsent, err := l.queries.FetchUnsentOutbox(ctx, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	l.metrics.RecordOutboxLag(len(unsent))

	for _, event := range unsent {
		if err := l.relay(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to relay event")
			continue
		}
	}
	l.metrics.RecordBatchProcessed(len(unsent), time.Since(start))
	return nil
}

func (l *Listener) relay(ctx context.Context, event OutboxEvent) error {
	if err := l.publishWithRetry(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := l.queries.MarkOutboxSent(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}

	l.mu.Lock()
	l.processed++
	l.lastEvent = time.Now()
	l.mu.Unlock()

	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry attempts to publish an outbox event with a given retry delay and max retries.
func (l *Listener) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	return PublishWithRetry(ctx, l.cfg.MaxRetries, l.cfg.RetryDelay, l.metrics, event.EventType, func(ctx context.Context) error {
		return l.publisher.Publish(ctx, event)
	})
}

// PublishWithRetry calls publish up to maxRetries+1 times with a linearly
// growing delay between attempts.
func PublishWithRetry(
	ctx context.Context,
	maxRetries int,
	retryDelay time.Duration,
	metrics MetricsCollector,
	eventType string,
	publish func(context.Context) error,
) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := publish(ctx)
		metrics.RecordPublishAttempt(eventType, attempt+1, err == nil)
		if err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_type", eventType).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_type", eventType).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", maxRetries+1, lastErr)
}
