package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/outbox"
	"github.com/rs/zerolog/log"
)

// dispatcher moves a draft's events off the command loop. Emit never blocks;
// run delivers events in commit order to subscribers and then to the sink.
type dispatcher struct {
	o       *Orchestrator
	draftID uuid.UUID

	mu      sync.Mutex
	queue   []events.Envelope
	subs    map[uint64]chan events.Envelope
	nextSub uint64
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newDispatcher(o *Orchestrator, draftID uuid.UUID) *dispatcher {
	return &dispatcher{
		o:       o,
		draftID: draftID,
		subs:    make(map[uint64]chan events.Envelope),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Emit queues evt for delivery.
func (d *dispatcher) Emit(evt events.Envelope) {
	d.mu.Lock()
	d.queue = append(d.queue, evt)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer d.o.wg.Done()

	for {
		select {
		case <-d.wake:
			d.drain(context.Background())
		case <-d.done:
			ctx, cancel := context.WithTimeout(context.Background(), d.o.cfg.FlushTimeout)
			d.drain(ctx)
			cancel()
			d.closeSubscribers()
			return
		}
	}
}

// stop asks run to flush what is queued and exit.
func (d *dispatcher) stop() {
	close(d.done)
}

func (d *dispatcher) drain(ctx context.Context) {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, evt := range batch {
			d.fanout(evt)
			d.publish(ctx, evt)
		}
	}
}

func (d *dispatcher) fanout(evt events.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, ch := range d.subs {
		select {
		case ch <- evt:
		default:
			close(ch)
			delete(d.subs, id)
			log.Warn().
				Str("draft_id", d.draftID.String()).
				Uint64("subscriber", id).
				Msg("dropping slow subscriber")
		}
	}
}

// publish retries each sink on its own, so one failing sink never causes a
// redelivery to the others.
func (d *dispatcher) publish(ctx context.Context, evt events.Envelope) {
	start := time.Now()
	failed := 0
	for _, sink := range d.o.sinks {
		err := outbox.PublishWithRetry(ctx, d.o.cfg.SinkMaxRetries, d.o.cfg.SinkRetryDelay, d.o.metrics, evt.EventType,
			func(ctx context.Context) error {
				return sink.Publish(ctx, evt)
			})
		if err != nil {
			failed++
			log.Error().
				Err(err).
				Str("draft_id", d.draftID.String()).
				Str("event_id", evt.EventID.String()).
				Str("event_type", evt.EventType).
				Int64("sequence", evt.Sequence).
				Msg("failed to publish draft event")
		}
	}
	d.o.metrics.RecordEventProcessed(evt.EventType, failed == 0, time.Since(start))
}

func (d *dispatcher) subscribe(buffer int) (<-chan events.Envelope, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ch := make(chan events.Envelope, buffer)
	if d.closed {
		close(ch)
		return ch, func() {}
	}

	id := d.nextSub
	d.nextSub++
	d.subs[id] = ch

	return ch, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if c, ok := d.subs[id]; ok {
			close(c)
			delete(d.subs, id)
		}
	}
}

func (d *dispatcher) closeSubscribers() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for id, ch := range d.subs {
		close(ch)
		delete(d.subs, id)
	}
}
