package outbox

import (
	"context"
	"sync"
	"time"
)

// MetricsCollector defines the interface for collecting outbox metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordBatchProcessed(count int, duration time.Duration)
	RecordOutboxLag(lag int)
	RecordPublishAttempt(eventType string, attempt int, success bool)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
}
func (n *NoOpMetricsCollector) RecordBatchProcessed(count int, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordOutboxLag(lag int)                                {}
func (n *NoOpMetricsCollector) RecordPublishAttempt(eventType string, attempt int, success bool) {
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	start := time.Now()
	err := p.publisher.Publish(ctx, event)
	p.metrics.RecordEventProcessed(event.EventType, err == nil, time.Since(start))
	return err
}

// EventCounts are per event type totals.
type EventCounts struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// MetricsSnapshot is a point-in-time copy of CountingMetrics.
type MetricsSnapshot struct {
	Events          map[string]EventCounts `json:"events"`
	PublishAttempts int64                  `json:"publish_attempts"`
	FailedAttempts  int64                  `json:"failed_attempts"`
	Batches         int64                  `json:"batches"`
	OutboxLag       int                    `json:"outbox_lag"`
}

// CountingMetrics keeps in-process totals, served by the health endpoint.
type CountingMetrics struct {
	mu   sync.Mutex
	snap MetricsSnapshot
}

func NewCountingMetrics() *CountingMetrics {
	return &CountingMetrics{snap: MetricsSnapshot{Events: make(map[string]EventCounts)}}
}

func (m *CountingMetrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.snap.Events[eventType]
	if success {
		c.Succeeded++
	} else {
		c.Failed++
	}
	m.snap.Events[eventType] = c
}

func (m *CountingMetrics) RecordBatchProcessed(count int, duration time.Duration) {
	m.mu.Lock()
	m.snap.Batches++
	m.mu.Unlock()
}

func (m *CountingMetrics) RecordOutboxLag(lag int) {
	m.mu.Lock()
	m.snap.OutboxLag = lag
	m.mu.Unlock()
}

func (m *CountingMetrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.PublishAttempts++
	if !success {
		m.snap.FailedAttempts++
	}
}

// Snapshot returns a copy of the current totals.
func (m *CountingMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.snap
	out.Events = make(map[string]EventCounts, len(m.snap.Events))
	for k, v := range m.snap.Events {
		out.Events[k] = v
	}
	return out
}
