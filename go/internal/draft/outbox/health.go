package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus struct {
	Healthy           bool            `json:"healthy"`
	LastEventTime     time.Time       `json:"last_event_time"`
	EventsProcessed   uint64          `json:"events_processed"`
	PendingEvents     int             `json:"pending_events"`
	DatabaseConnected bool            `json:"database_connected"`
	BusConnected      bool            `json:"bus_connected"`
	ListenerActive    bool            `json:"listener_active"`
	Metrics           MetricsSnapshot `json:"metrics"`
	Errors            []string        `json:"errors"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker reports on the relay: database, bus and listener.
type HealthChecker struct {
	db        Pinger
	pending   func(ctx context.Context) (int, error)
	listener  *Listener
	bus       interface{ Connected() bool }
	metrics   *CountingMetrics
	threshold time.Duration // How long without events before unhealthy
}

func NewHealthChecker(db Pinger, pending func(ctx context.Context) (int, error), listener *Listener, bus interface{ Connected() bool }, metrics *CountingMetrics, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		db:        db,
		pending:   pending,
		listener:  listener,
		bus:       bus,
		metrics:   metrics,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if h.listener != nil {
		status.EventsProcessed, status.LastEventTime = h.listener.Stats()
		status.ListenerActive = h.listener.Running()
		if !status.ListenerActive {
			status.Healthy = false
			status.Errors = append(status.Errors, "listener not active")
		}
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.bus != nil {
		status.BusConnected = h.bus.Connected()
		if !status.BusConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if status.DatabaseConnected && h.pending != nil {
		pending, err := h.pending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > 1000 {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		if since := time.Since(status.LastEventTime); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	if h.metrics != nil {
		status.Metrics = h.metrics.Snapshot()
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
