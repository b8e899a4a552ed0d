package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pickMadeEnvelope(t *testing.T) events.Envelope {
	t.Helper()
	evt, err := events.NewEnvelope(events.EventTypePickMade, uuid.New(), time.Now().UTC(), events.PickMadePayload{
		TeamID:      uuid.NewString(),
		PlayerID:    uuid.NewString(),
		Round:       1,
		Pick:        3,
		OverallPick: 3,
		Auto:        true,
	})
	require.NoError(t, err)
	evt.Sequence = 9
	return evt
}

func TestOutboxEvent_KeepsEnvelopeIdentity(t *testing.T) {
	evt := pickMadeEnvelope(t)
	row := FromEnvelope(evt)

	assert.Equal(t, evt.EventID, row.ID)
	assert.Equal(t, int64(9), row.Sequence)
	assert.Equal(t, evt, row.Envelope())
}

func TestBuildMsg(t *testing.T) {
	evt := pickMadeEnvelope(t)
	row := FromEnvelope(evt)

	msg, err := buildMsg("draft.events", row)
	require.NoError(t, err)
	assert.Equal(t, "draft.events."+evt.DraftID.String()+".PickMade", msg.Subject)
	assert.Equal(t, evt.EventID.String(), msg.Header.Get("Event-ID"))
	assert.Equal(t, "PickMade", msg.Header.Get("Event-Type"))

	var got events.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, evt.EventID, got.EventID)

	var payload events.PickMadePayload
	require.NoError(t, got.Decode(&payload))
	assert.True(t, payload.Auto)
	assert.Equal(t, 3, payload.OverallPick)
}

func TestStreamConfigCoversPrefix(t *testing.T) {
	sc := streamConfig(DefaultJetStreamConfig())
	assert.Equal(t, []string{"draft.events.>"}, sc.Subjects)
	assert.True(t, isStreamConfigEqual(sc, sc))
}

func TestPublishWithRetry(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		metrics := NewCountingMetrics()
		calls := 0
		err := PublishWithRetry(context.Background(), 3, time.Millisecond, metrics, "PickMade", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("bus unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)

		snap := metrics.Snapshot()
		assert.Equal(t, int64(3), snap.PublishAttempts)
		assert.Equal(t, int64(2), snap.FailedAttempts)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		calls := 0
		err := PublishWithRetry(context.Background(), 2, time.Millisecond, &NoOpMetricsCollector{}, "PickMade", func(context.Context) error {
			calls++
			return errors.New("bus unavailable")
		})
		require.ErrorContains(t, err, "publish failed after 3 attempts")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := PublishWithRetry(ctx, 5, time.Hour, &NoOpMetricsCollector{}, "PickMade", func(context.Context) error {
			cancel()
			return errors.New("bus unavailable")
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

type publisherFunc func(ctx context.Context, event OutboxEvent) error

func (f publisherFunc) Publish(ctx context.Context, event OutboxEvent) error { return f(ctx, event) }

func TestMetricPublisher(t *testing.T) {
	metrics := NewCountingMetrics()
	fail := true
	p := NewMetricPublisher(publisherFunc(func(context.Context, OutboxEvent) error {
		if fail {
			return errors.New("nope")
		}
		return nil
	}), metrics)

	row := FromEnvelope(pickMadeEnvelope(t))
	require.Error(t, p.Publish(context.Background(), row))
	fail = false
	require.NoError(t, p.Publish(context.Background(), row))

	assert.Equal(t, EventCounts{Succeeded: 1, Failed: 1}, metrics.Snapshot().Events["PickMade"])
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

type busState bool

func (b busState) Connected() bool { return bool(b) }

func TestHealthChecker(t *testing.T) {
	pending := func(context.Context) (int, error) { return 4, nil }

	healthy := NewHealthChecker(pingerFunc(func(context.Context) error { return nil }), pending, nil, busState(true), NewCountingMetrics(), time.Minute)
	status := healthy.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, 4, status.PendingEvents)
	assert.Empty(t, status.Errors)

	down := NewHealthChecker(pingerFunc(func(context.Context) error { return errors.New("refused") }), pending, nil, busState(false), nil, time.Minute)
	rec := httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/outbox", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Healthy)
	assert.False(t, body.DatabaseConnected)
	assert.Len(t, body.Errors, 2)
}
