package projection

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProjection(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl), s
}

func envelope(t *testing.T, draftID uuid.UUID, eventType string, seq int64, payload any) events.Envelope {
	t.Helper()
	evt, err := events.NewEnvelope(eventType, draftID, time.Now().UTC(), payload)
	require.NoError(t, err)
	evt.Sequence = seq
	return evt
}

func TestRedis_ProjectsDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	r, _ := newProjection(t, 0)
	draftID := uuid.New()
	team := uuid.NewString()
	now := time.Now().UTC()

	stream := []events.Envelope{
		envelope(t, draftID, events.EventTypeDraftStarted, 1, events.DraftStartedPayload{
			DraftID: draftID.String(), TeamOrder: []string{team}, TotalPicks: 2, StartedAt: now,
		}),
		envelope(t, draftID, events.EventTypePickStarted, 2, events.PickStartedPayload{
			TeamID: team, OverallPick: 1, TimeoutAt: now.Add(5 * time.Second),
		}),
		envelope(t, draftID, events.EventTypePickMade, 3, events.PickMadePayload{
			TeamID: team, PlayerID: uuid.NewString(), OverallPick: 1, Round: 1, Pick: 1,
		}),
		envelope(t, draftID, events.EventTypePickStarted, 4, events.PickStartedPayload{
			TeamID: team, OverallPick: 2, TimeoutAt: now.Add(10 * time.Second),
		}),
	}
	for _, evt := range stream {
		require.NoError(t, r.Publish(ctx, evt))
	}

	state, err := r.State(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", state["status"])
	assert.Equal(t, "2", state["current_pick"])
	assert.Equal(t, team, state["current_team"])
	assert.NotEmpty(t, state["deadline"])
	assert.Equal(t, "4", state["last_sequence"])

	active, err := r.ActiveDrafts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{draftID}, active)

	auto := envelope(t, draftID, events.EventTypePickMade, 5, events.PickMadePayload{
		TeamID: team, PlayerID: uuid.NewString(), OverallPick: 2, Round: 2, Pick: 1, Auto: true,
	})
	require.NoError(t, r.Publish(ctx, auto))
	// at-least-once delivery: the replay must not duplicate the pick
	require.NoError(t, r.Publish(ctx, auto))
	require.NoError(t, r.Publish(ctx, envelope(t, draftID, events.EventTypeDraftCompleted, 6, events.DraftCompletedPayload{
		DraftID: draftID.String(), CompletedAt: now, TotalPicks: 2,
	})))

	picks, err := r.Picks(ctx, draftID)
	require.NoError(t, err)
	require.Len(t, picks, 2)
	assert.Equal(t, 1, picks[0].OverallPick)
	assert.True(t, picks[1].Auto)

	state, err = r.State(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", state["status"])
	assert.NotContains(t, state, "deadline")
	assert.NotContains(t, state, "current_team")

	active, err = r.ActiveDrafts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRedis_Halted(t *testing.T) {
	ctx := context.Background()
	r, _ := newProjection(t, 0)
	draftID := uuid.New()

	require.NoError(t, r.Publish(ctx, envelope(t, draftID, events.EventTypeDraftStarted, 1, events.DraftStartedPayload{
		DraftID: draftID.String(), TeamOrder: []string{uuid.NewString()}, TotalPicks: 1, StartedAt: time.Now().UTC(),
	})))
	active, err := r.ActiveDrafts(ctx)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{draftID}, active)

	require.NoError(t, r.Publish(ctx, envelope(t, draftID, events.EventTypeDraftHalted, 2, events.DraftHaltedPayload{
		DraftID: draftID.String(), OverallPick: 7, Reason: "auto-pick resolver exhausted",
	})))

	state, err := r.State(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, "1", state["halted"])
	assert.Equal(t, "auto-pick resolver exhausted", state["halt_reason"])

	active, err = r.ActiveDrafts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRedis_KeysExpire(t *testing.T) {
	ctx := context.Background()
	r, s := newProjection(t, time.Hour)
	draftID := uuid.New()

	require.NoError(t, r.Publish(ctx, envelope(t, draftID, events.EventTypePickMade, 1, events.PickMadePayload{
		TeamID: uuid.NewString(), PlayerID: uuid.NewString(), OverallPick: 1,
	})))
	assert.Equal(t, time.Hour, s.TTL(picksKey(draftID)))

	s.FastForward(2 * time.Hour)
	picks, err := r.Picks(ctx, draftID)
	require.NoError(t, err)
	assert.Empty(t, picks)
}
