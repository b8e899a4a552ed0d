package pool

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPool_RankOrderAndDrafting(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPool()
	draftID := uuid.New()

	unranked := models.Player{ID: uuid.New(), FullName: "Depth Guy"}
	second := models.Player{ID: uuid.New(), FullName: "Second", Rank: 2}
	first := models.Player{ID: uuid.New(), FullName: "First", Rank: 1}
	require.NoError(t, p.Register(ctx, draftID, []models.Player{unranked, second, first}))
	require.NoError(t, p.Register(ctx, draftID, []models.Player{first}))

	ids, err := p.ListAvailablePlayers(ctx, draftID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, unranked.ID}, ids)
	assert.Equal(t, 2, p.Rank(second.ID))

	evt, err := events.NewEnvelope(events.EventTypePickMade, draftID, time.Now(), events.PickMadePayload{
		TeamID:   uuid.NewString(),
		PlayerID: first.ID.String(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, evt))

	players, err := p.AvailablePlayers(ctx, draftID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, "Second", players[0].FullName)

	// other drafts are unaffected
	other := uuid.New()
	require.NoError(t, p.Register(ctx, other, []models.Player{first}))
	ids, err = p.ListAvailablePlayers(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID}, ids)
}

func TestMemoryPool_IgnoresOtherEvents(t *testing.T) {
	p := NewMemoryPool()
	evt, err := events.NewEnvelope(events.EventTypePickStarted, uuid.New(), time.Now(), events.PickStartedPayload{})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), evt))
}

func TestMemoryPool_RejectsMissingID(t *testing.T) {
	p := NewMemoryPool()
	err := p.Register(context.Background(), uuid.New(), []models.Player{{FullName: "Nobody"}})
	require.Error(t, err)
}

func TestMemoryPool_CancelledContext(t *testing.T) {
	p := NewMemoryPool()
	draftID := uuid.New()
	require.NoError(t, p.Register(context.Background(), draftID, []models.Player{{ID: uuid.New(), FullName: "Any"}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ListAvailablePlayers(ctx, draftID)
	require.ErrorIs(t, err, context.Canceled)
	players, err := p.AvailablePlayers(ctx, draftID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, players)
}
