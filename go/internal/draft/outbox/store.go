package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

// Store is the persistence collaborator of the draft engine. Each event
// updates the draft projection and lands in the outbox in one transaction.
type Store struct {
	db            *sql.DB
	notifyChannel string
}

// NewStore creates a Store that announces new outbox rows on notifyChannel.
func NewStore(db *sql.DB, notifyChannel string) *Store {
	return &Store{
		db:            db,
		notifyChannel: notifyChannel,
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqlutil.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Publish implements events.Sink. Replays of an already stored event are
// absorbed by the ON CONFLICT clauses.
func (s *Store) Publish(ctx context.Context, evt events.Envelope) error {
	err := sqlutil.Run(ctx, s.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		if err := applyProjection(ctx, q, evt); err != nil {
			return fmt.Errorf("failed to apply %s: %w", evt.EventType, err)
		}

		inserted, err := q.InsertOutboxEvent(ctx, FromEnvelope(evt))
		if err != nil {
			return fmt.Errorf("failed to insert %s outbox event: %w", evt.EventType, err)
		}
		if !inserted {
			return nil
		}
		if err := q.NotifyOutbox(ctx, s.notifyChannel, evt.EventID); err != nil {
			return fmt.Errorf("failed to notify outbox: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("draft_id", evt.DraftID.String()).
		Str("event_type", evt.EventType).
		Str("event_id", evt.EventID.String()).
		Msg("outbox event stored")
	return nil
}

// Pending returns the number of outbox rows not yet relayed.
func (s *Store) Pending(ctx context.Context) (int, error) {
	return New(s.db).CountUnsentOutbox(ctx)
}

func applyProjection(ctx context.Context, q *Queries, evt events.Envelope) error {
	switch evt.EventType {
	case events.EventTypeDraftStarted:
		var p events.DraftStartedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		order, err := json.Marshal(p.TeamOrder)
		if err != nil {
			return fmt.Errorf("marshal team order: %w", err)
		}
		return q.UpsertDraftStarted(ctx, UpsertDraftStartedParams{
			ID:         evt.DraftID,
			TeamOrder:  pqtype.NullRawMessage{RawMessage: order, Valid: len(p.TeamOrder) > 0},
			TotalPicks: int32(p.TotalPicks),
			StartedAt:  p.StartedAt,
		})

	case events.EventTypePickStarted:
		var p events.PickStartedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		return q.UpdatePickStarted(ctx, evt.DraftID, int32(p.OverallPick), sqlutil.ToSqlTime(p.TimeoutAt))

	case events.EventTypePickMade:
		var p events.PickMadePayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		teamID, err := uuid.Parse(p.TeamID)
		if err != nil {
			return fmt.Errorf("invalid team ID: %w", err)
		}
		playerID, err := uuid.Parse(p.PlayerID)
		if err != nil {
			return fmt.Errorf("invalid player ID: %w", err)
		}
		return q.InsertDraftPick(ctx, InsertDraftPickParams{
			DraftID:     evt.DraftID,
			OverallPick: int32(p.OverallPick),
			Round:       int32(p.Round),
			Pick:        int32(p.Pick),
			TeamID:      teamID,
			PlayerID:    playerID,
			Auto:        p.Auto,
			PickedAt:    p.MadeAt,
		})

	case events.EventTypeDraftCompleted:
		var p events.DraftCompletedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		return q.CompleteDraft(ctx, evt.DraftID, sqlutil.ToSqlTime(p.CompletedAt))

	case events.EventTypeDraftHalted:
		var p events.DraftHaltedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		return q.HaltDraft(ctx, evt.DraftID, sqlutil.ToSqlString(p.Reason))

	default:
		log.Warn().
			Str("event_type", evt.EventType).
			Str("draft_id", evt.DraftID.String()).
			Msg("unknown event type - storing without projection")
		return nil
	}
}
