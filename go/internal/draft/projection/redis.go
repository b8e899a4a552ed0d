// Package projection keeps a Redis copy of each draft for readers in other
// processes.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/redis/go-redis/v9"
)

func stateKey(draftID uuid.UUID) string { return fmt.Sprintf("draft:%s:state", draftID) }
func picksKey(draftID uuid.UUID) string { return fmt.Sprintf("draft:%s:picks", draftID) }

const activeKey = "drafts:active"

// Redis is an events.Sink that writes each event's effect in one MULTI/EXEC.
// Picks are stored by overall pick so replayed events overwrite themselves.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a projection whose keys expire ttl after the last event.
// A zero ttl keeps them forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Publish implements events.Sink.
func (r *Redis) Publish(ctx context.Context, evt events.Envelope) error {
	pipe := r.client.TxPipeline()
	state := stateKey(evt.DraftID)

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
		pipe.HSet(ctx, state,
			"status", string(models.DraftStatusInProgress),
			"team_order", string(order),
			"total_picks", p.TotalPicks,
			"current_pick", 1,
			"started_at", p.StartedAt.Format(time.RFC3339Nano),
		)
		pipe.SAdd(ctx, activeKey, evt.DraftID.String())

	case events.EventTypePickStarted:
		var p events.PickStartedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		pipe.HSet(ctx, state,
			"current_pick", p.OverallPick,
			"current_team", p.TeamID,
			"deadline", p.TimeoutAt.Format(time.RFC3339Nano),
		)

	case events.EventTypePickMade:
		pipe.HSet(ctx, picksKey(evt.DraftID), pickField(evt), string(evt.Payload))
		pipe.HDel(ctx, state, "deadline")

	case events.EventTypeDraftCompleted:
		var p events.DraftCompletedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		pipe.HSet(ctx, state,
			"status", string(models.DraftStatusCompleted),
			"completed_at", p.CompletedAt.Format(time.RFC3339Nano),
		)
		pipe.HDel(ctx, state, "deadline", "current_team")
		pipe.SRem(ctx, activeKey, evt.DraftID.String())

	case events.EventTypeDraftHalted:
		var p events.DraftHaltedPayload
		if err := evt.Decode(&p); err != nil {
			return err
		}
		pipe.HSet(ctx, state, "halted", 1, "halt_reason", p.Reason)
		pipe.HDel(ctx, state, "deadline")
		pipe.SRem(ctx, activeKey, evt.DraftID.String())

	default:
		return nil
	}

	pipe.HSet(ctx, state, "last_event_id", evt.EventID.String(), "last_sequence", evt.Sequence)
	if r.ttl > 0 {
		pipe.Expire(ctx, state, r.ttl)
		pipe.Expire(ctx, picksKey(evt.DraftID), r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to project %s: %w", evt.EventType, err)
	}
	return nil
}

// State returns the projected draft state fields.
func (r *Redis) State(ctx context.Context, draftID uuid.UUID) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, stateKey(draftID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read draft state: %w", err)
	}
	return fields, nil
}

// ActiveDrafts returns the drafts that have started and neither completed
// nor halted.
func (r *Redis) ActiveDrafts(ctx context.Context) ([]uuid.UUID, error) {
	members, err := r.client.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active drafts: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Picks returns the projected picks in overall pick order.
func (r *Redis) Picks(ctx context.Context, draftID uuid.UUID) ([]events.PickMadePayload, error) {
	raw, err := r.client.HGetAll(ctx, picksKey(draftID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read draft picks: %w", err)
	}

	picks := make([]events.PickMadePayload, 0, len(raw))
	for field, v := range raw {
		var p events.PickMadePayload
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("failed to decode pick %s: %w", field, err)
		}
		picks = append(picks, p)
	}
	sort.Slice(picks, func(i, j int) bool { return picks[i].OverallPick < picks[j].OverallPick })
	return picks, nil
}

func pickField(evt events.Envelope) string {
	var p events.PickMadePayload
	if err := evt.Decode(&p); err != nil {
		return evt.EventID.String()
	}
	return strconv.Itoa(p.OverallPick)
}
