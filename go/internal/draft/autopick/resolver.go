package autopick

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// Request is what a Recommender sees when asked for a pick.
type Request struct {
	DraftID   uuid.UUID
	TeamID    uuid.UUID
	Round     int
	Available []uuid.UUID
}

// Recommender chooses a player for a team. Its answer is a hint: the
// resolver re-validates it before anything is submitted.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (uuid.UUID, error)
}

// Resolver chooses players for forced picks.
type Resolver struct {
	pool        engine.PlayerPool
	recommender Recommender
}

// NewResolver creates a Resolver that asks rec and falls back to the first
// available player when the recommendation is unusable.
func NewResolver(pool engine.PlayerPool, rec Recommender) *Resolver {
	return &Resolver{
		pool:        pool,
		recommender: rec,
	}
}

// Resolve lists the pool for job's draft and chooses a player for it.
func (r *Resolver) Resolve(ctx context.Context, job engine.ForcedPick) (uuid.UUID, error) {
	listed, err := r.pool.ListAvailablePlayers(ctx, job.DraftID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("list players: %w", err)
	}

	drafted := make(map[uuid.UUID]bool, len(job.Drafted))
	for _, id := range job.Drafted {
		drafted[id] = true
	}
	available := make([]uuid.UUID, 0, len(listed))
	for _, id := range listed {
		if !drafted[id] {
			available = append(available, id)
		}
	}

	return r.ChoosePlayer(ctx, job.DraftID, job.TeamID, available, job.Round)
}

// ChoosePlayer returns a member of available, preferring the recommender's
// choice. It fails with engine.ErrResolverExhausted only when available is
// empty.
func (r *Resolver) ChoosePlayer(ctx context.Context, draftID, teamID uuid.UUID, available []uuid.UUID, round int) (uuid.UUID, error) {
	if len(available) == 0 {
		return uuid.Nil, fmt.Errorf("%w: no available players for team %s", engine.ErrResolverExhausted, teamID)
	}

	hint, err := r.recommender.Recommend(ctx, Request{
		DraftID:   draftID,
		TeamID:    teamID,
		Round:     round,
		Available: available,
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("draft_id", draftID.String()).
			Str("team_id", teamID.String()).
			Msg("recommendation failed, using first available player")
		return available[0], nil
	}

	for _, id := range available {
		if id == hint {
			log.Info().
				Str("draft_id", draftID.String()).
				Str("team_id", teamID.String()).
				Str("player_id", hint.String()).
				Msg("auto-pick chose player")
			return hint, nil
		}
	}

	log.Warn().
		Str("draft_id", draftID.String()).
		Str("player_id", hint.String()).
		Msg("recommended player is not available, using first available player")
	return available[0], nil
}
