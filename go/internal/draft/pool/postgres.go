package pool

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// PostgresPool reads pools from draft_pool. A player is available while no
// row in draft_picks claims it, so the pool is exactly as current as the
// persisted picks.
type PostgresPool struct {
	db *pgxpool.Pool
}

func NewPostgresPool(db *pgxpool.Pool) *PostgresPool {
	return &PostgresPool{db: db}
}

const listAvailablePlayers = `
SELECT p.id, p.external_id, p.full_name, p.position, COALESCE(p.rank, 0), p.created_at
FROM draft_pool dp
JOIN players p ON p.id = dp.player_id
WHERE dp.draft_id = $1
  AND NOT EXISTS (
    SELECT 1 FROM draft_picks pk
    WHERE pk.draft_id = dp.draft_id AND pk.player_id = dp.player_id
  )
ORDER BY p.rank NULLS LAST, p.full_name
`

// ListAvailablePlayers implements engine.PlayerPool.
func (p *PostgresPool) ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	players, err := p.AvailablePlayers(ctx, draftID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(players))
	for i, pl := range players {
		ids[i] = pl.ID
	}
	return ids, nil
}

// AvailablePlayers returns the undrafted players of a draft in rank order.
func (p *PostgresPool) AvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error) {
	rows, err := p.db.Query(ctx, listAvailablePlayers, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list available players: %w", err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Player, error) {
		var pl models.Player
		err := row.Scan(&pl.ID, &pl.ExternalID, &pl.FullName, &pl.Position, &pl.Rank, &pl.CreatedAt)
		return pl, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan available players: %w", err)
	}
	return players, nil
}

// Register upserts players and attaches them to a draft's pool.
func (p *PostgresPool) Register(ctx context.Context, draftID uuid.UUID, players []models.Player) error {
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, pl := range players {
			var rank *int
			if pl.Rank > 0 {
				r := pl.Rank
				rank = &r
			}
			externalID := pl.ExternalID
			if externalID == "" {
				externalID = pl.ID.String()
			}
			batch.Queue(`
				INSERT INTO players (id, external_id, full_name, position, rank)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE SET rank = EXCLUDED.rank
			`, pl.ID, externalID, pl.FullName, pl.Position, rank)
			batch.Queue(`
				INSERT INTO draft_pool (draft_id, player_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, draftID, pl.ID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to register players: %w", err)
		}

		log.Info().
			Str("draft_id", draftID.String()).
			Int("players", len(players)).
			Msg("registered draft pool")
		return nil
	})
}
