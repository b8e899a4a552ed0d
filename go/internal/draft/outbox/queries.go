package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the statements for the draft projection and outbox tables.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const upsertDraftStarted = `
INSERT INTO drafts (id, status, team_order, total_picks, current_pick, started_at, updated_at)
VALUES ($1, 'IN_PROGRESS', $2, $3, 1, $4, now())
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    team_order = EXCLUDED.team_order,
    total_picks = EXCLUDED.total_picks,
    current_pick = GREATEST(drafts.current_pick, 1),
    started_at = EXCLUDED.started_at,
    updated_at = now()
`

type UpsertDraftStartedParams struct {
	ID         uuid.UUID
	TeamOrder  pqtype.NullRawMessage
	TotalPicks int32
	StartedAt  time.Time
}

func (q *Queries) UpsertDraftStarted(ctx context.Context, arg UpsertDraftStartedParams) error {
	_, err := q.db.ExecContext(ctx, upsertDraftStarted, arg.ID, arg.TeamOrder, arg.TotalPicks, arg.StartedAt)
	return err
}

const updatePickStarted = `
UPDATE drafts
SET current_pick = $2, next_deadline = $3, updated_at = now()
WHERE id = $1 AND current_pick <= $2
`

func (q *Queries) UpdatePickStarted(ctx context.Context, draftID uuid.UUID, overallPick int32, deadline sql.NullTime) error {
	_, err := q.db.ExecContext(ctx, updatePickStarted, draftID, overallPick, deadline)
	return err
}

const insertDraftPick = `
INSERT INTO draft_picks (draft_id, overall_pick, round, pick, team_id, player_id, auto, picked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (draft_id, overall_pick) DO NOTHING
`

type InsertDraftPickParams struct {
	DraftID     uuid.UUID
	OverallPick int32
	Round       int32
	Pick        int32
	TeamID      uuid.UUID
	PlayerID    uuid.UUID
	Auto        bool
	PickedAt    time.Time
}

func (q *Queries) InsertDraftPick(ctx context.Context, arg InsertDraftPickParams) error {
	_, err := q.db.ExecContext(ctx, insertDraftPick,
		arg.DraftID, arg.OverallPick, arg.Round, arg.Pick, arg.TeamID, arg.PlayerID, arg.Auto, arg.PickedAt)
	return err
}

const completeDraft = `
UPDATE drafts
SET status = 'COMPLETED', completed_at = $2, current_pick = total_picks + 1, next_deadline = NULL, updated_at = now()
WHERE id = $1
`

func (q *Queries) CompleteDraft(ctx context.Context, draftID uuid.UUID, completedAt sql.NullTime) error {
	_, err := q.db.ExecContext(ctx, completeDraft, draftID, completedAt)
	return err
}

const haltDraft = `
UPDATE drafts
SET halted = TRUE, halt_reason = $2, next_deadline = NULL, updated_at = now()
WHERE id = $1
`

func (q *Queries) HaltDraft(ctx context.Context, draftID uuid.UUID, reason sql.NullString) error {
	_, err := q.db.ExecContext(ctx, haltDraft, draftID, reason)
	return err
}

const insertOutboxEvent = `
INSERT INTO draft_outbox (id, draft_id, event_type, sequence, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING
`

// InsertOutboxEvent reports whether a new row was written.
func (q *Queries) InsertOutboxEvent(ctx context.Context, e OutboxEvent) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertOutboxEvent,
		e.ID, e.DraftID, e.EventType, e.Sequence, []byte(e.Payload), e.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const notifyOutbox = `SELECT pg_notify($1, $2)`

func (q *Queries) NotifyOutbox(ctx context.Context, channel string, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, notifyOutbox, channel, id.String())
	return err
}

const fetchUnsentOutbox = `
SELECT id, draft_id, event_type, sequence, payload, created_at
FROM draft_outbox
WHERE sent_at IS NULL
ORDER BY created_at, sequence
LIMIT $1
`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.DraftID, &e.EventType, &e.Sequence, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const fetchOutboxByID = `
SELECT id, draft_id, event_type, sequence, payload, created_at
FROM draft_outbox
WHERE id = $1 AND sent_at IS NULL
`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (OutboxEvent, error) {
	var e OutboxEvent
	var payload []byte
	err := q.db.QueryRowContext(ctx, fetchOutboxByID, id).
		Scan(&e.ID, &e.DraftID, &e.EventType, &e.Sequence, &payload, &e.CreatedAt)
	e.Payload = payload
	return e, err
}

const markOutboxSent = `UPDATE draft_outbox SET sent_at = now() WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}

const countUnsentOutbox = `SELECT COUNT(*) FROM draft_outbox WHERE sent_at IS NULL`

func (q *Queries) CountUnsentOutbox(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, countUnsentOutbox).Scan(&n)
	return n, err
}
