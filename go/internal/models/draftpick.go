package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftPick represents a single committed pick in a draft.
type DraftPick struct {
	DraftID     uuid.UUID `json:"draft_id"`
	Round       int       `json:"round"`
	Pick        int       `json:"pick"`         // pick number in the round
	OverallPick int       `json:"overall_pick"` // pick number overall
	TeamID      uuid.UUID `json:"team_id"`
	PlayerID    uuid.UUID `json:"player_id"`
	PickedAt    time.Time `json:"picked_at"`
	Auto        bool      `json:"auto"` // made by the engine rather than the team
}
