package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is an entry in a draft's player pool.
type Player struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"external_id"`
	FullName   string    `json:"full_name"`
	Position   string    `json:"position"`
	Rank       int       `json:"rank"` // consensus rank, 0 when unranked
	CreatedAt  time.Time `json:"created_at"`
}
