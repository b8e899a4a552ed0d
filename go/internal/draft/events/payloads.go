package events

import (
	"time"
)

// Event types emitted by the draft engine.
const (
	EventTypeDraftStarted   = "DraftStarted"
	EventTypePickStarted    = "PickStarted"
	EventTypePickMade       = "PickMade"
	EventTypeDraftCompleted = "DraftCompleted"
	EventTypeDraftHalted    = "DraftHalted"
)

// DraftStartedPayload is the payload for a DraftStarted event
type DraftStartedPayload struct {
	DraftID     string    `json:"draft_id"`
	TeamOrder   []string  `json:"team_order"`
	Snake       bool      `json:"snake"`
	StartedAt   time.Time `json:"started_at"`
	TotalRounds int       `json:"total_rounds"`
	TotalPicks  int       `json:"total_picks"`
}

// PickStartedPayload is the payload for a PickStarted event. It lets a UI
// render the countdown without owning the deadline.
type PickStartedPayload struct {
	TeamID         string    `json:"team_id"`
	Round          int       `json:"round"`
	Pick           int       `json:"pick"`
	OverallPick    int       `json:"overall_pick"`
	StartedAt      time.Time `json:"started_at"`
	TimeoutAt      time.Time `json:"timeout_at"`
	TimePerPickSec int       `json:"time_per_pick_sec"`
}

// PickMadePayload is the payload for a PickMade event
type PickMadePayload struct {
	TeamID      string    `json:"team_id"`
	PlayerID    string    `json:"player_id"`
	Round       int       `json:"round"`
	Pick        int       `json:"pick"`
	OverallPick int       `json:"overall_pick"`
	MadeAt      time.Time `json:"made_at"`
	Auto        bool      `json:"auto"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event
type DraftCompletedPayload struct {
	DraftID     string    `json:"draft_id"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
	TotalPicks  int       `json:"total_picks"`
}

// DraftHaltedPayload is the payload for a DraftHalted event. A halted draft
// keeps its status but accepts no further picks.
type DraftHaltedPayload struct {
	DraftID     string    `json:"draft_id"`
	OverallPick int       `json:"overall_pick"`
	Reason      string    `json:"reason"`
	HaltedAt    time.Time `json:"halted_at"`
}
