package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus defines the status of a draft.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// DraftSettings holds the configuration fixed when a draft is created.
type DraftSettings struct {
	Rounds         int         `json:"rounds"`
	TimePerPickSec int         `json:"time_per_pick_sec"`
	Snake          bool        `json:"snake"`
	RandomizeOrder bool        `json:"randomize_order,omitempty"`
	ComputerTeams  []uuid.UUID `json:"computer_teams,omitempty"`
}

// PickDuration returns the per-pick time limit.
func (s DraftSettings) PickDuration() time.Duration {
	return time.Duration(s.TimePerPickSec) * time.Second
}

// Draft represents a draft instance.
type Draft struct {
	ID                 uuid.UUID     `json:"id"`
	LeagueID           uuid.UUID     `json:"league_id"`
	Status             DraftStatus   `json:"status"`
	Settings           DraftSettings `json:"settings"`
	TeamOrder          []uuid.UUID   `json:"team_order"`
	CurrentOverallPick int           `json:"current_overall_pick"`
	Picks              []DraftPick   `json:"picks"`
	Halted             bool          `json:"halted,omitempty"`
	HaltReason         string        `json:"halt_reason,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// TotalPicks is the number of picks needed to complete the draft.
func (d *Draft) TotalPicks() int {
	return len(d.TeamOrder) * d.Settings.Rounds
}

// IsComputerTeam reports whether teamID is controlled by the engine.
func (d *Draft) IsComputerTeam(teamID uuid.UUID) bool {
	for _, id := range d.Settings.ComputerTeams {
		if id == teamID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to readers outside the draft loop.
func (d *Draft) Clone() *Draft {
	out := *d
	out.TeamOrder = append([]uuid.UUID(nil), d.TeamOrder...)
	out.Picks = append([]DraftPick(nil), d.Picks...)
	out.Settings.ComputerTeams = append([]uuid.UUID(nil), d.Settings.ComputerTeams...)
	if d.StartedAt != nil {
		t := *d.StartedAt
		out.StartedAt = &t
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
