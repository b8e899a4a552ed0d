package gateway

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
)

// recentPicksLimit caps the pick history returned with a state snapshot.
const recentPicksLimit = 10

// DraftStateResponse represents the complete state of a draft
type DraftStateResponse struct {
	DraftID        string           `json:"draft_id"`
	LeagueID       string           `json:"league_id,omitempty"`
	Status         string           `json:"status"`
	TeamOrder      []string         `json:"team_order,omitempty"`
	CurrentPick    *CurrentPickInfo `json:"current_pick,omitempty"`
	RecentPicks    []RecentPickInfo `json:"recent_picks"`
	TimeRemaining  *int             `json:"time_remaining_sec,omitempty"`
	TotalPicks     int              `json:"total_picks"`
	CompletedPicks int              `json:"completed_picks"`
	Halted         bool             `json:"halted,omitempty"`
	HaltReason     string           `json:"halt_reason,omitempty"`
}

// CurrentPickInfo represents the current pick on the clock
type CurrentPickInfo struct {
	TeamID      string     `json:"team_id"`
	Round       int        `json:"round,omitempty"`
	Pick        int        `json:"pick,omitempty"`
	OverallPick int        `json:"overall_pick"`
	TimeoutAt   *time.Time `json:"timeout_at,omitempty"`
	TimePerPick int        `json:"time_per_pick_sec,omitempty"`
}

// RecentPickInfo represents a recently made pick
type RecentPickInfo struct {
	TeamID      string    `json:"team_id"`
	PlayerID    string    `json:"player_id"`
	Round       int       `json:"round"`
	Pick        int       `json:"pick"`
	OverallPick int       `json:"overall_pick"`
	MadeAt      time.Time `json:"made_at"`
	Auto        bool      `json:"auto,omitempty"`
}

// DraftSummary represents a summary of an active draft
type DraftSummary struct {
	DraftID      string     `json:"draft_id"`
	LeagueID     string     `json:"league_id,omitempty"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CurrentRound int        `json:"current_round"`
	CurrentPick  int        `json:"current_pick"`
	TotalTeams   int        `json:"total_teams"`
	TotalRounds  int        `json:"total_rounds"`
	Halted       bool       `json:"halted,omitempty"`
}

// setTimeRemaining fills TimeRemaining from the current pick's deadline.
func (r *DraftStateResponse) setTimeRemaining(now time.Time) {
	r.TimeRemaining = nil
	if r.CurrentPick == nil || r.CurrentPick.TimeoutAt == nil || r.Halted {
		return
	}
	remaining := int(r.CurrentPick.TimeoutAt.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	r.TimeRemaining = &remaining
}

func stateResponseFromEngine(st engine.State) *DraftStateResponse {
	d := st.Draft
	resp := &DraftStateResponse{
		DraftID:        d.ID.String(),
		Status:         string(d.Status),
		TeamOrder:      uuidStrings(d.TeamOrder),
		RecentPicks:    recentPicks(d.Picks),
		TotalPicks:     d.TotalPicks(),
		CompletedPicks: len(d.Picks),
		Halted:         d.Halted,
		HaltReason:     d.HaltReason,
	}
	if d.LeagueID != uuid.Nil {
		resp.LeagueID = d.LeagueID.String()
	}
	if st.CurrentTurn != nil && st.CurrentTeamID != nil {
		resp.CurrentPick = &CurrentPickInfo{
			TeamID:      st.CurrentTeamID.String(),
			Round:       st.CurrentTurn.Round,
			Pick:        st.CurrentTurn.PickInRound,
			OverallPick: d.CurrentOverallPick,
			TimeoutAt:   st.Deadline,
			TimePerPick: d.Settings.TimePerPickSec,
		}
	}
	return resp
}

func summaryFromEngine(st engine.State) DraftSummary {
	d := st.Draft
	s := DraftSummary{
		DraftID:     d.ID.String(),
		Status:      string(d.Status),
		StartedAt:   d.StartedAt,
		CurrentPick: d.CurrentOverallPick,
		TotalTeams:  len(d.TeamOrder),
		TotalRounds: d.Settings.Rounds,
		Halted:      d.Halted,
	}
	if d.LeagueID != uuid.Nil {
		s.LeagueID = d.LeagueID.String()
	}
	if st.CurrentTurn != nil {
		s.CurrentRound = st.CurrentTurn.Round
	}
	return s
}

// stateResponseFromProjection rebuilds a snapshot from the Redis projection
// hash and its picks.
func stateResponseFromProjection(draftID uuid.UUID, fields map[string]string, picks []events.PickMadePayload) *DraftStateResponse {
	resp := &DraftStateResponse{
		DraftID:        draftID.String(),
		Status:         fields["status"],
		TeamOrder:      projectedTeamOrder(fields),
		TotalPicks:     atoi(fields["total_picks"]),
		CompletedPicks: len(picks),
		Halted:         fields["halted"] == "1",
		HaltReason:     fields["halt_reason"],
	}
	if resp.Status == "" {
		resp.Status = string(models.DraftStatusNotStarted)
	}

	if team := fields["current_team"]; team != "" && resp.Status == string(models.DraftStatusInProgress) {
		resp.CurrentPick = &CurrentPickInfo{
			TeamID:      team,
			OverallPick: atoi(fields["current_pick"]),
		}
		if deadline, err := time.Parse(time.RFC3339Nano, fields["deadline"]); err == nil {
			resp.CurrentPick.TimeoutAt = &deadline
		}
	}

	start := 0
	if len(picks) > recentPicksLimit {
		start = len(picks) - recentPicksLimit
	}
	resp.RecentPicks = make([]RecentPickInfo, 0, len(picks)-start)
	for _, p := range picks[start:] {
		resp.RecentPicks = append(resp.RecentPicks, RecentPickInfo{
			TeamID:      p.TeamID,
			PlayerID:    p.PlayerID,
			Round:       p.Round,
			Pick:        p.Pick,
			OverallPick: p.OverallPick,
			MadeAt:      p.MadeAt,
			Auto:        p.Auto,
		})
	}
	return resp
}

func summaryFromProjection(draftID uuid.UUID, fields map[string]string) DraftSummary {
	s := DraftSummary{
		DraftID:     draftID.String(),
		Status:      fields["status"],
		CurrentPick: atoi(fields["current_pick"]),
		TotalTeams:  len(projectedTeamOrder(fields)),
		Halted:      fields["halted"] == "1",
	}
	if started, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
		s.StartedAt = &started
	}
	if s.TotalTeams > 0 {
		s.TotalRounds = atoi(fields["total_picks"]) / s.TotalTeams
		if s.CurrentPick > 0 {
			s.CurrentRound = (s.CurrentPick-1)/s.TotalTeams + 1
		}
	}
	return s
}

func projectedTeamOrder(fields map[string]string) []string {
	var order []string
	if raw := fields["team_order"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &order)
	}
	return order
}

func recentPicks(picks []models.DraftPick) []RecentPickInfo {
	start := 0
	if len(picks) > recentPicksLimit {
		start = len(picks) - recentPicksLimit
	}
	out := make([]RecentPickInfo, 0, len(picks)-start)
	for _, p := range picks[start:] {
		out = append(out, RecentPickInfo{
			TeamID:      p.TeamID.String(),
			PlayerID:    p.PlayerID.String(),
			Round:       p.Round,
			Pick:        p.Pick,
			OverallPick: p.OverallPick,
			MadeAt:      p.PickedAt,
			Auto:        p.Auto,
		})
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
