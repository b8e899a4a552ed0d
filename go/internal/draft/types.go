package draft

import (
	"time"

	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
)

// Request and response messages for DraftService. They travel as JSON.

type CreateDraftRequest struct {
	DraftID        string        `json:"draft_id,omitempty"`
	LeagueID       string        `json:"league_id,omitempty"`
	TeamOrder      []string      `json:"team_order"`
	Rounds         int           `json:"rounds"`
	TimePerPickSec int           `json:"time_per_pick_sec"`
	Snake          bool          `json:"snake"`
	RandomizeOrder bool          `json:"randomize_order,omitempty"`
	ComputerTeams  []string      `json:"computer_teams,omitempty"`
	Players        []PlayerEntry `json:"players,omitempty"`
}

type CreateDraftResponse struct {
	Draft DraftState `json:"draft"`
}

type StartDraftRequest struct {
	DraftID string `json:"draft_id"`
}

type StartDraftResponse struct {
	Draft DraftState `json:"draft"`
}

// MakePickRequest submits a pick. OverallPick pins the submission to one turn
// so a late request cannot land on the next team's pick; zero means the
// current pick.
type MakePickRequest struct {
	DraftID     string `json:"draft_id"`
	TeamID      string `json:"team_id"`
	PlayerID    string `json:"player_id"`
	OverallPick int    `json:"overall_pick,omitempty"`
}

type MakePickResponse struct {
	Pick models.DraftPick `json:"pick"`
}

type GetDraftStateRequest struct {
	DraftID string `json:"draft_id"`
}

type GetDraftStateResponse struct {
	Draft DraftState `json:"draft"`
}

type ListAvailablePlayersRequest struct {
	DraftID string `json:"draft_id"`
	Limit   int    `json:"limit,omitempty"`
}

type ListAvailablePlayersResponse struct {
	Players []PlayerEntry `json:"players"`
}

// PlayerEntry is a player in a draft's pool.
type PlayerEntry struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	FullName   string `json:"full_name"`
	Position   string `json:"position,omitempty"`
	Rank       int    `json:"rank,omitempty"`
}

// DraftState is the wire form of engine.State.
type DraftState struct {
	Draft          *models.Draft `json:"draft"`
	CurrentTurn    *TurnInfo     `json:"current_turn,omitempty"`
	Deadline       *time.Time    `json:"deadline,omitempty"`
	RemainingPicks int           `json:"remaining_picks"`
}

// TurnInfo identifies the pick on the clock.
type TurnInfo struct {
	Round       int    `json:"round"`
	PickInRound int    `json:"pick_in_round"`
	OverallPick int    `json:"overall_pick"`
	TeamID      string `json:"team_id"`
}

func draftStateFromEngine(st engine.State) DraftState {
	out := DraftState{
		Draft:          st.Draft,
		Deadline:       st.Deadline,
		RemainingPicks: st.RemainingPicks,
	}
	if st.CurrentTurn != nil && st.CurrentTeamID != nil {
		out.CurrentTurn = &TurnInfo{
			Round:       st.CurrentTurn.Round,
			PickInRound: st.CurrentTurn.PickInRound,
			OverallPick: st.Draft.CurrentOverallPick,
			TeamID:      st.CurrentTeamID.String(),
		}
	}
	return out
}

func playerEntry(p models.Player) PlayerEntry {
	return PlayerEntry{
		ID:         p.ID.String(),
		ExternalID: p.ExternalID,
		FullName:   p.FullName,
		Position:   p.Position,
		Rank:       p.Rank,
	}
}
