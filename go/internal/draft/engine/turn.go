package engine

// Turn is the position of an overall pick within the draft.
type Turn struct {
	Round       int `json:"round"`
	PickInRound int `json:"pick_in_round"`
	TeamIndex   int `json:"team_index"` // zero-based index into the team order
}

// ResolveTurn maps an overall pick to its round, pick in round and team
// index. overallPick is 1-indexed and teamCount must be positive. In a snake
// draft even rounds traverse the team order in reverse.
func ResolveTurn(overallPick, teamCount int, snake bool) Turn {
	round := (overallPick + teamCount - 1) / teamCount
	pickInRound := ((overallPick - 1) % teamCount) + 1

	teamIndex := pickInRound - 1
	if snake && round%2 == 0 {
		teamIndex = teamCount - pickInRound
	}

	return Turn{
		Round:       round,
		PickInRound: pickInRound,
		TeamIndex:   teamIndex,
	}
}
