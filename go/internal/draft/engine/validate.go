package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
)

// ErrInvalidDraft wraps every reason a draft cannot be created.
var ErrInvalidDraft = errors.New("invalid draft")

// ValidateDraft checks the settings fixed at creation.
func ValidateDraft(d *models.Draft) error {
	if err := validateDraft(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return nil
}

func validateDraft(d *models.Draft) error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("draft ID is required")
	}
	if len(d.TeamOrder) == 0 {
		return fmt.Errorf("team order is required")
	}
	if d.Settings.Rounds <= 0 {
		return fmt.Errorf("rounds must be greater than 0")
	}
	if d.Settings.TimePerPickSec <= 0 {
		return fmt.Errorf("time per pick must be greater than 0")
	}

	seen := make(map[uuid.UUID]bool, len(d.TeamOrder))
	for _, id := range d.TeamOrder {
		if id == uuid.Nil {
			return fmt.Errorf("team order contains an empty team ID")
		}
		if seen[id] {
			return fmt.Errorf("team %s appears more than once in team order", id)
		}
		seen[id] = true
	}
	for _, id := range d.Settings.ComputerTeams {
		if !seen[id] {
			return fmt.Errorf("computer team %s is not in team order", id)
		}
	}
	return nil
}
