package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/orchestrator"
)

// ErrNotFound is returned by a StateProvider for an unknown draft.
var ErrNotFound = errors.New("draft not found")

// StateProvider interface defines methods for retrieving draft state
type StateProvider interface {
	GetDraftState(ctx context.Context, draftID uuid.UUID) (*DraftStateResponse, error)
	GetActiveDrafts(ctx context.Context) ([]DraftSummary, error)
}

// DraftReader is the read side of the orchestrator.
type DraftReader interface {
	GetDraftState(ctx context.Context, draftID uuid.UUID) (engine.State, error)
	ListActiveDrafts(ctx context.Context) ([]engine.State, error)
}

// EngineStateProvider serves state from the drafts running in this process.
type EngineStateProvider struct {
	drafts DraftReader
}

func NewEngineStateProvider(drafts DraftReader) *EngineStateProvider {
	return &EngineStateProvider{drafts: drafts}
}

func (p *EngineStateProvider) GetDraftState(ctx context.Context, draftID uuid.UUID) (*DraftStateResponse, error) {
	st, err := p.drafts.GetDraftState(ctx, draftID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrDraftNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, draftID)
		}
		return nil, fmt.Errorf("failed to get draft state: %w", err)
	}
	return stateResponseFromEngine(st), nil
}

func (p *EngineStateProvider) GetActiveDrafts(ctx context.Context) ([]DraftSummary, error) {
	states, err := p.drafts.ListActiveDrafts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active drafts: %w", err)
	}
	out := make([]DraftSummary, 0, len(states))
	for _, st := range states {
		out = append(out, summaryFromEngine(st))
	}
	return out, nil
}

// ProjectionReader is the read side of the Redis projection.
type ProjectionReader interface {
	State(ctx context.Context, draftID uuid.UUID) (map[string]string, error)
	Picks(ctx context.Context, draftID uuid.UUID) ([]events.PickMadePayload, error)
	ActiveDrafts(ctx context.Context) ([]uuid.UUID, error)
}

// ProjectionStateProvider serves state from the Redis projection, for a
// gateway running apart from the orchestrator.
type ProjectionStateProvider struct {
	projection ProjectionReader
}

func NewProjectionStateProvider(projection ProjectionReader) *ProjectionStateProvider {
	return &ProjectionStateProvider{projection: projection}
}

func (p *ProjectionStateProvider) GetDraftState(ctx context.Context, draftID uuid.UUID) (*DraftStateResponse, error) {
	fields, err := p.projection.State(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, draftID)
	}
	picks, err := p.projection.Picks(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return stateResponseFromProjection(draftID, fields, picks), nil
}

func (p *ProjectionStateProvider) GetActiveDrafts(ctx context.Context) ([]DraftSummary, error) {
	ids, err := p.projection.ActiveDrafts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]DraftSummary, 0, len(ids))
	for _, id := range ids {
		fields, err := p.projection.State(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, summaryFromProjection(id, fields))
	}
	return out, nil
}
