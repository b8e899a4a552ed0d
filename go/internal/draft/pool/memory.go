package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
)

// MemoryPool keeps each draft's player pool in process. It follows committed
// picks by consuming PickMade events as a sink.
type MemoryPool struct {
	mu      sync.RWMutex
	players map[uuid.UUID]models.Player
	pools   map[uuid.UUID][]uuid.UUID // draft -> players in rank order
	drafted map[uuid.UUID]map[uuid.UUID]bool
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		players: make(map[uuid.UUID]models.Player),
		pools:   make(map[uuid.UUID][]uuid.UUID),
		drafted: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

// Register adds players to a draft's pool. Players already in the pool are
// left as they are.
func (p *MemoryPool) Register(_ context.Context, draftID uuid.UUID, players []models.Player) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing := make(map[uuid.UUID]bool, len(p.pools[draftID]))
	for _, id := range p.pools[draftID] {
		existing[id] = true
	}
	for _, pl := range players {
		if pl.ID == uuid.Nil {
			return fmt.Errorf("player %q has no ID", pl.FullName)
		}
		p.players[pl.ID] = pl
		if !existing[pl.ID] {
			p.pools[draftID] = append(p.pools[draftID], pl.ID)
			existing[pl.ID] = true
		}
	}

	ids := p.pools[draftID]
	sort.SliceStable(ids, func(i, j int) bool {
		return rankLess(p.players[ids[i]].Rank, p.players[ids[j]].Rank)
	})
	return nil
}

// ListAvailablePlayers implements engine.PlayerPool.
func (p *MemoryPool) ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	taken := p.drafted[draftID]
	out := make([]uuid.UUID, 0, len(p.pools[draftID]))
	for _, id := range p.pools[draftID] {
		if !taken[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// AvailablePlayers returns the undrafted players of a draft in rank order.
func (p *MemoryPool) AvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error) {
	ids, err := p.ListAvailablePlayers(ctx, draftID)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.Player, len(ids))
	for i, id := range ids {
		out[i] = p.players[id]
	}
	return out, nil
}

// Rank returns a player's consensus rank, 0 when unknown.
func (p *MemoryPool) Rank(playerID uuid.UUID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.players[playerID].Rank
}

// MarkDrafted removes a player from a draft's available set.
func (p *MemoryPool) MarkDrafted(draftID, playerID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drafted[draftID] == nil {
		p.drafted[draftID] = make(map[uuid.UUID]bool)
	}
	p.drafted[draftID][playerID] = true
}

// Publish implements events.Sink.
func (p *MemoryPool) Publish(_ context.Context, evt events.Envelope) error {
	if evt.EventType != events.EventTypePickMade {
		return nil
	}
	var made events.PickMadePayload
	if err := evt.Decode(&made); err != nil {
		return err
	}
	playerID, err := uuid.Parse(made.PlayerID)
	if err != nil {
		return fmt.Errorf("invalid player ID: %w", err)
	}
	p.MarkDrafted(evt.DraftID, playerID)
	return nil
}

// rankLess orders ranked players first, best rank first.
func rankLess(a, b int) bool {
	switch {
	case a > 0 && b > 0:
		return a < b
	case a > 0:
		return true
	default:
		return false
	}
}
