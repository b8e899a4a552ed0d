package autopick

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errNoCandidates = errors.New("no candidates")

// RandomStrategy uses random choice for the player.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy with its own seed. A zero
// seed uses the current time.
func NewRandomStrategy(seed int64) *RandomStrategy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomStrategy{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Recommend implements Recommender.
func (s *RandomStrategy) Recommend(_ context.Context, req Request) (uuid.UUID, error) {
	if len(req.Available) == 0 {
		return uuid.Nil, errNoCandidates
	}
	s.mu.Lock()
	i := s.rng.Intn(len(req.Available))
	s.mu.Unlock()
	return req.Available[i], nil
}

// RankedStrategy takes the best ranked available player. Unranked players
// sort after every ranked one.
type RankedStrategy struct {
	rank func(uuid.UUID) int
}

// NewRankedStrategy builds a RankedStrategy over a rank lookup where lower is
// better and 0 means unranked.
func NewRankedStrategy(rank func(uuid.UUID) int) *RankedStrategy {
	return &RankedStrategy{rank: rank}
}

// Recommend implements Recommender.
func (s *RankedStrategy) Recommend(_ context.Context, req Request) (uuid.UUID, error) {
	best, bestRank := uuid.Nil, 0
	for _, id := range req.Available {
		r := s.rank(id)
		if r <= 0 {
			continue
		}
		if best == uuid.Nil || r < bestRank {
			best, bestRank = id, r
		}
	}
	if best == uuid.Nil {
		return uuid.Nil, errNoCandidates
	}
	return best, nil
}

// Fallback asks each recommender in turn until one answers.
type Fallback []Recommender

// Recommend implements Recommender.
func (f Fallback) Recommend(ctx context.Context, req Request) (uuid.UUID, error) {
	var errs []error
	for _, rec := range f {
		id, err := rec.Recommend(ctx, req)
		if err == nil {
			return id, nil
		}
		errs = append(errs, err)
	}
	return uuid.Nil, fmt.Errorf("all recommenders failed: %w", errors.Join(errs...))
}
