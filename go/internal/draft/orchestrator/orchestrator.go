package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/outbox"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrDraftExists   = errors.New("draft already exists")
	ErrClosed        = errors.New("orchestrator is closed")
)

// Resolver chooses the player for a forced pick.
type Resolver interface {
	Resolve(ctx context.Context, job engine.ForcedPick) (uuid.UUID, error)
}

// Config tunes the orchestrator. Zero fields fall back to DefaultConfig.
type Config struct {
	Workers          int
	WorkQueueSize    int
	InboxSize        int
	SubscriberBuffer int

	// Computer-controlled teams wait a random delay in [ThinkDelayMin, ThinkDelayMax].
	ThinkDelayMin time.Duration
	ThinkDelayMax time.Duration

	ResolveTimeout    time.Duration
	MaxForceAttempts  int
	ForceRetryBackoff time.Duration

	SinkMaxRetries int
	SinkRetryDelay time.Duration
	FlushTimeout   time.Duration

	// Seed fixes the random source used for team order shuffles and think
	// delays. Zero seeds from the wall clock.
	Seed int64
}

// DefaultConfig returns the settings used in production.
func DefaultConfig() Config {
	return Config{
		Workers:           10,
		WorkQueueSize:     20,
		InboxSize:         64,
		SubscriberBuffer:  64,
		ThinkDelayMin:     2 * time.Second,
		ThinkDelayMax:     5 * time.Second,
		ResolveTimeout:    5 * time.Second,
		MaxForceAttempts:  3,
		ForceRetryBackoff: 500 * time.Millisecond,
		SinkMaxRetries:    3,
		SinkRetryDelay:    100 * time.Millisecond,
		FlushTimeout:      5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.WorkQueueSize <= 0 {
		c.WorkQueueSize = c.Workers * 2
	}
	if c.InboxSize <= 0 {
		c.InboxSize = d.InboxSize
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = d.SubscriberBuffer
	}
	if c.ThinkDelayMax < c.ThinkDelayMin {
		c.ThinkDelayMax = c.ThinkDelayMin
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = d.ResolveTimeout
	}
	if c.MaxForceAttempts <= 0 {
		c.MaxForceAttempts = d.MaxForceAttempts
	}
	if c.ForceRetryBackoff <= 0 {
		c.ForceRetryBackoff = d.ForceRetryBackoff
	}
	if c.SinkMaxRetries < 0 {
		c.SinkMaxRetries = 0
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = d.FlushTimeout
	}
	return c
}

// Orchestrator owns every live draft in the process. Each draft runs its own
// command loop; forced picks are resolved by a shared worker pool.
type Orchestrator struct {
	clock      clockwork.Clock
	pool       engine.PlayerPool
	resolver   Resolver
	sinks      []events.Sink
	metrics    outbox.MetricsCollector
	cfg        Config
	instanceID string // short ID for logging

	mu     sync.RWMutex
	drafts map[uuid.UUID]*runner
	closed bool

	rngMu sync.Mutex
	rng   *rand.Rand

	workCh chan forcedJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates an orchestrator and starts its worker pool.
func NewOrchestrator(
	clock clockwork.Clock,
	pool engine.PlayerPool,
	resolver Resolver,
	sink events.Sink,
	metrics outbox.MetricsCollector,
	cfg Config,
) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = events.Discard
	}
	if metrics == nil {
		metrics = &outbox.NoOpMetricsCollector{}
	}
	cfg = cfg.withDefaults()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		clock:      clock,
		pool:       pool,
		resolver:   resolver,
		sinks:      events.Flatten(sink),
		metrics:    metrics,
		cfg:        cfg,
		instanceID: uuid.New().String()[:8],
		drafts:     make(map[uuid.UUID]*runner),
		rng:        rand.New(rand.NewSource(seed)),
		workCh:     make(chan forcedJob, cfg.WorkQueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}

	log.Info().
		Str("instance", o.instanceID).
		Int("workers", cfg.Workers).
		Msg("draft orchestrator started")

	return o
}

// CreateDraft registers a draft in NOT_STARTED. A nil draft ID is replaced
// with a fresh one.
func (o *Orchestrator) CreateDraft(ctx context.Context, d *models.Draft) (engine.State, error) {
	draft := d.Clone()
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	draft.Status = models.DraftStatusNotStarted
	draft.CurrentOverallPick = 0
	draft.Picks = nil
	draft.Halted = false
	draft.HaltReason = ""
	draft.StartedAt = nil
	draft.CompletedAt = nil
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = o.clock.Now()
	}

	if err := engine.ValidateDraft(draft); err != nil {
		return engine.State{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return engine.State{}, ErrClosed
	}
	if _, exists := o.drafts[draft.ID]; exists {
		return engine.State{}, fmt.Errorf("%w: %s", ErrDraftExists, draft.ID)
	}

	r := o.newRunner(draft)
	o.drafts[draft.ID] = r
	st := r.machine.Snapshot()

	o.wg.Add(2)
	go r.loop()
	go r.dispatch.run()

	log.Info().
		Str("instance", o.instanceID).
		Str("draft_id", draft.ID.String()).
		Int("teams", len(draft.TeamOrder)).
		Int("rounds", draft.Settings.Rounds).
		Msg("draft created")

	return st, nil
}

// StartDraft moves a draft to IN_PROGRESS and arms the clock for pick 1.
func (o *Orchestrator) StartDraft(ctx context.Context, draftID uuid.UUID) (engine.State, error) {
	r, err := o.runner(draftID)
	if err != nil {
		return engine.State{}, err
	}
	res, err := r.request(ctx, func(reply chan result) runnerMsg {
		return startMsg{ctx: ctx, reply: reply}
	})
	if err != nil {
		return engine.State{}, err
	}
	return res.state, res.err
}

// SubmitPick commits playerID for teamID at whatever pick is current when
// the request reaches the draft's queue.
func (o *Orchestrator) SubmitPick(ctx context.Context, draftID, teamID, playerID uuid.UUID) (models.DraftPick, error) {
	return o.SubmitPickAt(ctx, draftID, 0, teamID, playerID)
}

// SubmitPickAt commits a pick for an explicit overall pick number. A request
// for a pick that is no longer current fails with engine.ErrStaleTurn. Zero
// means the current pick.
func (o *Orchestrator) SubmitPickAt(ctx context.Context, draftID uuid.UUID, overallPick int, teamID, playerID uuid.UUID) (models.DraftPick, error) {
	r, err := o.runner(draftID)
	if err != nil {
		return models.DraftPick{}, err
	}
	res, err := r.request(ctx, func(reply chan result) runnerMsg {
		return submitMsg{
			ctx:         ctx,
			overallPick: overallPick,
			teamID:      teamID,
			playerID:    playerID,
			reply:       reply,
		}
	})
	if err != nil {
		return models.DraftPick{}, err
	}
	return res.pick, res.err
}

// GetDraftState returns a snapshot of one draft.
func (o *Orchestrator) GetDraftState(ctx context.Context, draftID uuid.UUID) (engine.State, error) {
	r, err := o.runner(draftID)
	if err != nil {
		return engine.State{}, err
	}
	res, err := r.request(ctx, func(reply chan result) runnerMsg {
		return snapshotMsg{reply: reply}
	})
	if err != nil {
		return engine.State{}, err
	}
	return res.state, nil
}

// ListActiveDrafts returns snapshots of every draft in progress and not halted.
func (o *Orchestrator) ListActiveDrafts(ctx context.Context) ([]engine.State, error) {
	o.mu.RLock()
	runners := make([]*runner, 0, len(o.drafts))
	for _, r := range o.drafts {
		runners = append(runners, r)
	}
	o.mu.RUnlock()

	var active []engine.State
	for _, r := range runners {
		res, err := r.request(ctx, func(reply chan result) runnerMsg {
			return snapshotMsg{reply: reply}
		})
		if err != nil {
			return nil, err
		}
		if res.state.Draft.Status == models.DraftStatusInProgress && !res.state.Draft.Halted {
			active = append(active, res.state)
		}
	}
	return active, nil
}

// Subscribe streams the events of one draft in commit order. The channel is
// closed when the subscriber falls behind, when cancel is called, or on
// shutdown.
func (o *Orchestrator) Subscribe(draftID uuid.UUID) (<-chan events.Envelope, func(), error) {
	r, err := o.runner(draftID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := r.dispatch.subscribe(o.cfg.SubscriberBuffer)
	return ch, cancel, nil
}

// Close stops every draft loop and pick clock, flushes pending events to the
// sink and waits for the worker pool to drain.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")
	o.cancel()
	o.wg.Wait()
	log.Info().Str("instance", o.instanceID).Msg("orchestrator shut down")
	return nil
}

func (o *Orchestrator) runner(draftID uuid.UUID) (*runner, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return nil, ErrClosed
	}
	r, ok := o.drafts[draftID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return r, nil
}

func (o *Orchestrator) nextSeed() int64 {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Int63()
}

// thinkDelay picks the pause before a computer-controlled team's pick.
func (o *Orchestrator) thinkDelay() time.Duration {
	spread := o.cfg.ThinkDelayMax - o.cfg.ThinkDelayMin
	if spread <= 0 {
		return o.cfg.ThinkDelayMin
	}
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.cfg.ThinkDelayMin + time.Duration(o.rng.Int63n(int64(spread)+1))
}
