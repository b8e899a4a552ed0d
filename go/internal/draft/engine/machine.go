package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxForceAttempts  = 3
	defaultForceRetryBackoff = 500 * time.Millisecond
)

// TurnToken identifies one armed period of a pick clock. A timeout carrying
// a token other than the machine's current one is stale.
type TurnToken struct {
	OverallPick int    `json:"overall_pick"`
	Seq         uint64 `json:"seq"`
}

// PickClock arms the countdown for the current pick.
type PickClock interface {
	Arm(overallPick int, d time.Duration) (TurnToken, error)
	Cancel(tok TurnToken)
	Stop()
}

// PlayerPool lists the players that have not been picked in a draft.
type PlayerPool interface {
	ListAvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error)
}

// Emitter receives events after the state transition that produced them.
type Emitter interface {
	Emit(evt events.Envelope)
}

// AutoPicker runs forced picks outside the draft's command queue and reports
// back through Machine.ResolveForcedPick.
type AutoPicker interface {
	ScheduleAutoPick(job ForcedPick, delay time.Duration)
}

// ForceReason says why a pick is being made on a team's behalf.
type ForceReason string

const (
	ForceTimeout  ForceReason = "timeout"
	ForceComputer ForceReason = "computer"
)

// ForcedPick describes a pick the engine must make for a team.
type ForcedPick struct {
	DraftID     uuid.UUID
	TeamID      uuid.UUID
	OverallPick int
	Round       int
	Reason      ForceReason
	Attempt     int
	// Drafted holds every player committed before this pick, so resolvers
	// can filter a pool that lags behind the machine.
	Drafted []uuid.UUID
}

// Submission is a request to commit a pick.
type Submission struct {
	OverallPick int
	TeamID      uuid.UUID
	PlayerID    uuid.UUID
	Auto        bool
}

// State is a read-only snapshot of a draft.
type State struct {
	Draft          *models.Draft `json:"draft"`
	CurrentTurn    *Turn         `json:"current_turn,omitempty"`
	CurrentTeamID  *uuid.UUID    `json:"current_team_id,omitempty"`
	Deadline       *time.Time    `json:"deadline,omitempty"`
	RemainingPicks int           `json:"remaining_picks"`
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Clock             clockwork.Clock
	PickClock         PickClock
	Pool              PlayerPool
	Emitter           Emitter
	AutoPicker        AutoPicker
	Rand              *rand.Rand
	// ThinkDelay returns the pause before a computer-controlled team picks.
	ThinkDelay        func() time.Duration
	MaxForceAttempts  int
	// ForceRetryBackoff is multiplied by the failed attempt count to space
	// out retries of a rejected forced pick.
	ForceRetryBackoff time.Duration
}

// Machine holds the authoritative state of one draft. It is not safe for
// concurrent use: the owning coordinator serializes every call.
type Machine struct {
	draft *models.Draft
	deps  Deps

	drafted map[uuid.UUID]int // player -> overall pick
	token   TurnToken
	seq     int64

	deadline time.Time

	// forcing is the overall pick with a forced pick in flight, 0 if none.
	forcing       int
	forceAttempts int
}

// NewMachine wraps draft, which the machine owns from now on.
func NewMachine(draft *models.Draft, deps Deps) *Machine {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.ThinkDelay == nil {
		deps.ThinkDelay = func() time.Duration { return 0 }
	}
	if deps.MaxForceAttempts <= 0 {
		deps.MaxForceAttempts = defaultMaxForceAttempts
	}
	if deps.ForceRetryBackoff <= 0 {
		deps.ForceRetryBackoff = defaultForceRetryBackoff
	}

	m := &Machine{
		draft:   draft,
		deps:    deps,
		drafted: make(map[uuid.UUID]int, len(draft.Picks)),
	}
	for _, p := range draft.Picks {
		m.drafted[p.PlayerID] = p.OverallPick
	}
	return m
}

// DraftID returns the id of the draft this machine owns.
func (m *Machine) DraftID() uuid.UUID { return m.draft.ID }

// Start moves the draft to in progress and arms the clock for pick 1.
func (m *Machine) Start(ctx context.Context) error {
	if m.draft.Status != models.DraftStatusNotStarted {
		return ErrAlreadyStarted
	}

	if m.draft.Settings.RandomizeOrder {
		order := append([]uuid.UUID(nil), m.draft.TeamOrder...)
		m.deps.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		m.draft.TeamOrder = order
	}

	now := m.deps.Clock.Now()
	m.draft.Status = models.DraftStatusInProgress
	m.draft.CurrentOverallPick = 1
	m.draft.StartedAt = &now

	teamOrder := make([]string, len(m.draft.TeamOrder))
	for i, id := range m.draft.TeamOrder {
		teamOrder[i] = id.String()
	}
	m.emit(events.EventTypeDraftStarted, now, events.DraftStartedPayload{
		DraftID:     m.draft.ID.String(),
		TeamOrder:   teamOrder,
		Snake:       m.draft.Settings.Snake,
		StartedAt:   now,
		TotalRounds: m.draft.Settings.Rounds,
		TotalPicks:  m.draft.TotalPicks(),
	})

	log.Info().
		Str("draft_id", m.draft.ID.String()).
		Int("teams", len(m.draft.TeamOrder)).
		Int("total_picks", m.draft.TotalPicks()).
		Msg("draft started")

	return m.beginTurn()
}

// SubmitPick validates and commits a pick. It is the only path that
// appends to the draft, for human and forced picks alike.
func (m *Machine) SubmitPick(ctx context.Context, sub Submission) (models.DraftPick, error) {
	if m.draft.Status == models.DraftStatusNotStarted {
		return models.DraftPick{}, ErrDraftNotActive
	}
	if sub.OverallPick != m.draft.CurrentOverallPick {
		return models.DraftPick{}, fmt.Errorf("%w: pick %d submitted while pick %d is current",
			ErrStaleTurn, sub.OverallPick, m.draft.CurrentOverallPick)
	}
	if m.draft.Status != models.DraftStatusInProgress || m.draft.Halted {
		return models.DraftPick{}, ErrDraftNotActive
	}

	turn := m.currentTurn()
	expected := m.draft.TeamOrder[turn.TeamIndex]
	if sub.TeamID != expected {
		return models.DraftPick{}, fmt.Errorf("%w: pick %d belongs to team %s", ErrWrongTeam, sub.OverallPick, expected)
	}

	if prev, taken := m.drafted[sub.PlayerID]; taken {
		return models.DraftPick{}, fmt.Errorf("%w: player %s was taken at pick %d", ErrPlayerUnavailable, sub.PlayerID, prev)
	}
	ok, err := m.inPool(ctx, sub.PlayerID)
	if err != nil {
		return models.DraftPick{}, fmt.Errorf("failed to check player pool: %w", err)
	}
	if !ok {
		return models.DraftPick{}, fmt.Errorf("%w: player %s is not in the pool", ErrPlayerUnavailable, sub.PlayerID)
	}

	return m.commit(turn, sub), nil
}

// HandleTimeout forces a pick for the current team when tok still names the
// armed period. It reports whether a forced pick was scheduled.
func (m *Machine) HandleTimeout(tok TurnToken) bool {
	if m.draft.Status != models.DraftStatusInProgress || m.draft.Halted {
		return false
	}
	if tok != m.token {
		log.Debug().
			Str("draft_id", m.draft.ID.String()).
			Int("token_pick", tok.OverallPick).
			Int("overall_pick", m.draft.CurrentOverallPick).
			Msg("ignoring stale pick timeout")
		return false
	}
	if m.forcing == m.draft.CurrentOverallPick {
		log.Debug().
			Str("draft_id", m.draft.ID.String()).
			Int("overall_pick", m.draft.CurrentOverallPick).
			Msg("pick timed out with auto-pick already in flight")
		return false
	}

	log.Info().
		Str("draft_id", m.draft.ID.String()).
		Int("overall_pick", m.draft.CurrentOverallPick).
		Msg("pick timed out, forcing auto-pick")
	m.force(ForceTimeout, 0)
	return true
}

// ResolveForcedPick commits the outcome of a forced pick. Results for a turn
// that has already moved on are rejected with ErrStaleTurn and change nothing.
func (m *Machine) ResolveForcedPick(ctx context.Context, job ForcedPick, playerID uuid.UUID, resolveErr error) (models.DraftPick, error) {
	if m.draft.Status != models.DraftStatusInProgress || m.draft.Halted ||
		job.OverallPick != m.draft.CurrentOverallPick || m.forcing != job.OverallPick {
		return models.DraftPick{}, fmt.Errorf("%w: forced pick %d no longer current", ErrStaleTurn, job.OverallPick)
	}

	if resolveErr != nil {
		if errors.Is(resolveErr, ErrResolverExhausted) {
			m.Halt(resolveErr)
			return models.DraftPick{}, resolveErr
		}
		return models.DraftPick{}, m.retryForce(job, resolveErr)
	}

	pick, err := m.SubmitPick(ctx, Submission{
		OverallPick: job.OverallPick,
		TeamID:      job.TeamID,
		PlayerID:    playerID,
		Auto:        true,
	})
	if err != nil {
		return models.DraftPick{}, m.retryForce(job, err)
	}
	return pick, nil
}

// Halt freezes the draft after a fatal error. The status stays in progress,
// the clock is stopped and every later submission is rejected.
func (m *Machine) Halt(cause error) {
	if m.draft.Status != models.DraftStatusInProgress || m.draft.Halted {
		return
	}

	now := m.deps.Clock.Now()
	m.draft.Halted = true
	m.draft.HaltReason = cause.Error()
	m.forcing = 0
	m.deadline = time.Time{}
	m.deps.PickClock.Stop()

	log.Error().
		Err(cause).
		Str("draft_id", m.draft.ID.String()).
		Int("overall_pick", m.draft.CurrentOverallPick).
		Str("reason", cause.Error()).
		Msg("draft halted")

	m.emit(events.EventTypeDraftHalted, now, events.DraftHaltedPayload{
		DraftID:     m.draft.ID.String(),
		OverallPick: m.draft.CurrentOverallPick,
		Reason:      cause.Error(),
		HaltedAt:    now,
	})
}

// Snapshot returns a deep copy of the draft with the current turn resolved.
func (m *Machine) Snapshot() State {
	st := State{
		Draft:          m.draft.Clone(),
		RemainingPicks: m.draft.TotalPicks() - len(m.draft.Picks),
	}
	if m.draft.Status == models.DraftStatusInProgress {
		turn := m.currentTurn()
		team := m.draft.TeamOrder[turn.TeamIndex]
		st.CurrentTurn = &turn
		st.CurrentTeamID = &team
		if !m.deadline.IsZero() {
			d := m.deadline
			st.Deadline = &d
		}
	}
	return st
}

// CurrentOverallPick is the pick the draft is waiting on, 0 before start.
func (m *Machine) CurrentOverallPick() int { return m.draft.CurrentOverallPick }

// Done reports whether the draft will accept no further picks.
func (m *Machine) Done() bool {
	return m.draft.Status == models.DraftStatusCompleted || m.draft.Halted
}

func (m *Machine) currentTurn() Turn {
	return ResolveTurn(m.draft.CurrentOverallPick, len(m.draft.TeamOrder), m.draft.Settings.Snake)
}

func (m *Machine) inPool(ctx context.Context, playerID uuid.UUID) (bool, error) {
	available, err := m.deps.Pool.ListAvailablePlayers(ctx, m.draft.ID)
	if err != nil {
		return false, err
	}
	for _, id := range available {
		if id == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Machine) commit(turn Turn, sub Submission) models.DraftPick {
	now := m.deps.Clock.Now()
	pick := models.DraftPick{
		DraftID:     m.draft.ID,
		Round:       turn.Round,
		Pick:        turn.PickInRound,
		OverallPick: sub.OverallPick,
		TeamID:      sub.TeamID,
		PlayerID:    sub.PlayerID,
		PickedAt:    now,
		Auto:        sub.Auto,
	}

	m.draft.Picks = append(m.draft.Picks, pick)
	m.drafted[pick.PlayerID] = pick.OverallPick
	m.deps.PickClock.Cancel(m.token)
	m.deadline = time.Time{}
	m.forcing = 0
	m.forceAttempts = 0
	m.draft.CurrentOverallPick++

	m.emit(events.EventTypePickMade, now, events.PickMadePayload{
		TeamID:      pick.TeamID.String(),
		PlayerID:    pick.PlayerID.String(),
		Round:       pick.Round,
		Pick:        pick.Pick,
		OverallPick: pick.OverallPick,
		MadeAt:      now,
		Auto:        pick.Auto,
	})

	log.Info().
		Str("draft_id", m.draft.ID.String()).
		Int("overall_pick", pick.OverallPick).
		Str("team_id", pick.TeamID.String()).
		Str("player_id", pick.PlayerID.String()).
		Bool("auto", pick.Auto).
		Msg("pick committed")

	if m.draft.CurrentOverallPick > m.draft.TotalPicks() {
		m.complete(now)
		return pick
	}
	// A clock failure halts the draft; the pick itself is committed.
	_ = m.beginTurn()
	return pick
}

func (m *Machine) complete(now time.Time) {
	m.draft.Status = models.DraftStatusCompleted
	m.draft.CompletedAt = &now
	m.deps.PickClock.Stop()

	var duration time.Duration
	if m.draft.StartedAt != nil {
		duration = now.Sub(*m.draft.StartedAt)
	}
	m.emit(events.EventTypeDraftCompleted, now, events.DraftCompletedPayload{
		DraftID:     m.draft.ID.String(),
		CompletedAt: now,
		Duration:    duration.String(),
		TotalPicks:  len(m.draft.Picks),
	})

	log.Info().
		Str("draft_id", m.draft.ID.String()).
		Int("total_picks", len(m.draft.Picks)).
		Dur("duration", duration).
		Msg("draft completed")
}

// beginTurn arms the clock for the current pick and hands computer-controlled
// teams to the auto-picker. A clock failure halts the draft and is returned
// wrapped in ErrClockFailure.
func (m *Machine) beginTurn() error {
	turn := m.currentTurn()
	team := m.draft.TeamOrder[turn.TeamIndex]
	limit := m.draft.Settings.PickDuration()

	tok, err := m.deps.PickClock.Arm(m.draft.CurrentOverallPick, limit)
	if err != nil {
		if !errors.Is(err, ErrClockFailure) {
			err = fmt.Errorf("%w: %v", ErrClockFailure, err)
		}
		err = fmt.Errorf("arm clock for pick %d: %w", m.draft.CurrentOverallPick, err)
		m.Halt(err)
		return err
	}

	now := m.deps.Clock.Now()
	m.token = tok
	m.deadline = now.Add(limit)

	m.emit(events.EventTypePickStarted, now, events.PickStartedPayload{
		TeamID:         team.String(),
		Round:          turn.Round,
		Pick:           turn.PickInRound,
		OverallPick:    m.draft.CurrentOverallPick,
		StartedAt:      now,
		TimeoutAt:      m.deadline,
		TimePerPickSec: m.draft.Settings.TimePerPickSec,
	})

	if m.draft.IsComputerTeam(team) {
		m.force(ForceComputer, m.deps.ThinkDelay())
	}
	return nil
}

func (m *Machine) force(reason ForceReason, delay time.Duration) {
	turn := m.currentTurn()
	drafted := make([]uuid.UUID, 0, len(m.drafted))
	for _, p := range m.draft.Picks {
		drafted = append(drafted, p.PlayerID)
	}

	m.forcing = m.draft.CurrentOverallPick
	m.deps.AutoPicker.ScheduleAutoPick(ForcedPick{
		DraftID:     m.draft.ID,
		TeamID:      m.draft.TeamOrder[turn.TeamIndex],
		OverallPick: m.draft.CurrentOverallPick,
		Round:       turn.Round,
		Reason:      reason,
		Attempt:     m.forceAttempts + 1,
		Drafted:     drafted,
	}, delay)
}

func (m *Machine) retryForce(job ForcedPick, cause error) error {
	m.forceAttempts++
	if m.forceAttempts >= m.deps.MaxForceAttempts {
		err := fmt.Errorf("%w: pick %d after %d attempts: %v", ErrResolverExhausted, job.OverallPick, m.forceAttempts, cause)
		m.Halt(err)
		return err
	}

	backoff := m.deps.ForceRetryBackoff * time.Duration(m.forceAttempts)
	log.Warn().
		Err(cause).
		Str("draft_id", m.draft.ID.String()).
		Int("overall_pick", job.OverallPick).
		Int("attempt", m.forceAttempts).
		Dur("backoff", backoff).
		Msg("forced pick rejected, retrying")
	m.force(job.Reason, backoff)
	return cause
}

func (m *Machine) emit(eventType string, at time.Time, payload any) {
	evt, err := events.NewEnvelope(eventType, m.draft.ID, at, payload)
	if err != nil {
		log.Error().Err(err).Str("draft_id", m.draft.ID.String()).Msg("failed to build event")
		return
	}
	m.seq++
	evt.Sequence = m.seq
	m.deps.Emitter.Emit(evt)
}
