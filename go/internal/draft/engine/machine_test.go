package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClock struct {
	seq       uint64
	armed     []TurnToken
	cancelled []TurnToken
	stopped   bool
	failAt    int
}

func (c *stubClock) Arm(overallPick int, d time.Duration) (TurnToken, error) {
	if c.stopped {
		return TurnToken{}, ErrClockFailure
	}
	if c.failAt == overallPick {
		return TurnToken{}, errors.New("timer service unavailable")
	}
	c.seq++
	tok := TurnToken{OverallPick: overallPick, Seq: c.seq}
	c.armed = append(c.armed, tok)
	return tok, nil
}

func (c *stubClock) Cancel(tok TurnToken) { c.cancelled = append(c.cancelled, tok) }
func (c *stubClock) Stop()                { c.stopped = true }

func (c *stubClock) last() TurnToken { return c.armed[len(c.armed)-1] }

type stubPool struct {
	players []uuid.UUID
	err     error
}

func (p *stubPool) ListAvailablePlayers(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return p.players, p.err
}

type recordingEmitter struct {
	events []events.Envelope
}

func (e *recordingEmitter) Emit(evt events.Envelope) { e.events = append(e.events, evt) }

func (e *recordingEmitter) types() []string {
	out := make([]string, len(e.events))
	for i, evt := range e.events {
		out[i] = evt.EventType
	}
	return out
}

type recordingAutoPicker struct {
	jobs   []ForcedPick
	delays []time.Duration
}

func (a *recordingAutoPicker) ScheduleAutoPick(job ForcedPick, delay time.Duration) {
	a.jobs = append(a.jobs, job)
	a.delays = append(a.delays, delay)
}

func (a *recordingAutoPicker) last() ForcedPick { return a.jobs[len(a.jobs)-1] }

type fixture struct {
	machine *Machine
	draft   *models.Draft
	clock   *stubClock
	pool    *stubPool
	emitter *recordingEmitter
	picker  *recordingAutoPicker
	teams   []uuid.UUID
	players []uuid.UUID
}

func newFixture(t *testing.T, teams, rounds int, mutate ...func(*models.Draft)) *fixture {
	t.Helper()

	f := &fixture{
		clock:   &stubClock{},
		emitter: &recordingEmitter{},
		picker:  &recordingAutoPicker{},
	}
	for i := 0; i < teams; i++ {
		f.teams = append(f.teams, uuid.New())
	}
	for i := 0; i < teams*rounds+5; i++ {
		f.players = append(f.players, uuid.New())
	}
	f.pool = &stubPool{players: f.players}

	f.draft = &models.Draft{
		ID:     uuid.New(),
		Status: models.DraftStatusNotStarted,
		Settings: models.DraftSettings{
			Rounds:         rounds,
			TimePerPickSec: 5,
			Snake:          true,
		},
		TeamOrder: append([]uuid.UUID(nil), f.teams...),
	}
	for _, fn := range mutate {
		fn(f.draft)
	}
	require.NoError(t, ValidateDraft(f.draft))

	f.machine = NewMachine(f.draft, Deps{
		Clock:      clockwork.NewFakeClock(),
		PickClock:  f.clock,
		Pool:       f.pool,
		Emitter:    f.emitter,
		AutoPicker: f.picker,
		Rand:       rand.New(rand.NewSource(42)),
		ThinkDelay: func() time.Duration { return 3 * time.Second },
	})
	return f
}

func (f *fixture) currentTeam(t *testing.T) uuid.UUID {
	t.Helper()
	st := f.machine.Snapshot()
	require.NotNil(t, st.CurrentTeamID)
	return *st.CurrentTeamID
}

func (f *fixture) submit(t *testing.T, player uuid.UUID) models.DraftPick {
	t.Helper()
	pick, err := f.machine.SubmitPick(context.Background(), Submission{
		OverallPick: f.draft.CurrentOverallPick,
		TeamID:      f.currentTeam(t),
		PlayerID:    player,
	})
	require.NoError(t, err)
	return pick
}

func TestMachine_StartArmsFirstPick(t *testing.T) {
	f := newFixture(t, 4, 2)

	require.NoError(t, f.machine.Start(context.Background()))

	st := f.machine.Snapshot()
	assert.Equal(t, models.DraftStatusInProgress, st.Draft.Status)
	assert.Equal(t, 1, st.Draft.CurrentOverallPick)
	assert.Equal(t, f.teams[0], *st.CurrentTeamID)
	assert.Equal(t, 8, st.RemainingPicks)
	require.NotNil(t, st.Deadline)
	require.Len(t, f.clock.armed, 1)
	assert.Equal(t, 1, f.clock.armed[0].OverallPick)
	assert.Equal(t, []string{events.EventTypeDraftStarted, events.EventTypePickStarted}, f.emitter.types())

	var started events.PickStartedPayload
	require.NoError(t, f.emitter.events[1].Decode(&started))
	assert.Equal(t, f.teams[0].String(), started.TeamID)
	assert.Equal(t, 5, started.TimePerPickSec)
	assert.Equal(t, 5*time.Second, started.TimeoutAt.Sub(started.StartedAt))
}

func TestMachine_StartTwice(t *testing.T) {
	f := newFixture(t, 2, 1)
	require.NoError(t, f.machine.Start(context.Background()))
	require.ErrorIs(t, f.machine.Start(context.Background()), ErrAlreadyStarted)
	assert.Len(t, f.clock.armed, 1)
}

func TestMachine_SubmitBeforeStart(t *testing.T) {
	f := newFixture(t, 2, 1)
	_, err := f.machine.SubmitPick(context.Background(), Submission{OverallPick: 1, TeamID: f.teams[0], PlayerID: f.players[0]})
	require.ErrorIs(t, err, ErrDraftNotActive)
}

func TestMachine_SubmitPickRejections(t *testing.T) {
	stranger := uuid.New()

	tests := []struct {
		name    string
		sub     func(f *fixture) Submission
		wantErr error
	}{
		{
			name:    "future pick",
			sub:     func(f *fixture) Submission { return Submission{OverallPick: 2, TeamID: f.teams[1], PlayerID: f.players[0]} },
			wantErr: ErrStaleTurn,
		},
		{
			name:    "past pick",
			sub:     func(f *fixture) Submission { return Submission{OverallPick: 0, TeamID: f.teams[0], PlayerID: f.players[0]} },
			wantErr: ErrStaleTurn,
		},
		{
			name:    "wrong team",
			sub:     func(f *fixture) Submission { return Submission{OverallPick: 1, TeamID: f.teams[1], PlayerID: f.players[0]} },
			wantErr: ErrWrongTeam,
		},
		{
			name:    "player outside pool",
			sub:     func(f *fixture) Submission { return Submission{OverallPick: 1, TeamID: f.teams[0], PlayerID: stranger} },
			wantErr: ErrPlayerUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 3, 2)
			require.NoError(t, f.machine.Start(context.Background()))
			before := len(f.emitter.events)

			_, err := f.machine.SubmitPick(context.Background(), tt.sub(f))
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))
			assert.False(t, IsFatal(err))

			st := f.machine.Snapshot()
			assert.Empty(t, st.Draft.Picks)
			assert.Equal(t, 1, st.Draft.CurrentOverallPick)
			assert.Len(t, f.emitter.events, before)
			assert.Empty(t, f.clock.cancelled)
		})
	}
}

func TestMachine_PoolErrorLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, 2, 1)
	require.NoError(t, f.machine.Start(context.Background()))
	f.pool.err = errors.New("connection refused")

	_, err := f.machine.SubmitPick(context.Background(), Submission{OverallPick: 1, TeamID: f.teams[0], PlayerID: f.players[0]})
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Equal(t, 1, f.machine.Snapshot().Draft.CurrentOverallPick)
}

func TestMachine_DuplicateSubmissionIsStale(t *testing.T) {
	f := newFixture(t, 4, 1)
	require.NoError(t, f.machine.Start(context.Background()))

	sub := Submission{OverallPick: 1, TeamID: f.teams[0], PlayerID: f.players[0]}
	_, err := f.machine.SubmitPick(context.Background(), sub)
	require.NoError(t, err)

	_, err = f.machine.SubmitPick(context.Background(), sub)
	require.ErrorIs(t, err, ErrStaleTurn)
	assert.Len(t, f.machine.Snapshot().Draft.Picks, 1)
}

func TestMachine_PlayerAlreadyDrafted(t *testing.T) {
	f := newFixture(t, 8, 3)
	require.NoError(t, f.machine.Start(context.Background()))

	p1 := f.players[0]
	f.submit(t, f.players[10])
	f.submit(t, p1)
	f.submit(t, f.players[11])
	f.submit(t, f.players[12])

	_, err := f.machine.SubmitPick(context.Background(), Submission{
		OverallPick: 5,
		TeamID:      f.teams[4],
		PlayerID:    p1,
	})
	require.ErrorIs(t, err, ErrPlayerUnavailable)

	st := f.machine.Snapshot()
	assert.Len(t, st.Draft.Picks, 4)
	assert.Equal(t, 5, st.Draft.CurrentOverallPick)
}

func TestMachine_CommitCancelsAndRearms(t *testing.T) {
	f := newFixture(t, 3, 2)
	require.NoError(t, f.machine.Start(context.Background()))
	first := f.clock.last()

	pick := f.submit(t, f.players[0])
	assert.Equal(t, 1, pick.OverallPick)
	assert.Equal(t, 1, pick.Round)
	assert.Equal(t, 1, pick.Pick)
	assert.False(t, pick.Auto)

	require.Equal(t, []TurnToken{first}, f.clock.cancelled)
	require.Len(t, f.clock.armed, 2)
	assert.Equal(t, 2, f.clock.last().OverallPick)

	assert.Equal(t, []string{
		events.EventTypeDraftStarted,
		events.EventTypePickStarted,
		events.EventTypePickMade,
		events.EventTypePickStarted,
	}, f.emitter.types())

	var made events.PickMadePayload
	require.NoError(t, f.emitter.events[2].Decode(&made))
	assert.Equal(t, 1, made.OverallPick)
	assert.Equal(t, 1, made.Round)
	assert.Equal(t, 1, made.Pick)
	assert.Equal(t, f.teams[0].String(), made.TeamID)
	assert.Equal(t, f.players[0].String(), made.PlayerID)

	for i, evt := range f.emitter.events {
		assert.Equal(t, int64(i+1), evt.Sequence)
	}
}

func TestMachine_FullDraftReplaysThroughTurnOrder(t *testing.T) {
	f := newFixture(t, 8, 3)
	require.NoError(t, f.machine.Start(context.Background()))

	for i := 0; i < 24; i++ {
		f.submit(t, f.players[i])
	}

	st := f.machine.Snapshot()
	require.Equal(t, models.DraftStatusCompleted, st.Draft.Status)
	require.NotNil(t, st.Draft.CompletedAt)
	assert.Nil(t, st.CurrentTurn)
	assert.Equal(t, 0, st.RemainingPicks)
	assert.True(t, f.clock.stopped)
	assert.Len(t, f.clock.armed, 24)
	assert.True(t, f.machine.Done())
	assert.Equal(t, events.EventTypeDraftCompleted, f.emitter.types()[len(f.emitter.events)-1])

	seen := make(map[uuid.UUID]bool)
	for i, p := range st.Draft.Picks {
		assert.Equal(t, i+1, p.OverallPick)
		turn := ResolveTurn(p.OverallPick, len(st.Draft.TeamOrder), st.Draft.Settings.Snake)
		assert.Equal(t, turn.Round, p.Round)
		assert.Equal(t, turn.PickInRound, p.Pick)
		assert.Equal(t, st.Draft.TeamOrder[turn.TeamIndex], p.TeamID)
		assert.False(t, seen[p.PlayerID], "player %s drafted twice", p.PlayerID)
		seen[p.PlayerID] = true
	}

	// round 2 runs T8..T1
	assert.Equal(t, f.teams[7], st.Draft.Picks[8].TeamID)
	assert.Equal(t, f.teams[0], st.Draft.Picks[15].TeamID)
	assert.Equal(t, f.teams[0], st.Draft.Picks[16].TeamID)

	_, err := f.machine.SubmitPick(context.Background(), Submission{OverallPick: 25, TeamID: f.teams[7], PlayerID: f.players[28]})
	require.ErrorIs(t, err, ErrDraftNotActive)
	_, err = f.machine.SubmitPick(context.Background(), Submission{OverallPick: 24, TeamID: f.teams[7], PlayerID: f.players[28]})
	require.ErrorIs(t, err, ErrStaleTurn)
}

func TestMachine_RandomizedOrderIsPermutation(t *testing.T) {
	f := newFixture(t, 10, 1, func(d *models.Draft) { d.Settings.RandomizeOrder = true })
	require.NoError(t, f.machine.Start(context.Background()))

	st := f.machine.Snapshot()
	assert.ElementsMatch(t, f.teams, st.Draft.TeamOrder)
	assert.Equal(t, st.Draft.TeamOrder[0], *st.CurrentTeamID)
}

func TestMachine_TimeoutForcesPick(t *testing.T) {
	f := newFixture(t, 8, 3)
	require.NoError(t, f.machine.Start(context.Background()))
	f.submit(t, f.players[0])
	f.submit(t, f.players[1])

	tok := f.clock.last()
	require.Equal(t, 3, tok.OverallPick)
	require.True(t, f.machine.HandleTimeout(tok))
	require.Len(t, f.picker.jobs, 1)

	job := f.picker.last()
	assert.Equal(t, f.teams[2], job.TeamID)
	assert.Equal(t, 3, job.OverallPick)
	assert.Equal(t, 1, job.Round)
	assert.Equal(t, ForceTimeout, job.Reason)
	assert.Equal(t, 1, job.Attempt)
	assert.ElementsMatch(t, []uuid.UUID{f.players[0], f.players[1]}, job.Drafted)
	assert.Equal(t, time.Duration(0), f.picker.delays[0])

	// a repeat of the same timeout must not schedule a second resolver run
	assert.False(t, f.machine.HandleTimeout(tok))
	assert.Len(t, f.picker.jobs, 1)

	pick, err := f.machine.ResolveForcedPick(context.Background(), job, f.players[2], nil)
	require.NoError(t, err)
	assert.True(t, pick.Auto)
	assert.Equal(t, f.teams[2], pick.TeamID)

	st := f.machine.Snapshot()
	assert.Equal(t, 4, st.Draft.CurrentOverallPick)
	assert.Equal(t, f.teams[3], *st.CurrentTeamID)

	_, err = f.machine.ResolveForcedPick(context.Background(), job, f.players[3], nil)
	require.ErrorIs(t, err, ErrStaleTurn)
	assert.Len(t, f.machine.Snapshot().Draft.Picks, 3)
}

func TestMachine_StaleTimeoutIgnored(t *testing.T) {
	f := newFixture(t, 4, 2)
	require.NoError(t, f.machine.Start(context.Background()))
	old := f.clock.last()

	f.submit(t, f.players[0])

	assert.False(t, f.machine.HandleTimeout(old))
	assert.False(t, f.machine.HandleTimeout(TurnToken{OverallPick: 2, Seq: 99}))
	assert.Empty(t, f.picker.jobs)
	assert.Len(t, f.machine.Snapshot().Draft.Picks, 1)
}

func TestMachine_ComputerTeamScheduledWithThinkDelay(t *testing.T) {
	f := newFixture(t, 3, 1, func(d *models.Draft) {
		d.Settings.ComputerTeams = []uuid.UUID{d.TeamOrder[1]}
	})
	require.NoError(t, f.machine.Start(context.Background()))
	assert.Empty(t, f.picker.jobs)

	f.submit(t, f.players[0])
	require.Len(t, f.picker.jobs, 1)
	assert.Equal(t, ForceComputer, f.picker.last().Reason)
	assert.Equal(t, f.teams[1], f.picker.last().TeamID)
	assert.Equal(t, 3*time.Second, f.picker.delays[0])

	// the clock firing while the computer is still thinking is absorbed
	assert.False(t, f.machine.HandleTimeout(f.clock.last()))
	assert.Len(t, f.picker.jobs, 1)

	_, err := f.machine.ResolveForcedPick(context.Background(), f.picker.last(), f.players[1], nil)
	require.NoError(t, err)
	assert.Equal(t, 3, f.machine.Snapshot().Draft.CurrentOverallPick)
}

func TestMachine_HumanPickBeatsForcedPick(t *testing.T) {
	f := newFixture(t, 2, 2, func(d *models.Draft) {
		d.Settings.ComputerTeams = []uuid.UUID{d.TeamOrder[0]}
	})
	require.NoError(t, f.machine.Start(context.Background()))
	require.Len(t, f.picker.jobs, 1)
	job := f.picker.last()

	f.submit(t, f.players[0])

	_, err := f.machine.ResolveForcedPick(context.Background(), job, f.players[1], nil)
	require.ErrorIs(t, err, ErrStaleTurn)
	st := f.machine.Snapshot()
	assert.Len(t, st.Draft.Picks, 1)
	assert.False(t, st.Draft.Picks[0].Auto)
}

func TestMachine_ForcedPickRetriesThenHalts(t *testing.T) {
	f := newFixture(t, 2, 2)
	require.NoError(t, f.machine.Start(context.Background()))
	f.submit(t, f.players[0])
	require.True(t, f.machine.HandleTimeout(f.clock.last()))

	for attempt := 1; attempt <= 2; attempt++ {
		job := f.picker.last()
		assert.Equal(t, attempt, job.Attempt)
		_, err := f.machine.ResolveForcedPick(context.Background(), job, f.players[0], nil)
		require.ErrorIs(t, err, ErrPlayerUnavailable)
		assert.False(t, f.machine.Snapshot().Draft.Halted)
		assert.Equal(t, time.Duration(attempt)*defaultForceRetryBackoff, f.picker.delays[len(f.picker.delays)-1])
	}

	_, err := f.machine.ResolveForcedPick(context.Background(), f.picker.last(), f.players[0], nil)
	require.ErrorIs(t, err, ErrResolverExhausted)
	assert.True(t, IsFatal(err))

	st := f.machine.Snapshot()
	assert.True(t, st.Draft.Halted)
	assert.Equal(t, models.DraftStatusInProgress, st.Draft.Status)
	assert.Len(t, st.Draft.Picks, 1)
	assert.True(t, f.clock.stopped)
}

func TestMachine_ResolverExhaustedHalts(t *testing.T) {
	f := newFixture(t, 2, 2)
	require.NoError(t, f.machine.Start(context.Background()))
	require.True(t, f.machine.HandleTimeout(f.clock.last()))

	_, err := f.machine.ResolveForcedPick(context.Background(), f.picker.last(), uuid.Nil, ErrResolverExhausted)
	require.ErrorIs(t, err, ErrResolverExhausted)

	st := f.machine.Snapshot()
	require.True(t, st.Draft.Halted)
	assert.NotEmpty(t, st.Draft.HaltReason)
	assert.Equal(t, models.DraftStatusInProgress, st.Draft.Status)
	assert.Equal(t, events.EventTypeDraftHalted, f.emitter.types()[len(f.emitter.events)-1])
	assert.True(t, f.machine.Done())

	_, err = f.machine.SubmitPick(context.Background(), Submission{OverallPick: 1, TeamID: f.teams[0], PlayerID: f.players[0]})
	require.ErrorIs(t, err, ErrDraftNotActive)
	assert.False(t, f.machine.HandleTimeout(f.clock.last()))
}

func TestMachine_ClockFailureHalts(t *testing.T) {
	f := newFixture(t, 3, 1)
	f.clock.failAt = 2
	require.NoError(t, f.machine.Start(context.Background()))

	f.submit(t, f.players[0])

	st := f.machine.Snapshot()
	assert.True(t, st.Draft.Halted)
	assert.Contains(t, st.Draft.HaltReason, ErrClockFailure.Error())
	assert.Nil(t, st.Deadline)
	assert.Equal(t, 2, st.Draft.CurrentOverallPick)
	assert.NotContains(t, f.emitter.types()[3:], events.EventTypePickStarted)
}

func TestMachine_ClockFailureOnStart(t *testing.T) {
	f := newFixture(t, 3, 1)
	f.clock.failAt = 1

	err := f.machine.Start(context.Background())
	require.ErrorIs(t, err, ErrClockFailure)
	assert.True(t, IsFatal(err))

	st := f.machine.Snapshot()
	assert.True(t, st.Draft.Halted)
	assert.Nil(t, st.Deadline)
	assert.NotContains(t, f.emitter.types(), events.EventTypePickStarted)
	assert.Contains(t, f.emitter.types(), events.EventTypeDraftHalted)
}

func TestValidateDraft(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	valid := func() *models.Draft {
		return &models.Draft{
			ID:        uuid.New(),
			TeamOrder: []uuid.UUID{a, b},
			Settings:  models.DraftSettings{Rounds: 2, TimePerPickSec: 30},
		}
	}

	tests := []struct {
		name   string
		mutate func(d *models.Draft)
		ok     bool
	}{
		{name: "valid", mutate: func(*models.Draft) {}, ok: true},
		{name: "missing id", mutate: func(d *models.Draft) { d.ID = uuid.Nil }},
		{name: "no teams", mutate: func(d *models.Draft) { d.TeamOrder = nil }},
		{name: "zero rounds", mutate: func(d *models.Draft) { d.Settings.Rounds = 0 }},
		{name: "zero pick time", mutate: func(d *models.Draft) { d.Settings.TimePerPickSec = 0 }},
		{name: "duplicate team", mutate: func(d *models.Draft) { d.TeamOrder = []uuid.UUID{a, a} }},
		{name: "unknown computer team", mutate: func(d *models.Draft) { d.Settings.ComputerTeams = []uuid.UUID{uuid.New()} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := ValidateDraft(d)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidDraft)
		})
	}
}

func TestUserMessageHidesTurnDetails(t *testing.T) {
	err := errors.Join(ErrStaleTurn, errors.New("token 3/17"))
	msg := UserMessage(err)
	assert.Equal(t, "it is no longer your turn", msg)
	assert.NotContains(t, msg, "token")
	assert.Empty(t, UserMessage(nil))
}
