package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/clock"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/rs/zerolog/log"
)

type runnerMsg interface{ isRunnerMsg() }

type result struct {
	state engine.State
	pick  models.DraftPick
	err   error
}

type startMsg struct {
	ctx   context.Context
	reply chan result
}

func (startMsg) isRunnerMsg() {}

type submitMsg struct {
	ctx         context.Context
	overallPick int
	teamID      uuid.UUID
	playerID    uuid.UUID
	reply       chan result
}

func (submitMsg) isRunnerMsg() {}

type snapshotMsg struct {
	reply chan result
}

func (snapshotMsg) isRunnerMsg() {}

type timeoutMsg struct {
	tok engine.TurnToken
}

func (timeoutMsg) isRunnerMsg() {}

type forcedResultMsg struct {
	job      engine.ForcedPick
	playerID uuid.UUID
	err      error
}

func (forcedResultMsg) isRunnerMsg() {}

// runner serializes every command for one draft. Only loop touches machine.
type runner struct {
	o         *Orchestrator
	id        uuid.UUID
	machine   *engine.Machine
	pickClock *clock.PickClock
	dispatch  *dispatcher
	inbox     chan runnerMsg

	// thinkTimer delays a computer-controlled pick; owned by loop.
	thinkTimer clockwork.Timer
}

func (o *Orchestrator) newRunner(d *models.Draft) *runner {
	r := &runner{
		o:     o,
		id:    d.ID,
		inbox: make(chan runnerMsg, o.cfg.InboxSize),
	}
	r.dispatch = newDispatcher(o, d.ID)
	r.pickClock = clock.New(o.clock, r.onTimeout)
	r.machine = engine.NewMachine(d, engine.Deps{
		Clock:             o.clock,
		PickClock:         r.pickClock,
		Pool:              o.pool,
		Emitter:           r.dispatch,
		AutoPicker:        r,
		Rand:              rand.New(rand.NewSource(o.nextSeed())),
		ThinkDelay:        o.thinkDelay,
		MaxForceAttempts:  o.cfg.MaxForceAttempts,
		ForceRetryBackoff: o.cfg.ForceRetryBackoff,
	})
	return r
}

func (r *runner) loop() {
	defer r.o.wg.Done()

	for {
		select {
		case <-r.o.ctx.Done():
			r.shutdown()
			return
		case m := <-r.inbox:
			r.handle(m)
		}
	}
}

func (r *runner) handle(m runnerMsg) {
	switch msg := m.(type) {
	case startMsg:
		err := r.machine.Start(msg.ctx)
		msg.reply <- result{state: r.machine.Snapshot(), err: err}

	case submitMsg:
		overall := msg.overallPick
		if overall == 0 {
			overall = r.machine.CurrentOverallPick()
		}
		pick, err := r.machine.SubmitPick(msg.ctx, engine.Submission{
			OverallPick: overall,
			TeamID:      msg.teamID,
			PlayerID:    msg.playerID,
		})
		if err != nil {
			log.Debug().
				Err(err).
				Str("draft_id", r.id.String()).
				Str("team_id", msg.teamID.String()).
				Int("overall_pick", overall).
				Msg("pick rejected")
		}
		msg.reply <- result{pick: pick, err: err}

	case snapshotMsg:
		msg.reply <- result{state: r.machine.Snapshot()}

	case timeoutMsg:
		r.machine.HandleTimeout(msg.tok)

	case forcedResultMsg:
		pick, err := r.machine.ResolveForcedPick(r.o.ctx, msg.job, msg.playerID, msg.err)
		if err != nil {
			log.Warn().
				Err(err).
				Str("draft_id", r.id.String()).
				Int("overall_pick", msg.job.OverallPick).
				Str("reason", string(msg.job.Reason)).
				Msg("forced pick not committed")
			return
		}
		log.Info().
			Str("draft_id", r.id.String()).
			Int("overall_pick", pick.OverallPick).
			Str("player_id", pick.PlayerID.String()).
			Str("reason", string(msg.job.Reason)).
			Msg("auto-pick committed")
	}
}

// request sends a message built around a fresh reply channel and waits for
// the loop to answer.
func (r *runner) request(ctx context.Context, build func(chan result) runnerMsg) (result, error) {
	reply := make(chan result, 1)

	select {
	case r.inbox <- build(reply):
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-r.o.ctx.Done():
		return result{}, ErrClosed
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-r.o.ctx.Done():
		return result{}, ErrClosed
	}
}

// post delivers a message from outside the loop, giving up on shutdown.
func (r *runner) post(m runnerMsg) {
	select {
	case r.inbox <- m:
	case <-r.o.ctx.Done():
	}
}

// onTimeout runs on the timer's goroutine and must not block on the loop.
func (r *runner) onTimeout(tok engine.TurnToken) {
	log.Debug().
		Str("draft_id", r.id.String()).
		Int("overall_pick", tok.OverallPick).
		Msg("pick timer fired")
	go r.post(timeoutMsg{tok: tok})
}

// ScheduleAutoPick hands a forced pick to the worker pool, after delay for
// computer-controlled teams.
func (r *runner) ScheduleAutoPick(job engine.ForcedPick, delay time.Duration) {
	r.stopThinkTimer()

	if delay <= 0 {
		go r.o.enqueue(r, job)
		return
	}
	r.thinkTimer = r.o.clock.AfterFunc(delay, func() { r.o.enqueue(r, job) })

	log.Debug().
		Str("draft_id", r.id.String()).
		Int("overall_pick", job.OverallPick).
		Dur("delay", delay).
		Msg("scheduled computer pick")
}

func (r *runner) stopThinkTimer() {
	if r.thinkTimer != nil {
		r.thinkTimer.Stop()
		r.thinkTimer = nil
	}
}

func (r *runner) shutdown() {
	r.pickClock.Stop()
	r.stopThinkTimer()
	r.dispatch.stop()
	log.Debug().Str("draft_id", r.id.String()).Msg("draft loop stopped")
}
