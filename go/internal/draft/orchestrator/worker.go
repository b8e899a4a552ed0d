package orchestrator

import (
	"context"

	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

type forcedJob struct {
	runner *runner
	job    engine.ForcedPick
}

// enqueue blocks until a worker takes the job or the orchestrator closes.
func (o *Orchestrator) enqueue(r *runner, job engine.ForcedPick) {
	select {
	case o.workCh <- forcedJob{runner: r, job: job}:
		log.Debug().
			Str("draft_id", job.DraftID.String()).
			Int("overall_pick", job.OverallPick).
			Msg("forced pick enqueued for processing")
	case <-o.ctx.Done():
	}
}

// worker resolves forced picks from the work channel and reports each
// outcome back to the owning draft loop.
func (o *Orchestrator) worker(workerID int) {
	defer o.wg.Done()

	log.Debug().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-o.ctx.Done():
			log.Debug().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case fj := <-o.workCh:
			o.resolve(workerID, fj)
		}
	}
}

func (o *Orchestrator) resolve(workerID int, fj forcedJob) {
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.ResolveTimeout)
	defer cancel()

	log.Info().
		Str("draft_id", fj.job.DraftID.String()).
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Int("overall_pick", fj.job.OverallPick).
		Int("attempt", fj.job.Attempt).
		Str("reason", string(fj.job.Reason)).
		Msg("worker handling forced pick")

	playerID, err := o.resolver.Resolve(ctx, fj.job)
	if err != nil {
		log.Error().
			Err(err).
			Str("draft_id", fj.job.DraftID.String()).
			Str("instance", o.instanceID).
			Int("worker_id", workerID).
			Msg("worker forced pick resolution failed")
	}

	fj.runner.post(forcedResultMsg{job: fj.job, playerID: playerID, err: err})
}
