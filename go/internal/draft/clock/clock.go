package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// PickClock is the countdown for the current pick of one draft. Arming is
// destructive: only the most recently issued token can fire.
type PickClock struct {
	clock     clockwork.Clock
	onTimeout func(engine.TurnToken)

	mu       sync.Mutex
	timer    clockwork.Timer
	current  engine.TurnToken
	seq      uint64
	armedAt  time.Time
	duration time.Duration
	stopped  bool
}

// New creates a clock that calls onTimeout from the timer's goroutine. The
// callback must hand off to the draft's command queue and return.
func New(c clockwork.Clock, onTimeout func(engine.TurnToken)) *PickClock {
	return &PickClock{
		clock:     c,
		onTimeout: onTimeout,
	}
}

// Arm starts a new period for overallPick, replacing any armed one.
func (p *PickClock) Arm(overallPick int, d time.Duration) (engine.TurnToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return engine.TurnToken{}, fmt.Errorf("%w: clock is stopped", engine.ErrClockFailure)
	}
	if d <= 0 {
		return engine.TurnToken{}, fmt.Errorf("%w: invalid duration %s", engine.ErrClockFailure, d)
	}

	if p.timer != nil {
		p.timer.Stop()
		log.Debug().Int("overall_pick", p.current.OverallPick).Msg("replaced existing pick timer")
	}

	p.seq++
	tok := engine.TurnToken{OverallPick: overallPick, Seq: p.seq}
	p.current = tok
	p.armedAt = p.clock.Now()
	p.duration = d
	p.timer = p.clock.AfterFunc(d, func() { p.fire(tok) })

	return tok, nil
}

// Cancel disarms the clock if tok is still the armed period.
func (p *PickClock) Cancel(tok engine.TurnToken) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tok != p.current || p.timer == nil {
		return
	}
	p.timer.Stop()
	p.timer = nil
}

// Stop disarms the clock for good. Later calls to Arm fail.
func (p *PickClock) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Remaining returns the time left in the armed period, or zero.
func (p *PickClock) Remaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer == nil {
		return 0
	}
	left := p.armedAt.Add(p.duration).Sub(p.clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

func (p *PickClock) fire(tok engine.TurnToken) {
	p.mu.Lock()
	live := !p.stopped && tok == p.current && p.timer != nil
	if live {
		p.timer = nil
	}
	p.mu.Unlock()

	if !live {
		log.Debug().
			Int("overall_pick", tok.OverallPick).
			Uint64("seq", tok.Seq).
			Msg("dropping superseded pick timer")
		return
	}
	p.onTimeout(tok)
}
