// Package renewal schedules credential renewal ahead of token expiry.
//
// A Scheduler owns at most one single-shot timer. Arming replaces any armed
// timer; cancelling makes a timer that already fired (but whose callback has
// not run yet) a no-op, so a stale fire can never reach the owner.
package renewal

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultMargin is how long before expiry renewal happens for long-lived
// tokens.
const DefaultMargin = 15 * time.Minute

// Config configures a Scheduler.
type Config struct {
	// Clock is the time source (default: real clock).
	Clock clock.Clock

	// Margin is the maximum lead before expiry (default: DefaultMargin).
	// Short-lived tokens renew after three quarters of their remaining
	// lifetime instead.
	Margin time.Duration

	// Dispatch runs fn on the owner goroutine. Timer fires are delivered
	// through it.
	Dispatch func(fn func())
}

// Scheduler is a single-shot, re-armable renewal timer.
//
// Scheduler is not safe for concurrent use; call it from the owner
// goroutine only.
type Scheduler struct {
	clock    clock.Clock
	margin   time.Duration
	dispatch func(fn func())

	timer      *clock.Timer
	generation uint64
}

// NewScheduler creates a Scheduler.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Margin <= 0 {
		cfg.Margin = DefaultMargin
	}
	return &Scheduler{
		clock:    cfg.Clock,
		margin:   cfg.Margin,
		dispatch: cfg.Dispatch,
	}
}

// Delay returns how long to wait before renewing a token with the given
// remaining lifetime.
func Delay(remaining, margin time.Duration) time.Duration {
	if remaining <= 0 {
		return 0
	}
	lead := margin
	if quarter := remaining / 4; quarter < lead {
		lead = quarter
	}
	return remaining - lead
}

// Arm schedules fire ahead of expiry, replacing any armed timer. It returns
// the delay used.
func (s *Scheduler) Arm(expiry time.Time, fire func()) time.Duration {
	s.Cancel()

	gen := s.generation
	deliver := func() {
		s.dispatch(func() {
			if gen != s.generation || s.timer == nil {
				return
			}
			s.timer = nil
			fire()
		})
	}

	delay := Delay(expiry.Sub(s.clock.Now()), s.margin)
	s.timer = s.clock.AfterFunc(delay, deliver)
	return delay
}

// Cancel stops the armed timer, if any.
func (s *Scheduler) Cancel() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Armed reports whether a timer is pending.
func (s *Scheduler) Armed() bool {
	return s.timer != nil
}
