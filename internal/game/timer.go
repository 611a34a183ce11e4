package game

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// windowTimer is a one-shot timer armed for the current window. The cancel
// channel releases the waiting goroutine when the timer is replaced or the
// activity is cleared before it fires.
type windowTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// armTimerLocked arms a one-shot timer whose fire calls fn with the window
// generation current at arm time. Any existing timer is cancelled first, so
// there is never more than one live timer per activity. Callers must hold
// s.mu; fn re-acquires it and must validate the generation before acting.
func (s *State) armTimerLocked(d time.Duration, fn func(gen uint64)) {
	s.cancelTimerLocked()

	s.gen++
	gen := s.gen
	w := &windowTimer{
		timer:  s.clock.NewTimer(d),
		cancel: make(chan struct{}),
	}
	s.timer = w

	go func() {
		select {
		case <-w.timer.Chan():
			fn(gen)
		case <-w.cancel:
		}
	}()

	log.Debug().
		Uint64("window_gen", gen).
		Dur("duration", d).
		Str("activity", s.activity.String()).
		Msg("armed window timer")
}

// cancelTimerLocked stops and drains the pending timer, if any, and bumps
// the generation so a fire that already slipped past the select is ignored
// inside its finalize. Callers must hold s.mu.
func (s *State) cancelTimerLocked() {
	if s.timer == nil {
		return
	}

	close(s.timer.cancel)
	stopAndDrainTimer(s.timer.timer)
	s.timer = nil
	s.gen++

	log.Debug().Uint64("window_gen", s.gen).Msg("cancelled window timer")
}

// stopAndDrainTimer safely stops a timer and drains its channel so a fire
// that raced with Stop does not leak into a later window.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
