// Package scheduler runs one-shot callbacks after a delay on a swappable clock.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Scheduler struct {
	clock clockwork.Clock
}

// New returns a Scheduler on clock. Pass clockwork.NewRealClock() in
// production and a FakeClock in tests.
func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock}
}

func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Handle is a pending callback. The zero of *Handle is safe to Stop.
type Handle struct {
	timer clockwork.Timer
	done  chan struct{}
	once  sync.Once
}

// After runs fn on its own goroutine once d has elapsed, unless the handle is
// stopped first.
func (s *Scheduler) After(d time.Duration, fn func()) *Handle {
	h := &Handle{
		timer: s.clock.NewTimer(d),
		done:  make(chan struct{}),
	}

	go func() {
		select {
		case <-h.timer.Chan():
			fn()
		case <-h.done:
		}
	}()
	return h
}

// Stop cancels the callback. It reports whether the callback was still
// pending.
func (h *Handle) Stop() bool {
	if h == nil {
		return false
	}
	stopped := h.timer.Stop()
	h.once.Do(func() { close(h.done) })
	return stopped
}
