// Package schedule provides the two timing primitives the accumulator needs:
// a recurring timer for polling and a cancellable one-shot delay for
// clear-after-paste.
//
// Real runs callbacks on timer goroutines; callers serialize state changes
// themselves. Manual is a virtual clock for tests.
package schedule

import (
	"sync"
	"time"
)

// Timer is a scheduled callback. Stop prevents future runs and reports
// whether the timer was still active. A run already in progress is not
// interrupted.
type Timer interface {
	Stop() bool
}

// Scheduler creates timers.
type Scheduler interface {
	// Every runs fn every d until the returned Timer is stopped.
	Every(d time.Duration, fn func()) Timer

	// After runs fn once after d unless the returned Timer is stopped first.
	After(d time.Duration, fn func()) Timer
}

// Real schedules on the wall clock.
type Real struct{}

// After implements Scheduler. *time.Timer already satisfies Timer.
func (Real) After(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// Every implements Scheduler.
func (Real) Every(d time.Duration, fn func()) Timer {
	t := &ticker{
		t:    time.NewTicker(d),
		done: make(chan struct{}),
	}
	go t.run(fn)
	return t
}

type ticker struct {
	t    *time.Ticker
	done chan struct{}
	once sync.Once
}

func (t *ticker) run(fn func()) {
	defer t.t.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-t.t.C:
			// Stop may race with a tick that was already delivered.
			select {
			case <-t.done:
				return
			default:
			}
			fn()
		}
	}
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		close(t.done)
		stopped = true
	})
	return stopped
}
