package schedule

import (
	"sync"
	"time"
)

// Manual is a virtual clock. Nothing fires until Advance moves time forward;
// due callbacks then run in time order on the caller's goroutine, so tests
// stay deterministic.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks map[*manualTask]struct{}
}

// NewManual returns a Manual clock at time zero.
func NewManual() *Manual {
	return &Manual{tasks: make(map[*manualTask]struct{})}
}

type manualTask struct {
	m      *Manual
	at     time.Duration
	period time.Duration // zero for one-shot
	seq    uint64
	fn     func()
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.tasks[t]; !ok {
		return false
	}
	delete(t.m.tasks, t)
	return true
}

// Every implements Scheduler.
func (m *Manual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		panic("schedule: non-positive interval")
	}
	return m.add(d, d, fn)
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

func (m *Manual) add(delay, period time.Duration, fn func()) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, at: m.now + delay, period: period, seq: m.seq, fn: fn}
	m.tasks[t] = struct{}{}
	return t
}

// Advance moves the clock forward by d, running every callback that falls due.
// Callbacks scheduled while advancing also run if they fall within d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.period > 0 {
			next.at += next.period
		} else {
			delete(m.tasks, next)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

// nextLocked returns the earliest task due at or before target; ties go to the
// task scheduled first.
func (m *Manual) nextLocked(target time.Duration) *manualTask {
	var best *manualTask
	for t := range m.tasks {
		if t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

// elapsed returns the virtual time since NewManual.
func (m *Manual) elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of active timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
