// Package accumulator implements the cumulative clipboard: successive copies
// are merged into one buffer that is written back to the clipboard, so a
// single paste yields everything copied so far.
//
// The accumulator polls the clipboard change counter. Its own writes bump the
// counter too, so a poll that finds the clipboard equal to the buffer treats
// it as a self-authored echo and does not merge it again; without that guard
// every write would re-trigger accumulation forever.
package accumulator

import (
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/cumulus/internal/clip"
	"go.klb.dev/cumulus/internal/hub"
	"go.klb.dev/cumulus/internal/message"
	"go.klb.dev/cumulus/internal/schedule"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPasteDelay   = 200 * time.Millisecond
)

// Notifier receives a snapshot after every state change. Publish must not
// block; it is called with the accumulator locked.
type Notifier interface {
	Publish(message.State)
}

// Options configures a new Accumulator.
type Options struct {
	Enabled       bool
	ClearOnPaste  bool
	InsertNewline bool

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// PasteDelay is how long clear-after-paste waits for the paste to land.
	// Defaults to DefaultPasteDelay.
	PasteDelay time.Duration

	// Notifier is optional.
	Notifier Notifier
}

// Accumulator owns the cumulative buffer. All methods are safe for concurrent
// use; they share one lock so polls, delayed clears and setters never
// interleave.
type Accumulator struct {
	backend      clip.Backend
	sched        schedule.Scheduler
	notifier     Notifier
	pollInterval time.Duration
	pasteDelay   time.Duration
	now          func() time.Time

	mu            sync.Mutex
	enabled       bool
	clearOnPaste  bool
	insertNewline bool
	buffer        string
	lastSeen      int64
	poller        schedule.Timer
	pendingClears int
	updatedAt     time.Time
}

// New creates an Accumulator. The current clipboard counter is taken as
// already seen, so whatever was on the clipboard before start-up is not
// merged. Polling starts immediately when opts.Enabled is set.
func New(backend clip.Backend, sched schedule.Scheduler, opts Options) *Accumulator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PasteDelay <= 0 {
		opts.PasteDelay = DefaultPasteDelay
	}
	a := &Accumulator{
		backend:       backend,
		sched:         sched,
		notifier:      opts.Notifier,
		pollInterval:  opts.PollInterval,
		pasteDelay:    opts.PasteDelay,
		now:           time.Now,
		clearOnPaste:  opts.ClearOnPaste,
		insertNewline: opts.InsertNewline,
		lastSeen:      backend.ChangeCount(),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.setEnabledLocked(opts.Enabled)
	return a
}

// SetEnabled turns accumulation on or off. Turning it on starts polling;
// turning it off stops polling and empties the buffer without touching the
// live clipboard. Re-applying the current value restarts the poll timer or
// empties the buffer again.
func (a *Accumulator) SetEnabled(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setEnabledLocked(on)
}

func (a *Accumulator) setEnabledLocked(on bool) {
	a.enabled = on
	a.stopPollerLocked()
	if on {
		a.poller = a.sched.Every(a.pollInterval, a.Poll)
		slog.Info("clipboard accumulation enabled", "poll_interval", a.pollInterval)
	} else {
		a.buffer = ""
		slog.Info("clipboard accumulation disabled")
	}
	a.publishLocked()
}

func (a *Accumulator) stopPollerLocked() {
	if a.poller != nil {
		a.poller.Stop()
		a.poller = nil
	}
}

// SetClearOnPaste controls whether HandlePasteSignal schedules a clear.
func (a *Accumulator) SetClearOnPaste(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearOnPaste = on
	slog.Debug("clear-on-paste changed", "clear_on_paste", on)
	a.publishLocked()
}

// SetInsertNewline controls whether merged copies are separated by "\n".
func (a *Accumulator) SetInsertNewline(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.insertNewline = on
	slog.Debug("insert-newline changed", "insert_newline", on)
	a.publishLocked()
}

// Poll checks the clipboard once and merges newly copied text into the
// buffer. It is a no-op while disabled.
func (a *Accumulator) Poll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return
	}

	cc := a.backend.ChangeCount()
	if cc == a.lastSeen {
		return
	}
	slog.Debug("clipboard changed", "change_count", cc, "last_seen", a.lastSeen)

	text, err := a.backend.ReadText()
	if err != nil || text == "" {
		if err != nil {
			slog.Debug("clipboard read failed, ignoring", "err", err)
		} else {
			slog.Debug("clipboard holds no text, ignoring")
		}
		a.lastSeen = cc
		return
	}

	if text == a.buffer {
		slog.Debug("self-authored clipboard change, ignoring", "change_count", cc)
		a.lastSeen = cc
		return
	}

	prev := a.buffer
	a.buffer = a.merge(text)
	if err := a.backend.WriteText(a.buffer); err != nil {
		slog.Warn("clipboard write failed, keeping previous buffer", "err", err)
		a.buffer = prev
		a.lastSeen = a.backend.ChangeCount()
		return
	}
	// The write bumped the counter; read it back rather than assume cc+1.
	a.lastSeen = a.backend.ChangeCount()

	hub.LogBuffer("clipboard accumulated", a.buffer, "change_count", a.lastSeen)
	a.publishLocked()
}

func (a *Accumulator) merge(text string) string {
	switch {
	case a.buffer == "":
		return text
	case a.insertNewline:
		return a.buffer + "\n" + text
	default:
		return a.buffer + text
	}
}

// HandlePasteSignal is called when the user pastes. With accumulation and
// clear-on-paste both on it schedules Clear after the paste delay, giving the
// paste time to read the clipboard first, and reports true. A scheduled clear
// is not withdrawn by a later SetEnabled(false).
func (a *Accumulator) HandlePasteSignal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled || !a.clearOnPaste {
		slog.Debug("paste signal ignored",
			"enabled", a.enabled,
			"clear_on_paste", a.clearOnPaste,
		)
		return false
	}

	a.pendingClears++
	a.sched.After(a.pasteDelay, a.pasteClear)
	slog.Debug("clear scheduled after paste", "delay", a.pasteDelay)
	a.publishLocked()
	return true
}

func (a *Accumulator) pasteClear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingClears > 0 {
		a.pendingClears--
	}
	slog.Info("clearing after paste")
	a.clearLocked()
}

// Clear empties the buffer and the live clipboard, then resyncs the change
// counter so the clear itself is not seen as a copy.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearLocked()
}

func (a *Accumulator) clearLocked() {
	a.buffer = ""
	if err := a.backend.Clear(); err != nil {
		slog.Warn("clipboard clear failed", "err", err)
	}
	a.lastSeen = a.backend.ChangeCount()
	hub.LogBuffer("buffer cleared", a.buffer, "change_count", a.lastSeen)
	a.publishLocked()
}

// Buffer returns the accumulated text.
func (a *Accumulator) Buffer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer
}

// PasteDelay returns the configured clear-after-paste delay.
func (a *Accumulator) PasteDelay() time.Duration { return a.pasteDelay }

// Snapshot returns the observable state.
func (a *Accumulator) Snapshot() message.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Accumulator) snapshotLocked() message.State {
	return message.State{
		Enabled:       a.enabled,
		ClearOnPaste:  a.clearOnPaste,
		InsertNewline: a.insertNewline,
		Buffer:        a.buffer,
		ChangeCount:   a.lastSeen,
		PendingClears: a.pendingClears,
		Backend:       a.backend.Name(),
		UpdatedAt:     a.updatedAt,
	}
}

func (a *Accumulator) publishLocked() {
	a.updatedAt = a.now()
	if a.notifier != nil {
		a.notifier.Publish(a.snapshotLocked())
	}
}

// Close stops polling. Pending delayed clears still fire.
func (a *Accumulator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopPollerLocked()
}
