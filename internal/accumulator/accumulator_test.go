package accumulator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/cumulus/internal/clip"
	"go.klb.dev/cumulus/internal/message"
	"go.klb.dev/cumulus/internal/schedule"
)

const tick = DefaultPollInterval

func newTestAccumulator(t *testing.T, opts Options) (*Accumulator, *clip.Memory, *schedule.Manual) {
	t.Helper()
	mem := clip.NewMemory()
	clock := schedule.NewManual()
	a := New(mem, clock, opts)
	t.Cleanup(a.Close)
	return a, mem, clock
}

func enabledOpts() Options {
	return Options{Enabled: true, InsertNewline: true}
}

func TestFirstCopyOnEmptyBuffer(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())

	mem.Copy("X")
	clock.Advance(tick)

	assert.Equal(t, "X", a.Buffer())
	assert.Equal(t, "X", mem.Text())
}

func TestNewlinePolicy(t *testing.T) {
	tests := []struct {
		name    string
		newline bool
		want    string
	}{
		{"with newline", true, "A\nB"},
		{"concatenated", false, "AB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, mem, clock := newTestAccumulator(t, Options{Enabled: true, InsertNewline: tt.newline})

			mem.Copy("A")
			clock.Advance(tick)
			mem.Copy("B")
			clock.Advance(tick)

			assert.Equal(t, tt.want, a.Buffer())
			assert.Equal(t, tt.want, mem.Text())
		})
	}
}

func TestPollWithoutChangeIsIdempotent(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)
	require.Equal(t, "A", a.Buffer())
	count := mem.ChangeCount()

	for i := 0; i < 10; i++ {
		a.Poll()
	}
	clock.Advance(10 * tick)

	assert.Equal(t, "A", a.Buffer())
	assert.Equal(t, count, mem.ChangeCount(), "no poll may rewrite an unchanged clipboard")
}

func TestSelfAuthoredEchoIsIgnored(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)
	mem.Copy("B")
	clock.Advance(tick)
	require.Equal(t, "A\nB", a.Buffer())

	// The poll right after the accumulator's own write must not merge again.
	clock.Advance(tick)
	assert.Equal(t, "A\nB", a.Buffer())

	// A counter bump whose payload equals the buffer is treated as an echo
	// as well, even when another application produced it.
	mem.Copy("A\nB")
	before := mem.ChangeCount()
	clock.Advance(tick)
	assert.Equal(t, "A\nB", a.Buffer())
	assert.Equal(t, before, mem.ChangeCount(), "echo must not be written back")
	assert.Equal(t, before, a.Snapshot().ChangeCount)
}

func TestClipboardPresentAtStartIsNotMerged(t *testing.T) {
	mem := clip.NewMemory()
	mem.Copy("before start")
	clock := schedule.NewManual()
	a := New(mem, clock, enabledOpts())
	defer a.Close()

	clock.Advance(tick)
	assert.Empty(t, a.Buffer())

	mem.Copy("after")
	clock.Advance(tick)
	assert.Equal(t, "after", a.Buffer())
}

func TestDisableResetsBufferAndEnableStartsFresh(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)
	mem.Copy("B")
	clock.Advance(tick)
	require.Equal(t, "A\nB", a.Buffer())

	a.SetEnabled(false)
	assert.Empty(t, a.Buffer())
	assert.Equal(t, "A\nB", mem.Text(), "disabling leaves the live clipboard alone")
	assert.Equal(t, 0, clock.Pending(), "polling stops")

	a.SetEnabled(true)
	mem.Copy("C")
	clock.Advance(tick)
	assert.Equal(t, "C", a.Buffer())
}

func TestNoPollingWhileDisabled(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, Options{Enabled: false, InsertNewline: true})
	assert.Equal(t, 0, clock.Pending())

	mem.Copy("ignored")
	clock.Advance(10 * tick)
	a.Poll()
	assert.Empty(t, a.Buffer())
	assert.Equal(t, "ignored", mem.Text())
}

func TestReenableRestartsSinglePoller(t *testing.T) {
	a, _, clock := newTestAccumulator(t, enabledOpts())
	a.SetEnabled(true)
	a.SetEnabled(true)
	assert.Equal(t, 1, clock.Pending())
}

func TestPasteClear(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, Options{Enabled: true, ClearOnPaste: true, InsertNewline: true})
	mem.Copy("A")
	clock.Advance(tick)
	mem.Copy("B")
	clock.Advance(tick)
	require.Equal(t, "A\nB", a.Buffer())

	assert.True(t, a.HandlePasteSignal())
	assert.Equal(t, "A\nB", a.Buffer(), "clear waits for the paste to land")
	assert.Equal(t, 1, a.Snapshot().PendingClears)

	clock.Advance(DefaultPasteDelay)
	assert.Empty(t, a.Buffer())
	assert.Empty(t, mem.Text())
	assert.Equal(t, 0, a.Snapshot().PendingClears)

	// The clear itself must not be picked up as a copy.
	assert.Equal(t, mem.ChangeCount(), a.Snapshot().ChangeCount)
	mem.Copy("C")
	clock.Advance(tick)
	assert.Equal(t, "C", a.Buffer())
}

func TestPasteSignalWithoutClearOnPaste(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)
	mem.Copy("B")
	clock.Advance(tick)

	assert.False(t, a.HandlePasteSignal())
	clock.Advance(DefaultPasteDelay)
	assert.Equal(t, "A\nB", a.Buffer())
	assert.Equal(t, "A\nB", mem.Text())
}

func TestPasteSignalWhileDisabled(t *testing.T) {
	a, _, clock := newTestAccumulator(t, Options{ClearOnPaste: true})
	assert.False(t, a.HandlePasteSignal())
	assert.Equal(t, 0, clock.Pending())
}

func TestPendingClearSurvivesDisable(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, Options{Enabled: true, ClearOnPaste: true})
	mem.Copy("A")
	clock.Advance(tick)
	require.True(t, a.HandlePasteSignal())

	a.SetEnabled(false)
	require.Equal(t, "A", mem.Text())
	clock.Advance(DefaultPasteDelay)

	assert.Empty(t, mem.Text(), "scheduled clear still runs")
}

func TestManualClear(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)

	a.Clear()
	assert.Empty(t, a.Buffer())
	assert.Empty(t, mem.Text())
	assert.Equal(t, mem.ChangeCount(), a.Snapshot().ChangeCount)
}

func TestReadFailureOnlyAdvancesCounter(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)

	mem.Copy("image")
	mem.FailReads(errors.New("not text"))
	clock.Advance(tick)
	assert.Equal(t, "A", a.Buffer())
	assert.Equal(t, mem.ChangeCount(), a.Snapshot().ChangeCount)

	// The failed change is not retried once reads work again.
	mem.FailReads(nil)
	clock.Advance(tick)
	assert.Equal(t, "A", a.Buffer())
}

func TestEmptyPayloadIsIgnored(t *testing.T) {
	a, mem, clock := newTestAccumulator(t, enabledOpts())
	mem.Copy("A")
	clock.Advance(tick)

	require.NoError(t, mem.Clear())
	clock.Advance(tick)
	assert.Equal(t, "A", a.Buffer())
	assert.Equal(t, mem.ChangeCount(), a.Snapshot().ChangeCount)
}

type failingWrites struct {
	*clip.Memory
	fail bool
}

func (f *failingWrites) WriteText(text string) error {
	if f.fail {
		return errors.New("pasteboard locked")
	}
	return f.Memory.WriteText(text)
}

func TestWriteFailureKeepsPreviousBuffer(t *testing.T) {
	backend := &failingWrites{Memory: clip.NewMemory()}
	clock := schedule.NewManual()
	a := New(backend, clock, enabledOpts())
	defer a.Close()

	backend.Copy("A")
	clock.Advance(tick)
	require.Equal(t, "A", a.Buffer())

	backend.fail = true
	backend.Copy("B")
	clock.Advance(tick)
	assert.Equal(t, "A", a.Buffer())
	assert.Equal(t, backend.ChangeCount(), a.Snapshot().ChangeCount)
}

type stateLog struct {
	mu     sync.Mutex
	states []message.State
}

func (l *stateLog) Publish(st message.State) {
	l.mu.Lock()
	l.states = append(l.states, st)
	l.mu.Unlock()
}

func (l *stateLog) last() message.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[len(l.states)-1]
}

func TestNotifierSeesEveryChange(t *testing.T) {
	log := &stateLog{}
	opts := enabledOpts()
	opts.Notifier = log
	a, mem, clock := newTestAccumulator(t, opts)
	require.Len(t, log.states, 1, "initial enable publishes")

	mem.Copy("A")
	clock.Advance(tick)
	assert.Equal(t, "A", log.last().Buffer)

	clock.Advance(tick)
	assert.Len(t, log.states, 2, "a no-op poll publishes nothing")

	a.SetClearOnPaste(true)
	assert.True(t, log.last().ClearOnPaste)
	a.SetInsertNewline(false)
	assert.False(t, log.last().InsertNewline)
	a.SetEnabled(false)
	assert.False(t, log.last().Enabled)
	assert.Empty(t, log.last().Buffer)
	assert.Equal(t, "in-memory", log.last().Backend)
	assert.False(t, log.last().UpdatedAt.IsZero())
}

func TestDefaults(t *testing.T) {
	a, _, _ := newTestAccumulator(t, Options{})
	assert.Equal(t, DefaultPasteDelay, a.PasteDelay())
	assert.Equal(t, DefaultPollInterval, a.pollInterval)
}

func TestRealSchedulerAccumulates(t *testing.T) {
	mem := clip.NewMemory()
	a := New(mem, schedule.Real{}, Options{
		Enabled:       true,
		ClearOnPaste:  true,
		InsertNewline: true,
		PollInterval:  2 * time.Millisecond,
		PasteDelay:    2 * time.Millisecond,
	})
	defer a.Close()

	mem.Copy("A")
	require.Eventually(t, func() bool { return a.Buffer() == "A" }, time.Second, time.Millisecond)
	mem.Copy("B")
	require.Eventually(t, func() bool { return a.Buffer() == "A\nB" }, time.Second, time.Millisecond)
	assert.Equal(t, "A\nB", mem.Text())

	require.True(t, a.HandlePasteSignal())
	require.Eventually(t, func() bool { return a.Buffer() == "" && mem.Text() == "" }, time.Second, time.Millisecond)
}
