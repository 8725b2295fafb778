//go:build !windows

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"go.klb.dev/cumulus/internal/accumulator"
	"go.klb.dev/cumulus/internal/clip"
	"go.klb.dev/cumulus/internal/control"
	"go.klb.dev/cumulus/internal/hub"
	"go.klb.dev/cumulus/internal/ipc"
	"go.klb.dev/cumulus/internal/message"
	"go.klb.dev/cumulus/internal/schedule"
)

type daemon struct {
	acc   *accumulator.Accumulator
	mem   *clip.Memory
	clock *schedule.Manual
}

// startDaemon serves the control API on a private IPC socket, the way
// "cumulus run" does, backed by an in-memory clipboard and a manual clock.
func startDaemon(t *testing.T) *daemon {
	t.Helper()
	// Keep the socket path short (sun_path limit) and the config search away
	// from the real home directory.
	dir, err := os.MkdirTemp("", "cu")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("CUMULUS_SOCKET", filepath.Join(dir, "s.sock"))
	t.Setenv("HOME", dir)

	d := &daemon{mem: clip.NewMemory(), clock: schedule.NewManual()}
	h := hub.New()
	d.acc = accumulator.New(d.mem, d.clock, accumulator.Options{
		Enabled:       true,
		InsertNewline: true,
		Notifier:      h,
	})
	t.Cleanup(d.acc.Close)

	ln, err := ipc.Listen()
	require.NoError(t, err)
	srv := grpc.NewServer()
	control.Register(srv, control.New(d.acc, h, "", "test"))
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)
	return d
}

func (d *daemon) copy(text string) {
	d.mem.Copy(text)
	d.clock.Advance(accumulator.DefaultPollInterval)
}

func TestClientCommandsOverIPC(t *testing.T) {
	d := startDaemon(t)
	d.copy("A")
	d.copy("B")

	out, err := execute(t, "buffer")
	require.NoError(t, err)
	assert.Equal(t, "A\nB", out)

	out, err = execute(t, "status", "--json")
	require.NoError(t, err)
	var resp message.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "A\nB", resp.State.Buffer)
	assert.Equal(t, "test", resp.Version)

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ipc (")

	out, err = execute(t, "paste-signal")
	require.NoError(t, err)
	assert.Contains(t, out, "Ignored")

	out, err = execute(t, "set", "--clear-on-paste", "--newline=false")
	require.NoError(t, err)
	assert.Equal(t, "enabled=on clear_on_paste=on newline=off\n", out)

	out, err = execute(t, "paste-signal")
	require.NoError(t, err)
	assert.Equal(t, "Clear scheduled in 200ms.\n", out)
	d.clock.Advance(accumulator.DefaultPasteDelay)
	assert.Empty(t, d.acc.Buffer())

	d.copy("C")
	_, err = execute(t, "clear")
	require.NoError(t, err)
	assert.Empty(t, d.acc.Buffer())
	assert.Empty(t, d.mem.Text())
}

func TestSetWithoutFlags(t *testing.T) {
	startDaemon(t)
	_, err := execute(t, "set")
	assert.ErrorIs(t, err, errNothingToSet)
}

func TestNoDaemon(t *testing.T) {
	dir, err := os.MkdirTemp("", "cu")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("CUMULUS_SOCKET", filepath.Join(dir, "missing.sock"))
	t.Setenv("HOME", dir)

	_, err = execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cumulus daemon")
}
