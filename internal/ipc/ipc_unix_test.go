//go:build !windows

package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortSocket keeps the path under the sun_path limit on macOS.
func shortSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cu")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

func TestSocketPathOverride(t *testing.T) {
	t.Setenv("CUMULUS_SOCKET", "/tmp/custom.sock")
	assert.Equal(t, "/tmp/custom.sock", SocketPath())
}

func TestSocketPathXDG(t *testing.T) {
	t.Setenv("CUMULUS_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/cumulus.sock", SocketPath())
}

func TestListenDialAndStaleSocket(t *testing.T) {
	path := shortSocket(t)
	t.Setenv("CUMULUS_SOCKET", path)
	assert.False(t, IsRunning())

	// A leftover file from a crashed daemon does not block Listen.
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ln, err := Listen()
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	assert.True(t, IsRunning())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = Listen()
	assert.Error(t, err, "a live daemon keeps its socket")

	require.NoError(t, ln.Close())
	assert.False(t, IsRunning())
}
