// Package ipc provides helpers for the local socket used by the CLI tools
// (status/set/clear/paste-signal/watch) to talk to a running cumulus daemon.
//
// The channel is plain gRPC served over a Unix domain socket (a named pipe on
// Windows), using the same control service as the optional TCP listener but
// without a token: the socket is local and owner-restricted by the OS.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - $CUMULUS_SOCKET when set
//   - Linux / macOS: $XDG_RUNTIME_DIR/cumulus.sock, else $TMPDIR/cumulus.sock
//   - Windows:       \\.\pipe\cumulus
func SocketPath() string {
	if s := os.Getenv("CUMULUS_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a cumulus daemon appears to be listening on the
// IPC socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := Dial()
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a net.Listener on the IPC socket path.
func Listen() (net.Listener, error) {
	return listenIPC(SocketPath())
}

// Dial connects to the IPC socket.
func Dial() (net.Conn, error) {
	return dialIPC(SocketPath())
}
