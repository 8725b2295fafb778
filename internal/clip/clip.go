// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go      : macOS via golang.design/x/clipboard + cgo changeCount
//	clip_darwin_nocgo.go: macOS without cgo, always unavailable
//	clip_windows.go     : Windows via golang.design/x/clipboard + GetClipboardSequenceNumber
//	clip_linux.go       : Linux via golang.design/x/clipboard or atotto/clipboard, emulated counter
//	clip_other.go       : everything else, always unavailable
//
// When no system clipboard is reachable the in-memory Memory backend stands in.
package clip

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUnavailable is returned by New when a system clipboard was requested but
// cannot be used on this host.
var ErrUnavailable = errors.New("system clipboard unavailable")

// Backend is the clipboard resource the accumulator polls and rewrites.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ChangeCount returns a value that increases every time the clipboard
	// contents change, whoever changed them.
	ChangeCount() int64

	// ReadText returns the current text payload, or "" if the clipboard holds
	// no text.
	ReadText() (string, error)

	// WriteText replaces the clipboard contents with text.
	WriteText(text string) error

	// Clear empties the clipboard.
	Clear() error

	// Close releases any resources held by the backend.
	Close()
}

// Kind selects a backend in New.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindSystem Kind = "system"
	KindMemory Kind = "memory"
)

// ParseKind converts a flag value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAuto:
		return KindAuto, nil
	case KindSystem, KindMemory:
		return k, nil
	default:
		return "", fmt.Errorf("unknown clipboard backend %q (want auto|system|memory)", s)
	}
}

// New returns the backend for kind. KindAuto falls back to an in-memory
// clipboard when the system one is unavailable, so the daemon still runs on
// headless hosts.
func New(kind Kind) (Backend, error) {
	switch kind {
	case KindMemory:
		return NewMemory(), nil
	case KindSystem:
		b, err := newSystem()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return b, nil
	case KindAuto, "":
		b, err := newSystem()
		if err != nil {
			slog.Warn("clipboard unavailable, using in-memory clipboard", "err", err)
			return NewMemory(), nil
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", kind)
	}
}
