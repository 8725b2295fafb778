//go:build windows

package clip

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.design/x/clipboard"
	"golang.org/x/sys/windows"
)

var (
	user32                         = windows.NewLazySystemDLL("user32.dll")
	procGetClipboardSequenceNumber = user32.NewProc("GetClipboardSequenceNumber")
	procOpenClipboard              = user32.NewProc("OpenClipboard")
	procEmptyClipboard             = user32.NewProc("EmptyClipboard")
	procCloseClipboard             = user32.NewProc("CloseClipboard")
)

// Another process may hold the clipboard open briefly.
const (
	openAttempts = 5
	openBackoff  = 20 * time.Millisecond
)

type windowsBackend struct{}

// newSystem returns the Windows clipboard backend. The sequence number that
// Windows bumps on every clipboard change serves as the change counter.
func newSystem() (Backend, error) {
	if err := procGetClipboardSequenceNumber.Find(); err != nil {
		return nil, fmt.Errorf("user32: %w", err)
	}
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("clipboard init: %w", err)
	}
	return &windowsBackend{}, nil
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) ChangeCount() int64 {
	r, _, _ := procGetClipboardSequenceNumber.Call()
	return int64(uint32(r))
}

func (b *windowsBackend) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (b *windowsBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// Clear empties the clipboard. OpenClipboard ties the open clipboard to the
// calling thread, so the goroutine stays on one thread until CloseClipboard.
func (b *windowsBackend) Clear() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var (
		opened  bool
		openErr error
	)
	for i := 0; i < openAttempts && !opened; i++ {
		var r uintptr
		r, _, openErr = procOpenClipboard.Call(0)
		opened = r != 0
		if !opened {
			time.Sleep(openBackoff)
		}
	}
	if !opened {
		return fmt.Errorf("OpenClipboard: %w", openErr)
	}
	defer closeClipboard()

	if r, _, err := procEmptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard: %w", err)
	}
	return nil
}

func closeClipboard() {
	if r, _, err := procCloseClipboard.Call(); r == 0 {
		slog.Warn("CloseClipboard failed", "err", err)
	}
}

func (b *windowsBackend) Close() {}
