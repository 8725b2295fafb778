//go:build linux

package clip

import (
	"errors"
	"fmt"
	"log/slog"

	cmdclip "github.com/atotto/clipboard"
	"golang.design/x/clipboard"
)

// newSystem prefers the X11 clipboard and falls back to the xclip / xsel /
// wl-clipboard command-line tools. Neither exposes a change counter, so both
// backends emulate one by comparing content.
func newSystem() (Backend, error) {
	initErr := clipboard.Init()
	if initErr == nil {
		b := &x11Backend{}
		b.counter = newContentCounter(b.read())
		return b, nil
	}
	slog.Debug("X11 clipboard unavailable, trying clipboard commands", "err", initErr)

	if cmdclip.Unsupported {
		return nil, fmt.Errorf("clipboard init: %w; no xclip, xsel or wl-clipboard found", initErr)
	}
	initial, err := cmdclip.ReadAll()
	if err != nil {
		return nil, errors.Join(initErr, fmt.Errorf("clipboard command: %w", err))
	}
	return &commandBackend{counter: newContentCounter(initial)}, nil
}

type x11Backend struct {
	counter *contentCounter
}

func (b *x11Backend) Name() string { return "Linux clipboard (X11)" }

func (b *x11Backend) read() string { return string(clipboard.Read(clipboard.FmtText)) }

func (b *x11Backend) ChangeCount() int64 { return b.counter.observe(b.read()) }

func (b *x11Backend) ReadText() (string, error) { return b.read(), nil }

func (b *x11Backend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	b.counter.wrote(text)
	return nil
}

func (b *x11Backend) Clear() error { return b.WriteText("") }

func (b *x11Backend) Close() {}

type commandBackend struct {
	counter *contentCounter
}

func (b *commandBackend) Name() string { return "Linux clipboard (command)" }

// ChangeCount keeps the previous count when the read fails; the next
// successful read catches up.
func (b *commandBackend) ChangeCount() int64 {
	text, err := cmdclip.ReadAll()
	if err != nil {
		return b.counter.observe(b.counter.lastText())
	}
	return b.counter.observe(text)
}

func (b *commandBackend) ReadText() (string, error) { return cmdclip.ReadAll() }

func (b *commandBackend) WriteText(text string) error {
	if err := cmdclip.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard command write: %w", err)
	}
	b.counter.wrote(text)
	return nil
}

func (b *commandBackend) Clear() error { return b.WriteText("") }

func (b *commandBackend) Close() {}
