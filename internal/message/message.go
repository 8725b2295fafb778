// Package message defines the data exchanged over the cumulus control surface.
//
// Every type here is JSON-encoded: gRPC calls carry it through the "json"
// codec registered by package control, and the HTTP endpoint writes it as-is.
package message

import (
	"time"
	"unicode/utf8"
)

// State is an observable snapshot of the accumulator.
type State struct {
	Enabled       bool      `json:"enabled"`
	ClearOnPaste  bool      `json:"clear_on_paste"`
	InsertNewline bool      `json:"insert_newline"`
	Buffer        string    `json:"buffer"`
	ChangeCount   int64     `json:"change_count"`
	PendingClears int       `json:"pending_clears"`
	Backend       string    `json:"backend,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusRequest asks for the current state.
type StatusRequest struct{}

// StatusResponse is returned by Status, SetOptions and Clear.
type StatusResponse struct {
	State    State  `json:"state"`
	Version  string `json:"version,omitempty"`
	Watchers int    `json:"watchers"`
}

// SetOptionsRequest changes toggles. Nil fields are left untouched.
type SetOptionsRequest struct {
	Enabled       *bool `json:"enabled,omitempty"`
	ClearOnPaste  *bool `json:"clear_on_paste,omitempty"`
	InsertNewline *bool `json:"insert_newline,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r *SetOptionsRequest) Empty() bool {
	return r.Enabled == nil && r.ClearOnPaste == nil && r.InsertNewline == nil
}

// ClearRequest asks for the buffer and the live clipboard to be cleared.
type ClearRequest struct{}

// PasteSignalRequest reports that the user pasted. Source names the
// collaborator that detected it (hotkey tool, CLI, HTTP client).
type PasteSignalRequest struct {
	Source string `json:"source,omitempty"`
}

// PasteSignalResponse reports whether a delayed clear was scheduled.
type PasteSignalResponse struct {
	Scheduled bool  `json:"scheduled"`
	DelayMS   int64 `json:"delay_ms,omitempty"`
}

// WatchRequest opens a state stream.
type WatchRequest struct{}

// ErrorResponse is the HTTP error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Bool returns a pointer to b, for building SetOptionsRequest literals.
func Bool(b bool) *bool { return &b }

// Preview shortens s to at most n runes, appending "…" when truncated.
func Preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
