// Package hub fans accumulator state out to watchers.
// It is transport-agnostic: subscribers register, receive snapshots through
// Send, and unregister when their stream ends.
package hub

import (
	"log/slog"
	"sync"

	"go.klb.dev/cumulus/internal/message"
)

// Subscriber is anything that wants state updates from the hub.
type Subscriber interface {
	ID() string
	// Send delivers a snapshot to the subscriber. Must be non-blocking.
	Send(message.State)
}

// Hub routes state snapshots from the accumulator to all subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]Subscriber
	latest message.State
	have   bool
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{subs: make(map[string]Subscriber)}
}

// Register adds a subscriber and immediately delivers the latest state, if
// one has been published.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subs[s.ID()] = s
	latest, have := h.latest, h.have
	total := len(h.subs)
	h.mu.Unlock()

	slog.Info("watcher registered", "watcher", s.ID(), "total", total)

	if have {
		s.Send(latest)
	}
}

// Unregister removes a subscriber from the hub.
func (h *Hub) Unregister(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s.ID())
	total := len(h.subs)
	h.mu.Unlock()

	slog.Info("watcher unregistered", "watcher", s.ID(), "total", total)
}

// Publish stores st as the latest state and fans it out to every subscriber.
func (h *Hub) Publish(st message.State) {
	h.mu.Lock()
	h.latest = st
	h.have = true
	targets := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.Send(st)
	}
}

// Latest returns the most recently published state.
func (h *Hub) Latest() (message.State, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.have
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
