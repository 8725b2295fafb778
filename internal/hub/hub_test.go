package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.klb.dev/cumulus/internal/message"
)

type recorder struct {
	id  string
	got []message.State
}

func (r *recorder) ID() string            { return r.id }
func (r *recorder) Send(st message.State) { r.got = append(r.got, st) }

func TestRegisterDeliversLatest(t *testing.T) {
	h := New()
	early := &recorder{id: "early"}
	h.Register(early)
	assert.Empty(t, early.got, "nothing published yet")

	h.Publish(message.State{Buffer: "A"})
	late := &recorder{id: "late"}
	h.Register(late)

	assert.Equal(t, []message.State{{Buffer: "A"}}, early.got)
	assert.Equal(t, []message.State{{Buffer: "A"}}, late.got)
	assert.Equal(t, 2, h.Count())
}

func TestPublishFansOut(t *testing.T) {
	h := New()
	a, b := &recorder{id: "a"}, &recorder{id: "b"}
	h.Register(a)
	h.Register(b)

	h.Publish(message.State{Buffer: "A"})
	h.Publish(message.State{Buffer: "A\nB"})

	for _, r := range []*recorder{a, b} {
		if assert.Len(t, r.got, 2) {
			assert.Equal(t, "A\nB", r.got[1].Buffer)
		}
	}

	latest, ok := h.Latest()
	assert.True(t, ok)
	assert.Equal(t, "A\nB", latest.Buffer)
}

func TestUnregister(t *testing.T) {
	h := New()
	r := &recorder{id: "r"}
	h.Register(r)
	h.Unregister(r)
	h.Publish(message.State{Buffer: "ignored"})

	assert.Empty(t, r.got)
	assert.Equal(t, 0, h.Count())
}

func TestRegisterSameIDReplaces(t *testing.T) {
	h := New()
	first, second := &recorder{id: "x"}, &recorder{id: "x"}
	h.Register(first)
	h.Register(second)
	h.Publish(message.State{Buffer: "A"})

	assert.Empty(t, first.got)
	assert.Len(t, second.got, 1)
	assert.Equal(t, 1, h.Count())
}
