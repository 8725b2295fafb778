package clip

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindAuto, false},
		{"auto", KindAuto, false},
		{" System ", KindSystem, false},
		{"memory", KindMemory, false},
		{"pasteboard", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMemory(t *testing.T) {
	b, err := New(KindMemory)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "in-memory", b.Name())
}

func TestNewAutoNeverFails(t *testing.T) {
	b, err := New(KindAuto)
	require.NoError(t, err)
	require.NotNil(t, b)
	b.Close()
}

func TestMemoryCounterAdvancesOnEveryWrite(t *testing.T) {
	m := NewMemory()
	assert.Equal(t, int64(0), m.ChangeCount())

	m.Copy("a")
	assert.Equal(t, int64(1), m.ChangeCount())

	// Identical content still counts as a change, like NSPasteboard.
	m.Copy("a")
	assert.Equal(t, int64(2), m.ChangeCount())

	require.NoError(t, m.Clear())
	assert.Equal(t, int64(3), m.ChangeCount())
	text, err := m.ReadText()
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMemoryFailReads(t *testing.T) {
	m := NewMemory()
	boom := errors.New("not text")
	m.Copy("image bytes")
	m.FailReads(boom)

	_, err := m.ReadText()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), m.ChangeCount())
	assert.Equal(t, "image bytes", m.Text())

	m.FailReads(nil)
	text, err := m.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "image bytes", text)
}

func TestContentCounter(t *testing.T) {
	c := newContentCounter("start")
	assert.Equal(t, int64(0), c.observe("start"))
	assert.Equal(t, int64(0), c.observe("start"))
	assert.Equal(t, int64(1), c.observe("copied"))

	c.wrote("copied")
	assert.Equal(t, int64(2), c.observe("copied"), "own writes advance the count")
	assert.Equal(t, "copied", c.lastText())

	c.wrote("")
	assert.Equal(t, int64(3), c.observe(""))
	assert.Equal(t, int64(4), c.observe("next"))
}
