package clip

import "sync"

// Memory is an in-process clipboard. Every write and clear advances its
// change counter, the way NSPasteboard does.
type Memory struct {
	mu      sync.Mutex
	text    string
	count   int64
	readErr error
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "in-memory" }

func (m *Memory) ChangeCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return "", m.readErr
	}
	return m.text, nil
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	m.text = text
	m.count++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.text = ""
	m.count++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() {}

// Copy simulates another application copying text.
func (m *Memory) Copy(text string) { _ = m.WriteText(text) }

// Text returns the current contents without going through ReadText.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// FailReads makes ReadText return err until called again with nil.
// The change counter keeps moving.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}
