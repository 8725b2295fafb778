package clip

import "sync"

// contentCounter emulates a change counter for clipboards that do not expose
// one. The count advances when an observed payload differs from the previous
// observation and on every write or clear made through the backend.
type contentCounter struct {
	mu    sync.Mutex
	count int64
	last  string
}

func newContentCounter(initial string) *contentCounter {
	return &contentCounter{last: initial}
}

// observe records the payload currently on the clipboard and returns the count.
func (c *contentCounter) observe(text string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text != c.last {
		c.last = text
		c.count++
	}
	return c.count
}

func (c *contentCounter) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// wrote records a write made by this process.
func (c *contentCounter) wrote(text string) {
	c.mu.Lock()
	c.last = text
	c.count++
	c.mu.Unlock()
}
