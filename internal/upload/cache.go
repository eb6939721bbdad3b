package upload

import (
	"sync"

	"github.com/kozaktomas/sigboard/internal/fingerprint"
)

// RingCache is a bounded FIFO of upload properties keyed by token.
// Inserting beyond capacity evicts the oldest entry.
type RingCache struct {
	mu       sync.Mutex
	entries  []*fingerprint.Properties
	capacity int
}

// NewRingCache creates a cache holding at most capacity entries.
func NewRingCache(capacity int) *RingCache {
	return &RingCache{
		entries:  make([]*fingerprint.Properties, 0, max(capacity, 0)),
		capacity: capacity,
	}
}

// Insert adds props to the back of the cache. An entry with the same token
// is replaced.
func (c *RingCache) Insert(props *fingerprint.Properties) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		return
	}
	if i := c.indexLocked(props.Token); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
	c.entries = append(c.entries, props)
	if len(c.entries) > c.capacity {
		c.entries[0] = nil
		c.entries = c.entries[1:]
	}
}

// Remove takes the entry for token out of the cache.
func (c *RingCache) Remove(token string) (*fingerprint.Properties, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(token)
	if i < 0 {
		return nil, false
	}
	props := c.entries[i]
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return props, true
}

// Peek returns the entry for token without removing it.
func (c *RingCache) Peek(token string) (*fingerprint.Properties, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexLocked(token); i >= 0 {
		return c.entries[i], true
	}
	return nil, false
}

func (c *RingCache) indexLocked(token string) int {
	for i, p := range c.entries {
		if p.Token == token {
			return i
		}
	}
	return -1
}

// Len returns the number of cached entries.
func (c *RingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *RingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make([]*fingerprint.Properties, 0, max(c.capacity, 0))
}
