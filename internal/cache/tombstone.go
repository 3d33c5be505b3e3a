package cache

import (
	"sync"
	"time"
)

// Tombstones remembers recently departed ids until a deadline passes.
type Tombstones struct {
	mu    sync.Mutex
	until map[string]time.Time
}

// NewTombstones creates an empty set.
func NewTombstones() *Tombstones {
	return &Tombstones{
		until: make(map[string]time.Time),
	}
}

// Bury marks id as departed until the given time.
func (t *Tombstones) Bury(id string, until time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.until[id] = until
}

// Buried reports whether id is still held at now. Expired entries are dropped.
func (t *Tombstones) Buried(id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.until[id]
	if !ok {
		return false
	}
	if !now.Before(deadline) {
		delete(t.until, id)
		return false
	}
	return true
}

// Reset forgets everything.
func (t *Tombstones) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.until = make(map[string]time.Time)
}
