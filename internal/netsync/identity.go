package netsync

import (
	"sync"

	"github.com/flickshot/flickshot/pkg/core"
)

// identity is the local player as assigned by the server. The ready channel
// closes exactly once, on the first assignment.
type identity struct {
	mu        sync.Mutex
	self      core.PlayerCore
	assigned  bool
	ready     chan struct{}
	callbacks []func(core.PlayerCore)
}

func newIdentity() *identity {
	return &identity{ready: make(chan struct{})}
}

// assign stores p. On the first call it closes ready and returns the
// callbacks that must be run, outside any client lock.
func (id *identity) assign(p core.PlayerCore) []func(core.PlayerCore) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.self = p.Clone()
	if id.assigned {
		return nil
	}
	id.assigned = true
	close(id.ready)
	cbs := id.callbacks
	id.callbacks = nil
	return cbs
}

// onAssigned registers fn. It reports true when the identity is already known,
// in which case fn was not stored and the caller must run it.
func (id *identity) onAssigned(fn func(core.PlayerCore)) (core.PlayerCore, bool) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.assigned {
		return id.self.Clone(), true
	}
	id.callbacks = append(id.callbacks, fn)
	return core.PlayerCore{}, false
}

func (id *identity) get() (core.PlayerCore, bool) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if !id.assigned {
		return core.PlayerCore{}, false
	}
	return id.self.Clone(), true
}

func (id *identity) selfID() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.self.ID
}
