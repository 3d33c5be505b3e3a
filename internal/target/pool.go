package target

import (
	"errors"
	"fmt"
)

var (
	// ErrDoubleRelease is returned when a slot that is already free is released.
	ErrDoubleRelease = errors.New("target already released")
	// ErrForeignTarget is returned for targets that do not belong to the pool.
	ErrForeignTarget = errors.New("target does not belong to this pool")
)

// Pool is a fixed-capacity arena of targets. Acquire and Release do not
// allocate. A Pool is not safe for concurrent use; the scene manager owns it.
type Pool struct {
	slots []Target
	free  []int // stack of free slot indexes
}

// NewPool allocates every target up front.
func NewPool(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	p := &Pool{
		slots: make([]Target, capacity),
		free:  make([]int, capacity),
	}
	for i := range p.slots {
		p.slots[i].ID = i
		// Hand out low indexes first.
		p.free[i] = capacity - 1 - i
	}
	return p
}

// Acquire hands out a free target with a fresh transform. It returns false
// when the pool is exhausted; callers should stop spawning.
func (p *Pool) Acquire() (*Target, bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]

	t := &p.slots[idx]
	t.reset()
	t.generation++
	t.active = true
	return t, true
}

// Release returns a target to the free list.
func (p *Pool) Release(t *Target) error {
	if t == nil || t.ID < 0 || t.ID >= len(p.slots) || &p.slots[t.ID] != t {
		return ErrForeignTarget
	}
	if !t.active {
		return fmt.Errorf("slot %d: %w", t.ID, ErrDoubleRelease)
	}
	t.active = false
	t.Visible = false
	t.Shootable = false
	t.Animating = false
	p.free = append(p.free, t.ID)
	return nil
}

// Get returns the target in slot id, or nil when id is out of range.
func (p *Pool) Get(id int) *Target {
	if id < 0 || id >= len(p.slots) {
		return nil
	}
	return &p.slots[id]
}

// Cap returns the fixed capacity.
func (p *Pool) Cap() int {
	return len(p.slots)
}

// Available returns the number of free slots.
func (p *Pool) Available() int {
	return len(p.free)
}

// InUse returns the number of handed-out slots.
func (p *Pool) InUse() int {
	return len(p.slots) - len(p.free)
}
