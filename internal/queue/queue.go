package queue

import (
	"sync"
)

// Keyed is a thread-safe pending set holding at most one value per key.
// Putting an existing key overwrites the value but keeps its place in line.
//
// Removal only marks the key's slot dead; dead slots are compacted away in
// bulk, so Delete and TakeFunc stay linear in the number of keys.
type Keyed[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]item[V]
	order []slot[K]
	dead  int
}

type item[V any] struct {
	v   V
	pos int
}

type slot[K comparable] struct {
	k    K
	live bool
}

// New creates a new empty queue.
func New[K comparable, V any]() *Keyed[K, V] {
	return &Keyed[K, V]{
		items: make(map[K]item[V]),
	}
}

// Put stores v under k. It reports whether an older value was replaced.
func (q *Keyed[K, V]) Put(k K, v V) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, existed := q.items[k]
	if !existed {
		it.pos = len(q.order)
		q.order = append(q.order, slot[K]{k: k, live: true})
	}
	it.v = v
	q.items[k] = it
	return existed
}

// Delete drops k. It reports whether anything was pending.
func (q *Keyed[K, V]) Delete(k K) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.items[k]
	if !ok {
		return false
	}
	q.remove(k, it.pos)
	return true
}

// TakeFunc visits every pending key in first-arrival order and removes the
// ones for which fn returns true. It returns how many were removed. fn runs
// with the queue locked and must not call back into it.
func (q *Keyed[K, V]) TakeFunc(fn func(k K, v V) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	taken := 0
	for i, s := range q.order {
		if !s.live {
			continue
		}
		if fn(s.k, q.items[s.k].v) {
			delete(q.items, s.k)
			q.order[i].live = false
			taken++
		}
	}
	q.compact()
	return taken
}

// Len returns the number of pending keys.
func (q *Keyed[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes everything.
func (q *Keyed[K, V]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make(map[K]item[V])
	clear(q.order)
	q.order = q.order[:0]
	q.dead = 0
}

// caller holds mu
func (q *Keyed[K, V]) remove(k K, pos int) {
	delete(q.items, k)
	q.order[pos].live = false
	q.dead++
	if q.dead > len(q.order)/2 {
		q.compact()
	}
}

// caller holds mu
func (q *Keyed[K, V]) compact() {
	kept := q.order[:0]
	for _, s := range q.order {
		if !s.live {
			continue
		}
		it := q.items[s.k]
		it.pos = len(kept)
		q.items[s.k] = it
		kept = append(kept, s)
	}
	clear(q.order[len(kept):])
	q.order = kept
	q.dead = 0
}
