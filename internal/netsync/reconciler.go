package netsync

import (
	"time"

	"github.com/flickshot/flickshot/internal/cache"
	"github.com/flickshot/flickshot/internal/queue"
	"github.com/flickshot/flickshot/pkg/core"
)

// Reconciler turns an unbounded stream of remote updates into a neighbor view
// that changes at most once per minInterval per player. Pending updates are
// coalesced: a newer one replaces the older one for the same player.
//
// Reconciler is not safe for concurrent use on its own; Client serializes
// every call through its mutex.
type Reconciler struct {
	minInterval time.Duration
	hold        time.Duration
	self        string

	pending     *queue.Keyed[string, core.PlayerPatch]
	lastApplied map[string]time.Time
	neighbors   *cache.NeighborCache
	departed    *cache.Tombstones

	applied   uint64
	coalesced uint64
	ignored   uint64
}

// NewReconciler creates a Reconciler applying at most maxHz updates per second
// per player. hold is how long a departed id stays ignored.
func NewReconciler(maxHz int, hold time.Duration) *Reconciler {
	if maxHz <= 0 {
		maxHz = 20
	}
	return &Reconciler{
		minInterval: time.Second / time.Duration(maxHz),
		hold:        hold,
		pending:     queue.New[string, core.PlayerPatch](),
		lastApplied: make(map[string]time.Time),
		neighbors:   cache.NewNeighborCache(),
		departed:    cache.NewTombstones(),
	}
}

// MinInterval is the spacing enforced between two applied updates of one player.
func (r *Reconciler) MinInterval() time.Duration {
	return r.minInterval
}

// SetSelf records the local id. Updates carrying it are ignored from now on
// and any neighbor entry under it is dropped.
func (r *Reconciler) SetSelf(id string) {
	r.self = id
	r.forget(id)
}

// Enqueue queues p for the next drain. It reports false when p was ignored
// because it describes the local player or a recently departed one.
func (r *Reconciler) Enqueue(p core.PlayerPatch, now time.Time) bool {
	if p.ID == "" || p.ID == r.self || r.departed.Buried(p.ID, now) {
		r.ignored++
		return false
	}
	if r.pending.Put(p.ID, p) {
		r.coalesced++
	}
	return true
}

// Depart removes id from the neighbor view and the pending queue at once.
func (r *Reconciler) Depart(id string, now time.Time) bool {
	present := r.neighbors.Remove(id)
	r.forget(id)
	if r.hold > 0 {
		r.departed.Bury(id, now.Add(r.hold))
	}
	return present
}

// Drain applies every pending update whose player is due and returns how
// many were applied. Players applied less than minInterval ago stay queued.
// One pass over the queue, so the cost is linear in the pending count.
func (r *Reconciler) Drain(now time.Time) int {
	n := r.pending.TakeFunc(func(id string, p core.PlayerPatch) bool {
		if last, ok := r.lastApplied[id]; ok && now.Sub(last) < r.minInterval {
			return false
		}
		r.neighbors.Merge(p)
		r.lastApplied[id] = now
		return true
	})
	r.applied += uint64(n)
	return n
}

// Neighbors returns a deep copy of the neighbor view.
func (r *Reconciler) Neighbors() map[string]core.PlayerCore {
	return r.neighbors.Snapshot()
}

// Neighbor returns one neighbor.
func (r *Reconciler) Neighbor(id string) (core.PlayerCore, bool) {
	return r.neighbors.Get(id)
}

// Pending returns the number of players with a queued update.
func (r *Reconciler) Pending() int {
	return r.pending.Len()
}

// NeighborCount returns the number of known neighbors.
func (r *Reconciler) NeighborCount() int {
	return r.neighbors.Len()
}

// Reset drops every neighbor, pending update, timestamp and tombstone.
func (r *Reconciler) Reset() {
	r.neighbors.Reset()
	r.pending.Clear()
	r.lastApplied = make(map[string]time.Time)
	r.departed.Reset()
}

func (r *Reconciler) forget(id string) {
	r.neighbors.Remove(id)
	r.pending.Delete(id)
	delete(r.lastApplied, id)
}
