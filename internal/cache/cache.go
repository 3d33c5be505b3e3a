package cache

import (
	"sync"

	"github.com/flickshot/flickshot/pkg/core"
)

// NeighborCache holds the last merged state of every remote player. There is
// no expiry; entries leave through Remove or Reset.
type NeighborCache struct {
	mu      sync.RWMutex
	players map[string]core.PlayerCore
}

func NewNeighborCache() *NeighborCache {
	return &NeighborCache{
		players: make(map[string]core.PlayerCore),
	}
}

// Get returns a copy of the player with the given id.
func (c *NeighborCache) Get(id string) (core.PlayerCore, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.players[id]
	if !ok {
		return core.PlayerCore{}, false
	}
	return p.Clone(), true
}

// Merge applies patch on top of the stored player (or an empty one) and
// returns the result.
func (c *NeighborCache) Merge(patch core.PlayerPatch) core.PlayerCore {
	c.mu.Lock()
	defer c.mu.Unlock()
	merged := c.players[patch.ID].Merge(patch)
	c.players[patch.ID] = merged
	return merged.Clone()
}

// Remove deletes a player. It reports whether one was present.
func (c *NeighborCache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.players[id]
	delete(c.players, id)
	return ok
}

// Len returns the number of known neighbors.
func (c *NeighborCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.players)
}

// Snapshot returns a deep copy of every neighbor.
func (c *NeighborCache) Snapshot() map[string]core.PlayerCore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]core.PlayerCore, len(c.players))
	for id, p := range c.players {
		out[id] = p.Clone()
	}
	return out
}

// Reset clears all neighbors.
func (c *NeighborCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players = make(map[string]core.PlayerCore)
}
