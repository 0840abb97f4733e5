package cache

import (
	"maps"
	"sync"

	"github.com/hunteroverlay/extension/pkg/core"
)

// TrapCache holds the traps the host reports, keyed by tile. The host
// writes from its game thread while frames read snapshots.
type TrapCache struct {
	mu    sync.RWMutex
	traps map[core.WorldPoint]core.Trap
}

func NewTrapCache() *TrapCache {
	return &TrapCache{
		traps: make(map[core.WorldPoint]core.Trap),
	}
}

// Set inserts or replaces the trap at t.Location.
func (c *TrapCache) Set(t core.Trap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traps[t.Location] = t
}

func (c *TrapCache) Get(wp core.WorldPoint) (core.Trap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.traps[wp]
	return t, ok
}

// Remove deletes the trap at wp and reports whether one was there.
func (c *TrapCache) Remove(wp core.WorldPoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.traps[wp]
	delete(c.traps, wp)
	return ok
}

func (c *TrapCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traps = make(map[core.WorldPoint]core.Trap)
}

func (c *TrapCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.traps)
}

// Snapshot returns a copy of the tracked traps. Later writes to the cache
// are not visible through it.
func (c *TrapCache) Snapshot() map[core.WorldPoint]core.Trap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.traps)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Inc increments the counter and returns the new value.
func (c *SafeCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v++
	return c.v
}
