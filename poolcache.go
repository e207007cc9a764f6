package melwalletd

import (
	"sync"
	"time"
)

// poolCacheTTL bounds how long a cached melswap_info answer is served
// before the daemon goes back to the node.
const poolCacheTTL = 10 * time.Second

// PoolState is a constant-product AMM pool's state, as returned by the
// melswap_info passthrough call.
type PoolState struct {
	PoolKey     string
	LeftDenom   string
	RightDenom  string
	LeftAmount  string
	RightAmount string
	Price       float64
}

type poolCacheEntry struct {
	state   *PoolState
	fetched time.Time
}

// poolCache is a small in-memory, non-durable TTL cache of last-seen
// melswap pool state, keyed by pool key, so melswap_info doesn't round-
// trip to the node on every call. Unlike every other piece of daemon
// state this is deliberately not persisted: a stale entry is just
// re-fetched on expiry, never a correctness concern.
type poolCache struct {
	mu      sync.Mutex
	entries map[string]poolCacheEntry
}

func newPoolCache() *poolCache {
	return &poolCache{entries: make(map[string]poolCacheEntry)}
}

// get returns the cached state for poolKey if it was fetched within the
// last poolCacheTTL, and whether a cached entry was usable at all.
func (c *poolCache) get(poolKey string) (*PoolState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[poolKey]
	if !ok || time.Since(entry.fetched) > poolCacheTTL {
		return nil, false
	}
	return entry.state, true
}

// set records state as the freshest known value for poolKey.
func (c *poolCache) set(poolKey string, state *PoolState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[poolKey] = poolCacheEntry{state: state, fetched: time.Now()}
}
