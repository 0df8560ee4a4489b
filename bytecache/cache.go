package bytecache

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned by the Try* methods when the shard (or key-map) lock
// they need is currently held by another goroutine. Callers that would
// rather skip caching than stall — the response writer, notably — use
// this to fail fast instead of blocking on a contended shard.
var ErrBusy = errors.New("bytecache: lock contended")

// ShardedCache is a thread-safe, byte-budgeted fan-out of Shards. Get and
// Insert always succeed (blocking briefly on a shard lock if needed);
// TryGet and TryInsert never block, failing with ErrBusy instead.
//
// Lock order, enforced throughout this package: key-map -> shard ->
// metadata. No two shard locks are ever held simultaneously.
type ShardedCache struct {
	shards        []*Shard
	shardCapBytes int64

	keyMu      sync.Mutex
	keyToShard map[string]int

	metaMu           sync.Mutex
	sizePerShard     []int64
	nextInsertCursor int

	metrics Metrics
}

// New builds a ShardedCache per cfg. Returns an error if cfg.TotalBytes is
// not evenly divisible by cfg.Shards, or either is non-positive.
func New(cfg Config) (*ShardedCache, error) {
	perShard, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	m := cfg.Metrics
	if m == nil {
		m = NoopMetrics{}
	}

	shards := make([]*Shard, cfg.Shards)
	for i := range shards {
		shards[i] = newShard(perShard, m)
	}

	return &ShardedCache{
		shards:        shards,
		shardCapBytes: perShard,
		keyToShard:    make(map[string]int),
		sizePerShard:  make([]int64, cfg.Shards),
		metrics:       m,
	}, nil
}

// Get returns the cached bytes for key and the instant they were stored.
// A miss (including one discovered via a stale key->shard mapping) returns
// ok=false and cleans up the mapping.
func (c *ShardedCache) Get(key string) (value []byte, lastUpdated time.Time, ok bool) {
	idx, found := c.lookupShard(key)
	if !found {
		return nil, time.Time{}, false
	}
	value, lastUpdated, ok = c.shards[idx].Get(key)
	if !ok {
		c.forgetKey(key)
	}
	return value, lastUpdated, ok
}

// TryGet is the non-blocking variant of Get. It returns ErrBusy instead
// of waiting if the owning shard's lock is currently held.
func (c *ShardedCache) TryGet(key string) (value []byte, lastUpdated time.Time, ok bool, err error) {
	idx, found := c.lookupShard(key)
	if !found {
		return nil, time.Time{}, false, nil
	}
	value, lastUpdated, ok, err = c.shards[idx].TryGet(key)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	if !ok {
		c.forgetKey(key)
	}
	return value, lastUpdated, ok, nil
}

// Insert stores key->value, resolving a shard via the insertion-balancing
// policy (findInsertionShard). Blocks briefly on the chosen shard's lock.
func (c *ShardedCache) Insert(key string, value []byte) {
	size := int64(len(value))
	idx := c.findInsertionShard(size)

	c.keyMu.Lock()
	c.keyToShard[key] = idx
	c.keyMu.Unlock()

	s := c.shards[idx]
	s.mu.Lock()
	s.insertLocked(key, value)
	c.recordShardSize(idx, s.curBytes)
	s.mu.Unlock()
}

// TryInsert is the non-blocking variant of Insert.
func (c *ShardedCache) TryInsert(key string, value []byte) error {
	size := int64(len(value))
	idx := c.findInsertionShard(size)

	c.keyMu.Lock()
	c.keyToShard[key] = idx
	c.keyMu.Unlock()

	s := c.shards[idx]
	if !s.mu.TryLock() {
		return ErrBusy
	}
	s.insertLocked(key, value)
	c.recordShardSize(idx, s.curBytes)
	s.mu.Unlock()
	return nil
}

// findInsertionShard implements the insertion-balancing policy: starting
// at the shared cursor, scan circularly for the first shard with room for
// size more bytes. If none fits, advance the cursor by one and return
// that shard anyway — its own Insert will evict to make room.
func (c *ShardedCache) findInsertionShard(size int64) int {
	c.metaMu.Lock()
	defer c.metaMu.Unlock()

	n := len(c.shards)
	start := c.nextInsertCursor
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if c.sizePerShard[idx]+size <= c.shardCapBytes {
			c.nextInsertCursor = (idx + 1) % n
			return idx
		}
	}
	idx := c.nextInsertCursor
	c.nextInsertCursor = (idx + 1) % n
	return idx
}

func (c *ShardedCache) recordShardSize(idx int, size int64) {
	c.metaMu.Lock()
	c.sizePerShard[idx] = size
	c.metaMu.Unlock()
}

func (c *ShardedCache) lookupShard(key string) (int, bool) {
	c.keyMu.Lock()
	idx, ok := c.keyToShard[key]
	c.keyMu.Unlock()
	return idx, ok
}

func (c *ShardedCache) forgetKey(key string) {
	c.keyMu.Lock()
	delete(c.keyToShard, key)
	c.keyMu.Unlock()
}

// Len returns the total number of resident entries across all shards.
func (c *ShardedCache) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Shards returns the number of shards (for tests and diagnostics).
func (c *ShardedCache) Shards() int { return len(c.shards) }
