package bytecache

import "fmt"

// Config configures a ShardedCache. Zero-value Metrics is safe (defaults
// to NoopMetrics); Shards and TotalBytes must both be set explicitly —
// byte budgets are too easy to get silently wrong from a zero default.
type Config struct {
	// TotalBytes is the aggregate capacity across all shards. Must be
	// evenly divisible by Shards (mirrors the server-level
	// cache_total_mb / cache_shards constraint in the host config).
	TotalBytes int64

	// Shards is the number of independently locked partitions.
	Shards int

	// Metrics receives Hit/Miss/Evict/Size signals. nil => NoopMetrics.
	Metrics Metrics
}

// validate checks the divisibility invariant and returns the per-shard
// byte capacity on success.
func (c Config) validate() (int64, error) {
	if c.Shards <= 0 {
		return 0, fmt.Errorf("bytecache: Shards must be > 0, got %d", c.Shards)
	}
	if c.TotalBytes <= 0 {
		return 0, fmt.Errorf("bytecache: TotalBytes must be > 0, got %d", c.TotalBytes)
	}
	if c.TotalBytes%int64(c.Shards) != 0 {
		return 0, fmt.Errorf("bytecache: TotalBytes (%d) must be divisible by Shards (%d)", c.TotalBytes, c.Shards)
	}
	return c.TotalBytes / int64(c.Shards), nil
}
