package bytecache

// Metrics exposes cache-level observability hooks: hit/miss counters, a
// single eviction counter (the byte cache has exactly one eviction
// policy, so there is no reason label to carry), and a combined
// entry-count/byte-size gauge update.
type Metrics interface {
	Hit()
	Miss()
	Evict()
	Size(entries int, bytes int64)
}

// NoopMetrics discards every signal. It is the default when no Metrics
// is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                {}
func (NoopMetrics) Miss()               {}
func (NoopMetrics) Evict()              {}
func (NoopMetrics) Size(_ int, _ int64) {}
