// Package bytecache provides a sharded, in-process byte-blob cache with an
// LFU-with-LRU-tie-break eviction policy, sized by total bytes rather than
// entry count.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by its own
//     mutex. A small metadata mutex tracks per-shard occupancy and the
//     round-robin insertion cursor; a separate key→shard mutex lets Get find
//     the right shard without touching metadata. Lock order is always
//     key-map → shard → metadata; two shard locks are never held at once.
//
//   - Storage: each Shard keeps a map[string]*entry for O(1) lookup and a set
//     of per-frequency intrusive lists (buckets). Touching an entry moves it
//     to the front of the next-higher frequency bucket in O(1); eviction
//     removes the back of the lowest occupied bucket (min_freq) in O(1).
//
//   - Sizing: shards are budgeted in bytes, not entry counts. Insert is a
//     silent no-op for an empty value or one larger than a single shard's
//     capacity. Oversized-relative-to-remaining-space inserts evict until
//     they fit.
//
//   - Insertion balancing: ShardedCache.Insert resolves a shard with
//     findInsertionShard, a circular scan from a shared cursor that spreads
//     writes across shards instead of hammering shard 0.
//
// This is the byte cache that backs file-response caching in
// internal/respwrite; it is deliberately not generic over value type
// because the eviction policy is fixed by contract: LFU first, LRU to
// break ties.
package bytecache
