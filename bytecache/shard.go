package bytecache

import (
	"sync"
	"time"
)

// Shard is a single lock-protected partition of the cache implementing
// LFU-with-LRU-tie-break eviction. External callers never touch a Shard
// directly; ShardedCache routes keys to one.
//
// Invariants (checked by tests, see shard_test.go):
//
//	I1: sum of entry sizes == currentBytes <= capacityBytes
//	I2: every resident key appears exactly once, in buckets[entries[k].freq]
//	I3: minFreq is the smallest f with a non-empty buckets[f], whenever
//	    entries is non-empty
//	I4: all stored values are non-empty
type Shard struct {
	mu sync.Mutex

	entries  map[string]*entry
	buckets  map[int]*bucketList
	minFreq  int
	curBytes int64
	capBytes int64

	metrics Metrics
}

// newShard builds an empty shard with the given byte capacity.
func newShard(capacityBytes int64, m Metrics) *Shard {
	if m == nil {
		m = NoopMetrics{}
	}
	return &Shard{
		entries:  make(map[string]*entry),
		buckets:  make(map[int]*bucketList),
		capBytes: capacityBytes,
		metrics:  m,
	}
}

// Get returns the cached bytes and the instant they were last stored, and
// promotes the entry's frequency bucket on hit. A miss leaves the shard
// unmodified.
func (s *Shard) Get(key string) (value []byte, lastUpdated time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.entries[key]
	if !found {
		s.metrics.Miss()
		return nil, time.Time{}, false
	}
	s.touchLocked(e)
	s.metrics.Hit()
	return e.value, time.Unix(0, e.lastUpdated), true
}

// TryGet behaves like Get but fails with ErrBusy instead of blocking when
// the shard lock is contended.
func (s *Shard) TryGet(key string) (value []byte, lastUpdated time.Time, ok bool, err error) {
	if !s.mu.TryLock() {
		return nil, time.Time{}, false, ErrBusy
	}
	defer s.mu.Unlock()

	e, found := s.entries[key]
	if !found {
		s.metrics.Miss()
		return nil, time.Time{}, false, nil
	}
	s.touchLocked(e)
	s.metrics.Hit()
	return e.value, time.Unix(0, e.lastUpdated), true, nil
}

// Insert stores key->value, evicting as needed to stay within capacity.
// An empty value or one larger than the shard's total capacity is a
// silent no-op. Re-inserting an existing key preserves its accrued
// frequency (floored at 1) rather than resetting it to 1. Returns the
// shard's resident byte size after the call.
func (s *Shard) Insert(key string, value []byte) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(key, value)
	return s.curBytes
}

// TryInsert behaves like Insert but fails with ErrBusy instead of
// blocking when the shard lock is contended.
func (s *Shard) TryInsert(key string, value []byte) (int64, error) {
	if !s.mu.TryLock() {
		return 0, ErrBusy
	}
	defer s.mu.Unlock()
	s.insertLocked(key, value)
	return s.curBytes, nil
}

// Len reports the number of resident entries. Used by tests and metrics.
func (s *Shard) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Bytes reports the shard's current resident byte size.
func (s *Shard) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.curBytes
}

func (s *Shard) insertLocked(key string, value []byte) {
	size := int64(len(value))
	if size == 0 || size > s.capBytes {
		return
	}

	freq := 1
	if old, exists := s.entries[key]; exists {
		freq = old.freq
		if freq < 1 {
			freq = 1
		}
		s.evictKeyLocked(key)
	}

	for s.curBytes+size > s.capBytes {
		if !s.evictOneLocked() {
			break // shard is empty yet still over capacity: nothing left to evict
		}
	}

	e := &entry{key: key, value: value, lastUpdated: time.Now().UnixNano(), freq: freq}
	s.pushToBucketLocked(e)
	s.entries[key] = e
	s.curBytes += size
	if len(s.entries) == 1 || freq < s.minFreq {
		s.minFreq = freq
	}
	s.metrics.Size(len(s.entries), s.curBytes)
}

// touchLocked promotes e to the next frequency bucket's front.
func (s *Shard) touchLocked(e *entry) {
	oldFreq := e.freq
	bucket := s.buckets[oldFreq]
	bucket.erase(e)
	if bucket.empty() {
		delete(s.buckets, oldFreq)
		if oldFreq == s.minFreq {
			s.minFreq++
		}
	}
	e.freq++
	s.pushToBucketLocked(e)
}

func (s *Shard) pushToBucketLocked(e *entry) {
	b, ok := s.buckets[e.freq]
	if !ok {
		b = &bucketList{}
		s.buckets[e.freq] = b
	}
	b.pushFront(e)
}

// evictOneLocked evicts the least-recently-touched key in the lowest
// occupied frequency bucket. Reports whether anything was evicted.
func (s *Shard) evictOneLocked() bool {
	bucket, ok := s.buckets[s.minFreq]
	if !ok || bucket.empty() {
		return false
	}
	victim := bucket.back()
	s.evictKeyLocked(victim.key)
	return true
}

// evictKeyLocked removes key from the shard entirely: map, bucket list,
// and byte accounting. If entries remain, minFreq is advanced past any
// buckets left empty by the removal.
func (s *Shard) evictKeyLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	bucket := s.buckets[e.freq]
	bucket.erase(e)
	emptiedMinBucket := bucket.empty() && e.freq == s.minFreq
	if bucket.empty() {
		delete(s.buckets, e.freq)
	}
	delete(s.entries, key)
	s.curBytes -= int64(len(e.value))

	if len(s.entries) > 0 && emptiedMinBucket {
		s.advanceMinFreqLocked()
	}
	s.metrics.Evict()
	s.metrics.Size(len(s.entries), s.curBytes)
}

// advanceMinFreqLocked scans upward for the next non-empty bucket. Called
// only when entries is non-empty, so a match is guaranteed to exist.
func (s *Shard) advanceMinFreqLocked() {
	for f := s.minFreq + 1; ; f++ {
		if b, ok := s.buckets[f]; ok && !b.empty() {
			s.minFreq = f
			return
		}
	}
}
