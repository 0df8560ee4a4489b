package bytecache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{TotalBytes: 100, Shards: 3})
	require.Error(t, err, "100 is not divisible by 3")

	_, err = New(Config{TotalBytes: 0, Shards: 4})
	require.Error(t, err)

	_, err = New(Config{TotalBytes: 100, Shards: 0})
	require.Error(t, err)
}

func TestShardedCache_InsertGetRoundTrip(t *testing.T) {
	c, err := New(Config{TotalBytes: 4 * 720, Shards: 4})
	require.NoError(t, err)

	c.Insert("a", []byte("hello"))
	v, _, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), v)
}

func TestShardedCache_MissRemovesStaleMapping(t *testing.T) {
	c, err := New(Config{TotalBytes: 1 * 72, Shards: 1})
	require.NoError(t, err)

	c.Insert("a", blob(72))
	c.Insert("b", blob(72)) // evicts "a" (single shard, single-slot capacity)

	_, _, ok := c.Get("a")
	require.False(t, ok)

	c.keyMu.Lock()
	_, stillMapped := c.keyToShard["a"]
	c.keyMu.Unlock()
	require.False(t, stillMapped, "a stale key->shard mapping must be cleaned up on miss")
}

// TestShardedCache_InsertionBalancing exercises findInsertionShard: with
// fresh shards, sequential inserts round-robin across shards rather than
// hammering shard 0.
func TestShardedCache_InsertionBalancing(t *testing.T) {
	const shards = 4
	c, err := New(Config{TotalBytes: shards * 720, Shards: shards})
	require.NoError(t, err)

	counts := make(map[int]int)
	for i := 0; i < shards*3; i++ {
		key := fmt.Sprintf("k%d", i)
		idx := c.findInsertionShard(72)
		c.keyMu.Lock()
		c.keyToShard[key] = idx
		c.keyMu.Unlock()
		c.recordShardSize(idx, c.shards[idx].Insert(key, blob(72)))
		counts[idx]++
	}

	for i := 0; i < shards; i++ {
		require.Equal(t, 3, counts[i], "insertion cursor should visit every shard evenly")
	}
}

func TestShardedCache_FindInsertionShard_FallsBackWhenFull(t *testing.T) {
	c, err := New(Config{TotalBytes: 2 * 72, Shards: 2})
	require.NoError(t, err)

	c.Insert("a", blob(72))
	c.Insert("b", blob(72)) // both shards now full

	// No shard has room; findInsertionShard must still return *some* index
	// (the caller's Insert then evicts within that shard to make room).
	idx := c.findInsertionShard(72)
	require.GreaterOrEqual(t, idx, 0)
	require.Less(t, idx, 2)
}

func TestShardedCache_TryGet_TryInsert_Busy(t *testing.T) {
	c, err := New(Config{TotalBytes: 72, Shards: 1})
	require.NoError(t, err)

	c.Insert("a", blob(72))

	c.shards[0].mu.Lock()
	defer c.shards[0].mu.Unlock()

	_, _, _, err = c.TryGet("a")
	require.ErrorIs(t, err, ErrBusy)

	err = c.TryInsert("b", blob(72))
	require.ErrorIs(t, err, ErrBusy)
}

func TestShardedCache_Len(t *testing.T) {
	c, err := New(Config{TotalBytes: 4 * 720, Shards: 4})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Insert(fmt.Sprintf("k%d", i), blob(8))
	}
	require.Equal(t, 10, c.Len())
}
