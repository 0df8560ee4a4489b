package workerpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllSubmittedJobs(t *testing.T) {
	p := New(4, nil)
	var count int64
	const n = 500

	for i := 0; i < n; i++ {
		p.Submit(func() { atomic.AddInt64(&count, 1) })
	}
	p.Shutdown()

	require.Equal(t, int64(n), atomic.LoadInt64(&count))
}

func TestPool_ShutdownDrainsQueueBeforeExiting(t *testing.T) {
	p := New(2, nil)
	var ran int32

	done := make(chan struct{})
	p.Submit(func() {
		<-done // block the first worker until we've queued more work
	})
	for i := 0; i < 20; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&ran, 1)
		})
	}
	close(done)
	p.Shutdown()

	require.Equal(t, int32(20), atomic.LoadInt32(&ran), "every submitted job must run before shutdown returns")
}

func TestPool_ShutdownIsIdempotent(t *testing.T) {
	p := New(1, nil)
	p.Submit(func() {})
	p.Shutdown()
	require.NotPanics(t, func() { p.Shutdown() })
}

func TestPool_PanicInOneJobDoesNotCrashPool(t *testing.T) {
	p := New(2, nil)
	var ran int32

	require.NotPanics(t, func() {
		p.Submit(func() { panic("boom") })
		for i := 0; i < 10; i++ {
			p.Submit(func() { atomic.AddInt32(&ran, 1) })
		}
		p.Shutdown()
	})

	require.Equal(t, int32(10), atomic.LoadInt32(&ran), "the surviving worker still drains the rest of the queue")
}
