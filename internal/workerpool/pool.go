// Package workerpool implements a fixed-size worker pool: N goroutines
// blocking on a shared job channel, with a drain protocol on shutdown
// (N terminate markers, then join) so every already-submitted job runs
// before its worker exits.
package workerpool

import (
	"sync"

	"go.uber.org/zap"
)

// Job is a one-shot unit of work submitted to the pool.
type Job func()

// queued is either a real Job or a terminate marker. Markers are
// processed in FIFO order with jobs, so every job submitted before a
// marker runs before its worker exits.
type queued struct {
	job  Job
	stop bool
}

// Pool is a fixed-size set of worker goroutines draining a shared FIFO
// job queue.
type Pool struct {
	size   int
	jobs   chan queued
	wg     sync.WaitGroup
	logger *zap.Logger

	shutdownOnce sync.Once
}

// New starts a pool of n workers; n below 1 is treated as 1. A nil logger is
// replaced with a no-op one.
func New(n int, logger *zap.Logger) *Pool {
	if n < 1 {
		n = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{size: n, jobs: make(chan queued, n*4), logger: logger}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.run()
	}
	return p
}

// run drains jobs until a terminate marker or a panicking job. A panic
// is recovered (so the pool itself never crashes) but the worker
// goroutine exits rather than looping back for more work; the pool does
// not respawn replacements.
func (p *Pool) run() {
	defer p.wg.Done()
	for q := range p.jobs {
		if q.stop {
			return
		}
		if !p.runJob(q.job) {
			return
		}
	}
}

// runJob executes job, recovering a panic so the worker goroutine (and
// therefore the pool) survives it. It returns false if job panicked.
func (p *Pool) runJob(job Job) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			ok = false
			p.logger.Error("worker exiting after panic", zap.Any("panic", r))
		}
	}()
	job()
	return
}

// Submit enqueues job for execution by some worker. Submit blocks if the
// internal queue is momentarily full, providing backpressure to the
// acceptor rather than growing memory without bound.
func (p *Pool) Submit(job Job) {
	p.jobs <- queued{job: job}
}

// Shutdown sends one terminate marker per worker and waits for every
// worker to drain its remaining queue and exit. Safe to call more than
// once; only the first call has effect.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			p.jobs <- queued{stop: true}
		}
		p.wg.Wait()
		close(p.jobs)
	})
}
