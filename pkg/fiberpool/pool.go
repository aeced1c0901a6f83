// Package fiberpool implements the fiber-pool collaborator contract
// (spec'd as an external dependency) as a bounded goroutine pool: a
// fixed number of worker goroutines drain a job channel, and a Counter
// lets callers wait for a batch of submitted jobs to finish.
package fiberpool

import (
	"sync"
	"sync/atomic"

	"github.com/fenwickgames/realtimecore/pkg/log"
)

// Counter is decremented once per completed PushCounter job, including
// jobs that panic (the panic is recovered and logged, never propagated
// to the worker loop).
type Counter struct {
	n  atomic.Int64
	mu sync.Mutex
	ch chan struct{}
}

// NewCounter returns a zeroed counter ready for use.
func NewCounter() *Counter {
	return &Counter{ch: make(chan struct{})}
}

// Reset sets the counter back to n, for reuse across ticks.
func (c *Counter) Reset(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n.Store(n)
	c.ch = make(chan struct{})
	if n <= 0 {
		close(c.ch)
	}
}

func (c *Counter) decrement() {
	if c.n.Add(-1) == 0 {
		c.mu.Lock()
		select {
		case <-c.ch:
		default:
			close(c.ch)
		}
		c.mu.Unlock()
	}
}

// Wait blocks until the counter reaches zero.
func (c *Counter) Wait() {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	<-ch
}

type job struct {
	fn      func()
	counter *Counter
}

// Pool is a bounded set of worker goroutines draining a shared job
// channel. Start and End are not safe to call concurrently with each
// other, matching the tick loop's single-owner lifecycle use of it.
type Pool struct {
	name    string
	jobs    chan job
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// New creates a pool with the given job queue depth. Workers are not
// started until Start is called.
func New(name string, queueDepth int) *Pool {
	if queueDepth <= 0 {
		queueDepth = 1024
	}
	return &Pool{name: name, jobs: make(chan job, queueDepth)}
}

// Start launches n worker goroutines. join mirrors the tick loop's
// join_pools parameter but has no effect on the pool: End always stops
// accepting new jobs and waits for the workers to drain the queue.
func (p *Pool) Start(n int, join bool) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker(join)
	}
}

func (p *Pool) worker(join bool) {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
	_ = join
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("fiberpool").Error().
				Str("pool", p.name).
				Interface("panic", r).
				Msg("recovered panic in pool job")
		}
		if j.counter != nil {
			j.counter.decrement()
		}
	}()
	j.fn()
}

// Push schedules fn for execution by a worker, fire-and-forget.
func (p *Pool) Push(fn func()) {
	p.jobs <- job{fn: fn}
}

// PushCounter schedules fn for execution and decrements counter when fn
// returns (successfully or via a recovered panic).
func (p *Pool) PushCounter(fn func(), counter *Counter) {
	p.jobs <- job{fn: fn, counter: counter}
}

// End stops accepting new work and waits for every worker goroutine to
// drain the job channel and exit.
func (p *Pool) End() {
	p.closeMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.closeMu.Unlock()
	p.wg.Wait()
}

// Join blocks until all currently running workers have exited. Useful
// after End when a caller wants a separate synchronization point.
func (p *Pool) Join() {
	p.wg.Wait()
}
