// Package pool implements the per-thread object pool: a lock-free return
// path backed by per-worker slab allocation, used for PacketBuffer and
// Endpoint records under receive-path allocation pressure.
//
// Get and Release are wait-free in the steady state and never fail; an
// allocation failure in the slab is treated as a fatal condition, not an
// error return, since it indicates the process is out of memory.
package pool

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/fenwickgames/realtimecore/pkg/log"
)

// Resettable is implemented by types whose state must be cleared before
// a pooled value is reused.
type Resettable interface {
	Reset()
}

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// freeList is a Treiber-stack: a CAS-linked-list multi-producer,
// multi-consumer lock-free stack of released pointers.
type freeList[T any] struct {
	head  atomic.Pointer[node[T]]
	depth atomic.Int64
}

func (f *freeList[T]) push(n *node[T]) {
	for {
		old := f.head.Load()
		n.next.Store(old)
		if f.head.CompareAndSwap(old, n) {
			f.depth.Add(1)
			return
		}
	}
}

func (f *freeList[T]) pop() *node[T] {
	for {
		old := f.head.Load()
		if old == nil {
			return nil
		}
		next := old.next.Load()
		if f.head.CompareAndSwap(old, next) {
			old.next.Store(nil)
			f.depth.Add(-1)
			return old
		}
	}
}

// slab is a thread-local bump allocator producing backing storage for T.
// It is never shared across goroutines; each worker owns exactly one.
type slab[T any] struct {
	chunk []node[T]
	next  int
	size  int
}

func newSlab[T any](size int) *slab[T] {
	return &slab[T]{size: size}
}

func (s *slab[T]) alloc() *node[T] {
	if s.chunk == nil || s.next >= len(s.chunk) {
		s.chunk = make([]node[T], s.size)
		s.next = 0
	}
	n := &s.chunk[s.next]
	s.next++
	return n
}

// Pool is a templated allocator over T backed by a global lock-free free
// list and per-worker slab allocators. Get pops from the free list; on
// an empty list, it falls back to the calling worker's slab. Release
// pushes the pointer back onto the free list, making it safe to call
// from any goroutine regardless of which worker's slab produced it.
type Pool[T any] struct {
	name     string
	free     freeList[T]
	slabSize int

	slabsMu sync.Mutex
	slabs   map[uint32]*slab[T]

	outstanding atomic.Int64
	slabAllocs  atomic.Int64
}

// New creates a pool of T with the given per-worker slab chunk size.
func New[T any](name string, slabSize int) *Pool[T] {
	if slabSize <= 0 {
		slabSize = 64
	}
	return &Pool[T]{
		name:     name,
		slabSize: slabSize,
		slabs:    make(map[uint32]*slab[T]),
	}
}

func (p *Pool[T]) slabFor(workerID uint32) *slab[T] {
	p.slabsMu.Lock()
	defer p.slabsMu.Unlock()
	s, ok := p.slabs[workerID]
	if !ok {
		s = newSlab[T](p.slabSize)
		p.slabs[workerID] = s
	}
	return s
}

// Get returns a pointer to a T, popped from the free list or freshly
// slab-allocated by workerID. workerID should be small and stable per
// caller (e.g. a network-receive worker's stripe index) so repeated
// calls amortize to slab-local allocation. If the slab allocation
// panics, the panic is recovered and reported through log.FatalField,
// whose default FatalHook exits the process.
func (p *Pool[T]) Get(workerID uint32) *T {
	if n := p.free.pop(); n != nil {
		p.outstanding.Add(1)
		return &n.value
	}
	s := p.slabFor(workerID)
	n := func() (n *node[T]) {
		defer func() {
			if r := recover(); r != nil {
				log.FatalField("pool exhausted", "pool", p.name)
			}
		}()
		return s.alloc()
	}()
	p.slabAllocs.Add(1)
	p.outstanding.Add(1)
	return &n.value
}

// Release returns v to the pool, invoking Reset if T implements
// Resettable. v must have come from Get on this pool and must be
// released exactly once.
func (p *Pool[T]) Release(v *T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	n := nodeFromValue(v)
	p.free.push(n)
	p.outstanding.Add(-1)
}

// nodeFromValue recovers the enclosing *node[T] from a *T obtained via
// Get. Safe because value is the first field of node[T], so the two
// pointers share an address per the language's struct layout guarantee.
func nodeFromValue[T any](v *T) *node[T] {
	return (*node[T])(unsafe.Pointer(v))
}

// Outstanding returns the number of values currently leased out.
func (p *Pool[T]) Outstanding() int64 {
	return p.outstanding.Load()
}

// SlabAllocs returns the cumulative count of fresh slab allocations
// (as opposed to free-list reuse) this pool has performed.
func (p *Pool[T]) SlabAllocs() int64 {
	return p.slabAllocs.Load()
}

// QueueDepth returns the number of released values currently sitting on
// the free list, waiting to be reused by a future Get.
func (p *Pool[T]) QueueDepth() int64 {
	return p.free.depth.Load()
}

// Name returns the pool's label, as passed to New.
func (p *Pool[T]) Name() string {
	return p.name
}
