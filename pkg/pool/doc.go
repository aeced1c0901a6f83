// Package pool's allocator trades a mutex-guarded slab lookup (taken on
// every free-list miss) against a fully lock-free return path, since
// returns happen from the tick goroutine while allocations happen from
// network-receive goroutines — different callers, so contention on a
// single free list would otherwise sit on the hot path twice.
package pool
