package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a type-safe wrapper around sync.Pool with allocation statistics.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// New creates a pool. new builds a fresh object when the pool is empty;
// reset, if non-nil, is applied to every object returned with Put.
func New[T any](new func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return new()
	}
	return p
}

// Get takes an object from the pool, allocating one if necessary.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats reports how many objects were allocated, how many are currently
// checked out and how many Get calls were served from reused objects.
func (p *Pool[T]) Stats() (allocated, inUse, reused int64) {
	allocated = atomic.LoadInt64(&p.stats.allocated)
	gets := atomic.LoadInt64(&p.stats.gets)
	reused = gets - allocated
	if reused < 0 {
		reused = 0
	}
	return allocated, atomic.LoadInt64(&p.stats.inUse), reused
}
