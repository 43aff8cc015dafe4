package pools

import (
	"sync"
	"sync/atomic"
)

// Resetter is implemented by pooled objects that clear their state
// before reuse.
type Resetter interface {
	Reset()
}

// ObjectPool is a typed sync.Pool that counts reuse.
type ObjectPool[T Resetter] struct {
	pool sync.Pool
	gets atomic.Uint64
	puts atomic.Uint64
	news atomic.Uint64
}

// ObjectPoolStats is a snapshot of ObjectPool counters.
type ObjectPoolStats struct {
	Gets    uint64
	Puts    uint64
	News    uint64
	HitRate float64
}

// NewObjectPool creates a pool that builds new objects with newFn.
func NewObjectPool[T Resetter](newFn func() T) *ObjectPool[T] {
	p := &ObjectPool[T]{}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFn()
	}
	return p
}

// Get returns a pooled or new object.
func (p *ObjectPool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put resets obj and returns it to the pool.
func (p *ObjectPool[T]) Put(obj T) {
	obj.Reset()
	p.puts.Add(1)
	p.pool.Put(obj)
}

// Stats returns the counters. HitRate is the share of Gets served
// without allocating.
func (p *ObjectPool[T]) Stats() ObjectPoolStats {
	s := ObjectPoolStats{Gets: p.gets.Load(), Puts: p.puts.Load(), News: p.news.Load()}
	if s.Gets > 0 && s.News <= s.Gets {
		s.HitRate = float64(s.Gets-s.News) / float64(s.Gets)
	}
	return s
}
