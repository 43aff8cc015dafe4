package pools

import (
	"sync"
	"sync/atomic"
)

// BytePool hands out byte slices from a fixed set of size classes.
type BytePool struct {
	pools []*sync.Pool
	sizes []int

	gets   atomic.Uint64
	puts   atomic.Uint64
	misses atomic.Uint64
	large  atomic.Uint64
}

// BytePoolStats is a snapshot of BytePool counters. Misses counts buffers
// the pool had to allocate; Large counts requests above the largest class.
type BytePoolStats struct {
	Gets   uint64
	Puts   uint64
	Misses uint64
	Large  uint64
}

// Size classes tuned for HTTP request buffers.
var defaultSizes = []int{512, 2048, 8192, 32768}

// NewBytePool creates a pool with the default size classes.
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a pool with ascending size classes.
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}
	for i, size := range sizes {
		size := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				bp.misses.Add(1)
				buf := make([]byte, size)
				return &buf
			},
		}
	}
	return bp
}

// Get returns a slice of length size.
func (bp *BytePool) Get(size int) []byte {
	bp.gets.Add(1)
	for i, class := range bp.sizes {
		if size <= class {
			buf := *bp.pools[i].Get().(*[]byte)
			return buf[:size]
		}
	}
	bp.large.Add(1)
	return make([]byte, size)
}

// Put returns buf to its size class. Slices not obtained from the pool are
// left to the garbage collector.
func (bp *BytePool) Put(buf []byte) {
	c := cap(buf)
	for i, class := range bp.sizes {
		if c == class {
			buf = buf[:c]
			bp.pools[i].Put(&buf)
			bp.puts.Add(1)
			return
		}
	}
}

// MaxSize returns the largest pooled size class.
func (bp *BytePool) MaxSize() int {
	return bp.sizes[len(bp.sizes)-1]
}

// Stats returns a snapshot of the pool counters.
func (bp *BytePool) Stats() BytePoolStats {
	return BytePoolStats{
		Gets:   bp.gets.Load(),
		Puts:   bp.puts.Load(),
		Misses: bp.misses.Load(),
		Large:  bp.large.Load(),
	}
}
