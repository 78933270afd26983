// Package pool provides typed object pooling for the scratch buffers used
// while transcoding values between transit buffers and arrow arrays.
//
// Example usage:
//
//	buf := pool.Bytes.Get(512)
//	defer pool.Bytes.Put(buf)
//
//	myPool := pool.New(
//	    func() *strings.Builder { return &strings.Builder{} },
//	    func(b *strings.Builder) { b.Reset() },
//	)
package pool

import (
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool with type safety. It wraps sync.Pool with
// statistics tracking and an optional reset function. The pool is safe for
// concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		gets      int64
	}
}

// Stats is a snapshot of pool usage.
type Stats struct {
	Allocated int64
	InUse     int64
	Hits      int64
	Misses    int64
}

// New creates a typed pool. newFn is called when the pool is empty, reset
// (optional) before an object is returned to the pool.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, creating one if it is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.gets, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats returns current pool statistics. Misses are the Gets that had to
// allocate.
func (p *Pool[T]) Stats() Stats {
	allocated := atomic.LoadInt64(&p.stats.allocated)
	gets := atomic.LoadInt64(&p.stats.gets)
	hits := gets - allocated
	if hits < 0 {
		hits = 0
	}
	return Stats{
		Allocated: allocated,
		InUse:     atomic.LoadInt64(&p.stats.inUse),
		Hits:      hits,
		Misses:    gets - hits,
	}
}

// BufferPool manages byte buffers in size buckets. Requests larger than the
// biggest bucket are allocated directly and dropped on Put.
type BufferPool struct {
	pools []*Pool[*[]byte]
	sizes []int
}

// NewBufferPool creates a buffer pool with one bucket per size. sizes must be
// ascending.
func NewBufferPool(sizes ...int) *BufferPool {
	p := &BufferPool{sizes: sizes, pools: make([]*Pool[*[]byte], len(sizes))}
	for i, size := range sizes {
		size := size
		p.pools[i] = New(
			func() *[]byte {
				b := make([]byte, 0, size)
				return &b
			},
			func(b *[]byte) { *b = (*b)[:0] },
		)
	}
	return p
}

// Get returns an empty buffer with capacity of at least size.
func (p *BufferPool) Get(size int) []byte {
	for i, s := range p.sizes {
		if s >= size {
			return (*p.pools[i].Get())[:0]
		}
	}
	return make([]byte, 0, size)
}

// Put returns a buffer to the bucket matching its capacity. Buffers that
// grew past their bucket go to the largest bucket they still fill.
func (p *BufferPool) Put(buf []byte) {
	c := cap(buf)
	for i := len(p.sizes) - 1; i >= 0; i-- {
		if c >= p.sizes[i] {
			if i == len(p.sizes)-1 && c > 4*p.sizes[i] {
				return
			}
			buf = buf[:0]
			p.pools[i].Put(&buf)
			return
		}
	}
}

// Bytes is the shared scratch buffer pool.
var Bytes = NewBufferPool(256, 4096, 65536, 1<<20)
