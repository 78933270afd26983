package reader

import (
	"context"
	"sync"

	"github.com/ajitpratap0/arrowodbc/pkg/buffer"
)

type fetchResult struct {
	set  *buffer.TransitSet
	rows int
	err  error
}

// concurrentFetch alternates two transit buffer sets between a background
// fetch goroutine and the converting caller. filled carries rowsets to the
// caller, released carries drained sets back. The goroutine is the only user
// of the cursor, so at most one fetch is ever in flight.
type concurrentFetch struct {
	sets     [2]*buffer.TransitSet
	filled   chan fetchResult
	released chan *buffer.TransitSet
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

func startConcurrentFetch(f *fetcher, first, second *buffer.TransitSet) *concurrentFetch {
	c := &concurrentFetch{
		sets:     [2]*buffer.TransitSet{first, second},
		filled:   make(chan fetchResult, 1),
		released: make(chan *buffer.TransitSet, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	c.released <- second
	go c.run(f, first)
	return c
}

func (c *concurrentFetch) run(f *fetcher, set *buffer.TransitSet) {
	defer close(c.done)
	ctx := context.Background()
	var firstRow int64
	for {
		n, err := f.fetch(ctx, set, firstRow)
		select {
		case c.filled <- fetchResult{set: set, rows: n, err: err}:
		case <-c.quit:
			return
		}
		if err != nil || n == 0 {
			return
		}
		firstRow += int64(n)

		select {
		case set = <-c.released:
		case <-c.quit:
			return
		}
	}
}

// next waits for the next filled rowset.
func (c *concurrentFetch) next(ctx context.Context) (fetchResult, error) {
	select {
	case res := <-c.filled:
		return res, nil
	case <-ctx.Done():
		return fetchResult{}, ctx.Err()
	}
}

// release hands a drained set back to the fetch goroutine.
func (c *concurrentFetch) release(set *buffer.TransitSet) {
	select {
	case c.released <- set:
	case <-c.done:
	}
}

// stop ends the goroutine, waits for a fetch in flight and releases both sets.
func (c *concurrentFetch) stop() {
	c.once.Do(func() {
		close(c.quit)
		<-c.done
		for _, s := range c.sets {
			s.Release()
		}
	})
}
