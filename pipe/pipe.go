package pipe

import (
	"context"
	"sync"
)

// compactThreshold is the number of consumed slots after which the backing
// slice is compacted on Get.
const compactThreshold = 64

// Pipe is an unbounded FIFO queue with a blocking Get.
//
// Push never blocks and never fails. Get blocks until an item is available.
// Concurrent getters each receive distinct items in FIFO order; no item is
// delivered twice or dropped. The zero Pipe is not usable, use New.
type Pipe[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
	head  int
}

// New creates an empty Pipe.
func New[T any]() *Pipe[T] {
	p := &Pipe[T]{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Push appends v to the tail of the queue and wakes blocked getters.
func (p *Pipe[T]) Push(v T) {
	p.mu.Lock()
	p.items = append(p.items, v)
	p.mu.Unlock()
	// Broadcast rather than Signal: a waiter woken by a canceled context
	// returns without consuming and must not swallow the wakeup.
	p.cond.Broadcast()
}

// Get removes and returns the head of the queue, blocking until one exists.
func (p *Pipe[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.head == len(p.items) {
		p.cond.Wait()
	}
	return p.pop()
}

// GetContext is like Get but returns ctx.Err() if ctx ends before an item is
// available. An item already queued is returned even if ctx is done.
func (p *Pipe[T]) GetContext(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cond.Broadcast()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.head == len(p.items) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		p.cond.Wait()
	}
	return p.pop(), nil
}

// TryGet returns the head of the queue without blocking.
func (p *Pipe[T]) TryGet() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.head == len(p.items) {
		var zero T
		return zero, false
	}
	return p.pop(), true
}

// Len returns the number of queued items.
func (p *Pipe[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items) - p.head
}

// pop must be called with mu held and a non-empty queue.
func (p *Pipe[T]) pop() T {
	var zero T
	v := p.items[p.head]
	p.items[p.head] = zero
	p.head++

	switch {
	case p.head == len(p.items):
		p.items = p.items[:0]
		p.head = 0
	case p.head >= compactThreshold && p.head*2 >= len(p.items):
		n := copy(p.items, p.items[p.head:])
		clear(p.items[n:])
		p.items = p.items[:n]
		p.head = 0
	}
	return v
}
