// Package alloc implements the flow-controlled allocator pools that bound
// how many operations of one kind may be in flight. A pool holds a fixed
// set of reusable slots; callers acquire a slot, drive it to completion
// and release it. When the pool is empty, acquirers queue FIFO and are
// handed a slot directly as soon as one is released. This is the stack's
// backpressure mechanism: producers past capacity wait, they do not
// allocate.
package alloc

import "sync"

// Acquisition receives the slot once the pool can hand one out. It runs
// on the caller's stack when a slot is free at acquire time, otherwise on
// the releasing caller's stack.
type Acquisition[T any] func(T)

// Pool is a fixed-capacity pool of slots of one kind.
type Pool[T any] struct {
	mu       sync.Mutex
	free     []T
	waiters  []Acquisition[T]
	capacity int
	out      int
}

// NewPool builds a pool pre-filled with the given slots. Capacity is fixed
// for the pool's lifetime; no slots are created or destroyed afterwards.
func NewPool[T any](slots ...T) *Pool[T] {
	if len(slots) == 0 {
		panic("alloc: pool needs at least one slot")
	}
	p := &Pool[T]{capacity: len(slots)}
	p.free = append(p.free, slots...)
	return p
}

// TryAcquire returns a slot if one is free right now.
func (p *Pool[T]) TryAcquire() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		var zero T
		return zero, false
	}
	return p.takeLocked(), true
}

// Acquire hands a slot to fn, immediately when one is free, otherwise when
// one is released. Pending acquisitions are served strictly in FIFO order.
func (p *Pool[T]) Acquire(fn Acquisition[T]) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.waiters = append(p.waiters, fn)
		p.mu.Unlock()
		return
	}
	slot := p.takeLocked()
	p.mu.Unlock()
	fn(slot)
}

// AcquireWait blocks the calling goroutine until a slot is available. It
// is the adapter for callers outside the event-driven core.
func (p *Pool[T]) AcquireWait() T {
	ch := make(chan T, 1)
	p.Acquire(func(s T) { ch <- s })
	return <-ch
}

// Release returns a slot to the pool. If an acquirer is pending the slot
// is handed to the oldest one directly, skipping the free list, so that
// fairness is FIFO and a freed slot is never visible as free while
// someone waits.
func (p *Pool[T]) Release(slot T) {
	p.mu.Lock()
	if p.out <= 0 {
		p.mu.Unlock()
		panic("alloc: release without matching acquire")
	}
	p.out--
	if len(p.waiters) > 0 {
		fn := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.out++
		p.mu.Unlock()
		fn(slot)
		return
	}
	p.free = append(p.free, slot)
	p.mu.Unlock()
}

// InUse reports how many slots are currently held by callers.
func (p *Pool[T]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// Capacity reports the fixed pool size.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

func (p *Pool[T]) takeLocked() T {
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.out++
	return slot
}
