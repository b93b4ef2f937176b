package olcb

import (
	"sync"

	"github.com/openlcb-go/openlcb/notify"
)

// Handler consumes one dispatched item and signals done exactly once when
// it no longer needs it. Completion may happen inside the call or later;
// the handler must not block the dispatching goroutine.
//
// Handlers are compared by interface identity on Unregister, so the value
// registered must be comparable (a pointer, typically).
type Handler[T any] interface {
	Handle(item T, done notify.Notifiable)
}

type funcHandler[T any] struct {
	fn func(T, notify.Notifiable)
}

func (h *funcHandler[T]) Handle(item T, done notify.Notifiable) {
	h.fn(item, done)
}

// HandlerFunc wraps a function as a Handler. Keep the returned value to
// unregister the same registration later.
func HandlerFunc[T any](fn func(T, notify.Notifiable)) Handler[T] {
	return &funcHandler[T]{fn: fn}
}

type registration[T any] struct {
	value, mask uint32
	handler     Handler[T]
}

// Dispatcher demultiplexes items to handlers registered against a
// (value, mask) pattern over a 29-bit key. An item with key k matches a
// registration when k&mask == value&mask; mask 0 is the promiscuous
// wildcard. The same triple may be registered once; removal requires the
// exact triple.
type Dispatcher[T any] struct {
	key func(T) uint32

	mu   sync.RWMutex
	regs []registration[T]
}

// NewDispatcher builds a dispatcher extracting the match key with key.
func NewDispatcher[T any](key func(T) uint32) *Dispatcher[T] {
	return &Dispatcher[T]{key: key}
}

// Register adds a handler for the pattern. Registering a triple twice is
// a caller defect.
func (d *Dispatcher[T]) Register(value, mask uint32, h Handler[T]) {
	if h == nil {
		panic("olcb: registering nil handler")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.regs {
		if r.value == value && r.mask == mask && r.handler == h {
			panic("olcb: duplicate handler registration")
		}
	}
	d.regs = append(d.regs, registration[T]{value: value, mask: mask, handler: h})
}

// Unregister removes the exact (value, mask, handler) registration. It is
// safe while items are in flight: invocations already started complete,
// no new ones start. Unknown registrations are ignored.
func (d *Dispatcher[T]) Unregister(value, mask uint32, h Handler[T]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.regs {
		if r.value == value && r.mask == mask && r.handler == h {
			d.regs = append(d.regs[:i], d.regs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every handler matching the item's key, as registered at
// the moment of the call, and notifies done once all of them have signaled
// completion. With no matching handler, done fires before Dispatch
// returns.
func (d *Dispatcher[T]) Dispatch(item T, done notify.Notifiable) {
	k := d.key(item)

	d.mu.RLock()
	matched := make([]Handler[T], 0, len(d.regs))
	for _, r := range d.regs {
		if k&r.mask == r.value&r.mask {
			matched = append(matched, r.handler)
		}
	}
	d.mu.RUnlock()

	barrier := notify.NewBarrier(done)
	for _, h := range matched {
		h.Handle(item, barrier.NewChild())
	}
	barrier.Done()
}

// Registered reports the number of active registrations.
func (d *Dispatcher[T]) Registered() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.regs)
}
