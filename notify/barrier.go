package notify

import "sync"

// Barrier fans several child completions into one parent notification.
// Each NewChild adds one pending completion; every child Notify removes
// one. The parent fires exactly once, when the count reaches zero after
// the owner has called Done to account for its own reference.
//
// Typical use: a dispatcher creates a Barrier per inbound frame, hands one
// child to each matching handler, then calls Done. Whether the handlers
// complete synchronously or later, the parent sees a single signal.
type Barrier struct {
	mu      sync.Mutex
	pending int
	fired   bool
	parent  Notifiable
}

// NewBarrier creates a barrier holding one reference for its owner.
func NewBarrier(parent Notifiable) *Barrier {
	if parent == nil {
		parent = Discard
	}
	return &Barrier{pending: 1, parent: parent}
}

type barrierChild struct {
	b    *Barrier
	once sync.Once
}

func (c *barrierChild) Notify() {
	c.once.Do(c.b.done)
}

// NewChild adds one pending completion and returns the Notifiable that
// retires it. Each child must be notified exactly once.
func (b *Barrier) NewChild() Notifiable {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fired {
		panic("notify: NewChild on a completed barrier")
	}
	b.pending++
	return &barrierChild{b: b}
}

// Done retires the owner's reference. After Done, the parent fires as soon
// as all outstanding children have notified; if none are outstanding it
// fires on this call.
func (b *Barrier) Done() {
	b.done()
}

func (b *Barrier) done() {
	b.mu.Lock()
	if b.fired {
		b.mu.Unlock()
		panic("notify: barrier notified past completion")
	}
	b.pending--
	fire := b.pending == 0
	if fire {
		b.fired = true
	}
	parent := b.parent
	b.mu.Unlock()
	if fire {
		parent.Notify()
	}
}
