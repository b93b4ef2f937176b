package can

import (
	"sync"

	"github.com/openlcb-go/openlcb/notify"
)

// Bus is an in-memory CAN segment for tests and simulations. Every frame
// sent through one endpoint is delivered to all other endpoints, never
// back to the sender, mirroring the hub contract.
type Bus struct {
	mu        sync.Mutex
	closed    bool
	endpoints map[*Endpoint]struct{}
}

func NewBus() *Bus {
	return &Bus{endpoints: make(map[*Endpoint]struct{})}
}

// Open attaches a new endpoint with the given receive buffer depth.
func (b *Bus) Open(depth int) *Endpoint {
	if depth < 1 {
		depth = 16
	}
	ep := &Endpoint{bus: b, rx: make(chan Frame, depth)}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ep.rx)
		return ep
	}
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

// Close detaches every endpoint and closes their receive streams.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for ep := range b.endpoints {
		close(ep.rx)
	}
	b.endpoints = nil
	return nil
}

// Endpoint is one attachment point on a Bus. It satisfies Sink; frames it
// sends reach every other endpoint on the segment.
type Endpoint struct {
	bus *Bus
	rx  chan Frame
}

func (e *Endpoint) TrySend(f Frame) bool {
	e.bus.mu.Lock()
	if e.bus.closed {
		e.bus.mu.Unlock()
		return false
	}
	targets := make([]*Endpoint, 0, len(e.bus.endpoints))
	for ep := range e.bus.endpoints {
		if ep != e {
			targets = append(targets, ep)
		}
	}
	e.bus.mu.Unlock()

	for _, t := range targets {
		select {
		case t.rx <- f:
		default:
			// Slow receiver; the segment drops rather than stalls.
		}
	}
	return true
}

// NotifyWritable on a loopback endpoint fires immediately: the segment
// never exerts backpressure.
func (e *Endpoint) NotifyWritable(n notify.Notifiable) {
	n.Notify()
}

// Recv exposes the inbound frame stream. The channel closes when the bus
// shuts down.
func (e *Endpoint) Recv() <-chan Frame {
	return e.rx
}
