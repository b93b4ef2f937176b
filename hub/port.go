package hub

import (
	"context"
	"net"
	"sync"

	"github.com/openlcb-go/openlcb/can"
	"github.com/openlcb-go/openlcb/gridconnect"
	"github.com/openlcb-go/openlcb/notify"
)

// tcpPort is one GridConnect TCP connection attached to the hub. A writer
// goroutine drains the outbound queue; run reads inbound bytes, splits
// them into frames and broadcasts each to the rest of the hub with this
// port as origin.
type tcpPort struct {
	hub  *Hub
	conn net.Conn
	out  chan can.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

func newTCPPort(h *Hub, conn net.Conn) *tcpPort {
	return &tcpPort{
		hub:    h,
		conn:   conn,
		out:    make(chan can.Frame, h.cfg.PortQueue),
		closed: make(chan struct{}),
	}
}

func (p *tcpPort) String() string {
	return p.conn.RemoteAddr().String()
}

func (p *tcpPort) Deliver(f can.Frame) {
	select {
	case p.out <- f:
	case <-p.closed:
	default:
		// Queue full: a stalled peer must not stall the bus.
		p.hub.log.Warn().Str("port", p.String()).Msg("outbound queue full, dropping frame")
	}
}

func (p *tcpPort) run(ctx context.Context) {
	defer p.close()
	go p.writeLoop()

	limit := p.hub.limiter()
	var scan gridconnect.Scanner
	buf := make([]byte, 4096)
	for {
		n, err := p.conn.Read(buf)
		if n > 0 {
			for _, f := range scan.Feed(buf[:n]) {
				if limit != nil && !limit.Allow() {
					p.hub.log.Warn().Str("port", p.String()).Msg("ingress rate limit exceeded, dropping frame")
					continue
				}
				p.hub.Broadcast(f, p)
			}
		}
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *tcpPort) writeLoop() {
	for {
		select {
		case f := <-p.out:
			s, err := gridconnect.Marshal(f)
			if err != nil {
				continue
			}
			if _, err := p.conn.Write([]byte(s + "\n")); err != nil {
				p.close()
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *tcpPort) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
		p.hub.Unregister(p)
	})
}

// LocalPort bridges an in-process consumer onto the hub. It satisfies
// can.Sink, so a protocol interface constructed over it transmits straight
// into the hub, and Recv carries the rest of the hub's traffic back.
type LocalPort struct {
	hub  *Hub
	name string
	rx   chan can.Frame

	closeOnce sync.Once
	closed    chan struct{}
}

// NewLocalPort creates and registers a local port.
func NewLocalPort(h *Hub, name string) *LocalPort {
	p := &LocalPort{
		hub:    h,
		name:   name,
		rx:     make(chan can.Frame, h.cfg.PortQueue),
		closed: make(chan struct{}),
	}
	h.Register(p)
	return p
}

func (p *LocalPort) String() string { return p.name }

func (p *LocalPort) Deliver(f can.Frame) {
	select {
	case <-p.closed:
		return
	default:
	}
	select {
	case p.rx <- f:
	default:
		p.hub.log.Warn().Str("port", p.name).Msg("local queue full, dropping frame")
	}
}

// Recv is the stream of frames arriving from other ports.
func (p *LocalPort) Recv() <-chan can.Frame {
	return p.rx
}

// TrySend broadcasts one frame from this port to the rest of the hub.
func (p *LocalPort) TrySend(f can.Frame) bool {
	p.hub.Broadcast(f, p)
	return true
}

// NotifyWritable fires immediately; the hub itself never pushes back.
func (p *LocalPort) NotifyWritable(n notify.Notifiable) {
	n.Notify()
}

// Closed signals when the port has been shut down, so the port's consumer
// goroutine can stop selecting on Recv.
func (p *LocalPort) Closed() <-chan struct{} {
	return p.closed
}

// Close detaches the port from the hub. Later Deliver calls are dropped.
func (p *LocalPort) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.hub.Unregister(p)
	})
}
