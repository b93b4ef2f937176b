// Package hub implements the multi-port CAN frame hub: every frame
// received on one port is forwarded to all other registered ports, never
// echoed back to its origin. Remote ports speak GridConnect over TCP; a
// local port bridges an in-process protocol interface onto the same hub.
package hub

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openlcb-go/openlcb/can"
)

// Port is one attachment on the hub. Deliver hands the port a frame
// originating elsewhere; it must not block the hub (queue or drop).
type Port interface {
	// Deliver enqueues one frame for this port's consumer.
	Deliver(can.Frame)
	// String names the port in logs.
	String() string
}

// Config sizes a hub.
type Config struct {
	// PortQueue is the per-port outbound queue depth.
	PortQueue int
	// RateLimit caps inbound frames per second per TCP port; 0 disables.
	RateLimit float64
	// RateBurst is the token bucket depth when RateLimit is active.
	RateBurst int
}

func DefaultConfig() Config {
	return Config{PortQueue: 256, RateLimit: 0, RateBurst: 64}
}

func (c *Config) Validate() error {
	if c.PortQueue < 1 {
		return fmt.Errorf("hub: port queue depth must be >= 1")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("hub: rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("hub: rate burst must be >= 1 when limiting")
	}
	return nil
}

// Hub fans frames out across its registered ports.
type Hub struct {
	cfg Config
	log zerolog.Logger

	mu    sync.RWMutex
	ports map[Port]struct{}
}

func New(cfg Config, log zerolog.Logger) (*Hub, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Hub{cfg: cfg, log: log, ports: make(map[Port]struct{})}, nil
}

// Register attaches a port; it starts receiving other ports' traffic.
func (h *Hub) Register(p Port) {
	h.mu.Lock()
	h.ports[p] = struct{}{}
	h.mu.Unlock()
	h.log.Info().Str("port", p.String()).Msg("port registered")
}

// Unregister detaches a port. In-flight deliveries may still land.
func (h *Hub) Unregister(p Port) {
	h.mu.Lock()
	delete(h.ports, p)
	h.mu.Unlock()
	h.log.Info().Str("port", p.String()).Msg("port unregistered")
}

// Broadcast delivers one frame to every registered port except origin.
// origin may be nil for frames injected from outside any port.
func (h *Hub) Broadcast(f can.Frame, origin Port) {
	h.mu.RLock()
	targets := make([]Port, 0, len(h.ports))
	for p := range h.ports {
		if p != origin {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()
	for _, p := range targets {
		p.Deliver(f)
	}
}

// Ports reports the number of registered ports.
func (h *Hub) Ports() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ports)
}

// Serve accepts GridConnect TCP connections on l until ctx is cancelled or
// the listener fails. Each connection becomes one hub port.
func (h *Hub) Serve(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		p := newTCPPort(h, conn)
		h.Register(p)
		go p.run(ctx)
	}
}

// limiter builds the per-port ingress limiter; nil when limiting is off.
func (h *Hub) limiter() *rate.Limiter {
	if h.cfg.RateLimit <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst)
}
