package olcb

import (
	"fmt"
	"time"
)

// Config sizes one interface. Pool sizes are the hard ceilings on
// concurrent in-flight operations of each category and are fixed for the
// interface lifetime; the backpressure behavior of the whole stack falls
// out of these numbers.
type Config struct {
	// FrameWriteFlows bounds concurrent raw-frame writes.
	FrameWriteFlows int

	// GlobalWriteFlows bounds concurrent global (broadcast) message writes.
	GlobalWriteFlows int

	// AddressedWriteFlows bounds concurrent addressed, possibly
	// multi-frame, message writes.
	AddressedWriteFlows int

	// InboundQueue is the depth of the raw frame queue between the driver
	// and the dispatch loop.
	InboundQueue int

	// ReassemblyTimeout reclaims partial reassembly state from senders
	// that went silent mid-message. Choose an order above the transport's
	// round-trip time.
	ReassemblyTimeout time.Duration
}

// DefaultConfig mirrors the sizing of a small embedded node: two write
// flows per category and a reclaim interval far above any sane bus RTT.
func DefaultConfig() Config {
	return Config{
		FrameWriteFlows:     2,
		GlobalWriteFlows:    2,
		AddressedWriteFlows: 2,
		InboundQueue:        32,
		ReassemblyTimeout:   3 * time.Second,
	}
}

// Validate checks the configuration before an interface is built from it.
func (c *Config) Validate() error {
	if c.FrameWriteFlows < 1 || c.GlobalWriteFlows < 1 || c.AddressedWriteFlows < 1 {
		return fmt.Errorf("olcb: every write flow pool needs capacity >= 1")
	}
	if c.InboundQueue < 1 {
		return fmt.Errorf("olcb: inbound queue depth must be >= 1")
	}
	if c.ReassemblyTimeout <= 0 {
		return fmt.Errorf("olcb: reassembly timeout must be positive")
	}
	return nil
}
