package can

import (
	"errors"

	"github.com/openlcb-go/openlcb/notify"
)

// ErrClosed indicates the bus or endpoint has been shut down.
var ErrClosed = errors.New("can: closed")

// Sink accepts outbound frames one at a time. It is the boundary to the
// device-driver or gateway layer: a driver may queue the frame or refuse
// it when its buffer is full.
//
// Implementations must preserve submission order for accepted frames; the
// fragmentation layer relies on a single ordered channel per sender.
type Sink interface {
	// TrySend hands one frame to the transport. It returns false when the
	// transport cannot take the frame right now; the caller then arms
	// NotifyWritable and retries after the signal.
	TrySend(Frame) bool

	// NotifyWritable registers a one-shot signal fired when the transport
	// is ready to accept another frame. At most one waiter may be armed
	// per sink consumer.
	NotifyWritable(notify.Notifiable)
}

// ChanSink is a Sink over a buffered channel, used to bind an interface to
// an in-process consumer (hub port, test harness). A full channel reports
// would-block and fires the writable waiter when space opens up.
type ChanSink struct {
	ch       chan Frame
	writable notify.Slot
}

func NewChanSink(depth int) *ChanSink {
	if depth < 1 {
		depth = 1
	}
	return &ChanSink{ch: make(chan Frame, depth)}
}

func (s *ChanSink) TrySend(f Frame) bool {
	select {
	case s.ch <- f:
		return true
	default:
		return false
	}
}

func (s *ChanSink) NotifyWritable(n notify.Notifiable) {
	s.writable.Register(n)
	// The consumer may have drained the channel between TrySend and this
	// registration; fire immediately rather than wait for the next take.
	if len(s.ch) < cap(s.ch) {
		s.writable.Fire()
	}
}

// Next blocks for the next outbound frame, unblocking a suspended sender.
func (s *ChanSink) Next() Frame {
	f := <-s.ch
	s.writable.Fire()
	return f
}

// Take removes one frame from the stream, unblocking a suspended sender.
func (s *ChanSink) Take() (Frame, bool) {
	select {
	case f := <-s.ch:
		s.writable.Fire()
		return f, true
	default:
		return Frame{}, false
	}
}

// Pending reports the number of frames queued and not yet taken.
func (s *ChanSink) Pending() int {
	return len(s.ch)
}
