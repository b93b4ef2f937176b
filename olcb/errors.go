package olcb

import (
	"errors"
	"fmt"
)

// ErrCancelled is reported to a write's completion callback when the flow
// was cancelled before its first frame reached the transport.
var ErrCancelled = errors.New("olcb: write cancelled")

// ErrClosed is reported for writes submitted to a closed interface.
var ErrClosed = errors.New("olcb: interface closed")

// FragmentError describes a receive-side protocol violation in the
// addressed fragment stream of one (source, destination) pair. It is
// reported to the interface observer and is never fatal: the partial
// reassembly state is discarded and the stream restarts cleanly on the
// next first fragment.
type FragmentError struct {
	Src, Dst Alias
	Code     Fragment
	Reason   string
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("olcb: bad fragment %03x->%03x code %d: %s", uint16(e.Src), uint16(e.Dst), e.Code, e.Reason)
}
