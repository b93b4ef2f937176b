package olcb

import (
	"github.com/openlcb-go/openlcb/can"
	"github.com/openlcb-go/openlcb/notify"
)

// WriteFlow is one in-flight logical message send, drawn from and returned
// to its interface's allocator pool. The caller acquires a flow, calls
// exactly one of the Write methods or Cancel, and must not touch the flow
// afterwards: completion of the callback is the hand-back.
//
// Frames of one flow reach the transport strictly in chunk order. When the
// transport reports would-block the flow suspends on the writable signal;
// the calling goroutine is never blocked.
type WriteFlow struct {
	iface  *Interface
	global bool // which pool owns this flow

	// Per-send state, owned by the interface loop.
	frames   []can.Frame
	next     int
	started  bool
	loopback *Message
	done     func(error)
	gen      uint64
}

// WriteGlobalMessage sends one broadcast message. The payload must fit a
// single frame; global messages are never fragmented, so more than 8 bytes
// is a defect in the caller and panics. An MTI carrying the addressed bit
// is encoded as an addressed message with an unknown (zero) destination.
// Datagram and stream MTIs are a silent no-op: no frames, no loopback.
//
// done, which may be nil, receives nil after the last frame has been
// accepted by the transport, or ErrCancelled/ErrClosed.
func (w *WriteFlow) WriteGlobalMessage(mti MTI, src Alias, payload []byte, done func(error)) {
	if mti.Special() {
		w.noop(mti, done)
		return
	}
	if mti.Addressed() {
		w.submit(AddressedFrames(mti, src, 0, payload), nil, done)
		return
	}
	frame := GlobalFrame(mti, src, payload) // panics past 8 bytes
	msg := &Message{MTI: mti, Src: src, Payload: append([]byte(nil), payload...)}
	w.submit([]can.Frame{frame}, msg, done)
}

// WriteAddressedMessage sends one message to dst, fragmenting payloads
// past 6 bytes into a first/middle/last continuation-coded sequence.
// Datagram and stream MTIs are a silent no-op.
func (w *WriteFlow) WriteAddressedMessage(mti MTI, src, dst Alias, payload []byte, done func(error)) {
	if mti.Special() {
		w.noop(mti, done)
		return
	}
	w.submit(AddressedFrames(mti, src, dst, payload), nil, done)
}

// Cancel aborts the flow. Effective only while no frame has been handed to
// the transport: the flow then produces nothing, reports ErrCancelled and
// returns to the pool. Once frames are in flight the send runs to
// completion and Cancel is a no-op. Cancelling a freshly acquired flow
// that was never written simply releases it.
func (w *WriteFlow) Cancel() {
	w.iface.do(func() {
		if w.started {
			return
		}
		if w.frames == nil {
			// Acquired but never armed.
			w.release()
			return
		}
		w.finish(ErrCancelled)
	})
}

func (w *WriteFlow) noop(mti MTI, done func(error)) {
	w.iface.do(func() {
		w.iface.log.Debug().Uint16("mti", uint16(mti)).Msg("special mti on generic write path, dropping")
		w.release()
		if done != nil {
			done(nil)
		}
	})
}

func (w *WriteFlow) submit(frames []can.Frame, loopback *Message, done func(error)) {
	w.iface.do(func() {
		if w.iface.closed() {
			w.release()
			if done != nil {
				done(ErrClosed)
			}
			return
		}
		w.frames = frames
		w.next = 0
		w.started = false
		w.loopback = loopback
		w.done = done
		w.step(w.gen)
	})
}

// step pushes frames until the transport pushes back, then suspends on the
// writable signal. Runs on the interface loop; gen guards against signals
// that outlive a cancelled send.
func (w *WriteFlow) step(gen uint64) {
	if gen != w.gen {
		return
	}
	for w.next < len(w.frames) {
		if !w.iface.sink.TrySend(w.frames[w.next]) {
			w.iface.awaitWritable(func() { w.step(gen) })
			return
		}
		w.started = true
		w.next++
	}
	w.finish(nil)
}

func (w *WriteFlow) finish(err error) {
	loopback := w.loopback
	done := w.done
	w.release()
	if err == nil && loopback != nil {
		// Local subscribers observe the node's own broadcasts without
		// reading them back off the wire; ordered after transmit, not
		// atomic with it.
		w.iface.messages.Dispatch(*loopback, notify.Discard)
	}
	if done != nil {
		done(err)
	}
}

// release resets per-send state and returns the flow to its pool.
func (w *WriteFlow) release() {
	w.gen++
	w.frames = nil
	w.next = 0
	w.started = false
	w.loopback = nil
	w.done = nil
	if w.global {
		w.iface.globalWriters.Release(w)
	} else {
		w.iface.addressedWriters.Release(w)
	}
}

// FrameWriteFlow is one in-flight raw-frame send: fill in Frame, then call
// Send or Cancel. Useful for layers that build identifiers themselves
// (alias allocation, gateways).
type FrameWriteFlow struct {
	iface *Interface

	frame   can.Frame
	started bool
	done    func(error)
	gen     uint64
}

// Frame returns the mutable frame to be transmitted.
func (w *FrameWriteFlow) Frame() *can.Frame {
	return &w.frame
}

// Send hands the frame to the transport, suspending on backpressure. done,
// which may be nil, fires once the transport accepted the frame.
func (w *FrameWriteFlow) Send(done func(error)) {
	w.iface.do(func() {
		if w.iface.closed() {
			w.release()
			if done != nil {
				done(ErrClosed)
			}
			return
		}
		w.done = done
		w.step(w.gen)
	})
}

// Cancel releases the flow without transmitting. A no-op once the frame
// has been handed to the transport.
func (w *FrameWriteFlow) Cancel() {
	w.iface.do(func() {
		if w.started {
			return
		}
		done := w.done
		w.release()
		if done != nil {
			done(ErrCancelled)
		}
	})
}

func (w *FrameWriteFlow) step(gen uint64) {
	if gen != w.gen {
		return
	}
	if !w.iface.sink.TrySend(w.frame) {
		w.iface.awaitWritable(func() { w.step(gen) })
		return
	}
	w.started = true
	done := w.done
	w.release()
	if done != nil {
		done(nil)
	}
}

func (w *FrameWriteFlow) release() {
	w.gen++
	w.frame = can.Frame{}
	w.started = false
	w.done = nil
	w.iface.frameWriters.Release(w)
}
