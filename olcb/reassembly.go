package olcb

import (
	"time"

	"github.com/openlcb-go/openlcb/can"
	"github.com/openlcb-go/openlcb/notify"
)

// Receive-side fragmentation state. One context tracks the in-progress
// addressed multi-frame message of one (source, destination) pair; the
// accumulated payload is append-only and fragments are consumed strictly
// in arrival order. All of this is owned by the interface loop.

type asmKey struct {
	src, dst Alias
}

type asmContext struct {
	mti      MTI
	buf      []byte
	lastSeen time.Time
}

// acceptAddressed consumes one addressed MTI frame: single-frame messages
// deliver immediately, fragments accumulate until the last marker.
func (i *Interface) acceptAddressed(f can.Frame, mti MTI, src Alias, done notify.Notifiable) {
	p := f.Payload()
	if len(p) < 2 {
		i.observer.ProtocolViolation(&FragmentError{Src: src, Reason: "addressed frame shorter than destination header"})
		done.Notify()
		return
	}
	frag, dst := DecodeAddressedHeader(p[0], p[1])
	body := p[2:]
	key := asmKey{src: src, dst: dst}

	switch frag {
	case FragOnly:
		delete(i.asm, key)
		i.deliver(mti, src, dst, append([]byte(nil), body...), done)

	case FragFirst:
		// A new message interrupts any incomplete one: last first wins.
		if _, dup := i.asm[key]; dup {
			i.log.Debug().Uint16("src", uint16(src)).Uint16("dst", uint16(dst)).
				Msg("first fragment replaces incomplete reassembly")
		}
		i.asm[key] = &asmContext{
			mti:      mti,
			buf:      append([]byte(nil), body...),
			lastSeen: time.Now(),
		}
		done.Notify()

	case FragMiddle, FragLast:
		ctx, ok := i.asm[key]
		if !ok {
			i.observer.ProtocolViolation(&FragmentError{
				Src: src, Dst: dst, Code: frag,
				Reason: "continuation fragment without a first fragment",
			})
			done.Notify()
			return
		}
		if ctx.mti != mti {
			delete(i.asm, key)
			i.observer.ProtocolViolation(&FragmentError{
				Src: src, Dst: dst, Code: frag,
				Reason: "mti changed mid-message",
			})
			done.Notify()
			return
		}
		ctx.buf = append(ctx.buf, body...)
		ctx.lastSeen = time.Now()
		if frag == FragMiddle {
			done.Notify()
			return
		}
		delete(i.asm, key)
		i.deliver(mti, src, dst, ctx.buf, done)

	default:
		i.observer.ProtocolViolation(&FragmentError{
			Src: src, Dst: dst, Code: frag,
			Reason: "continuation code out of range",
		})
		done.Notify()
	}
}

func (i *Interface) deliver(mti MTI, src, dst Alias, payload []byte, done notify.Notifiable) {
	i.messages.Dispatch(Message{MTI: mti, Src: src, Dst: dst, Payload: payload}, done)
}

// sweepReassembly reclaims contexts whose sender went silent, bounding the
// memory abandoned multi-frame messages can pin.
func (i *Interface) sweepReassembly(now time.Time) {
	for key, ctx := range i.asm {
		if now.Sub(ctx.lastSeen) >= i.cfg.ReassemblyTimeout {
			delete(i.asm, key)
			i.observer.ProtocolViolation(&FragmentError{
				Src: key.src, Dst: key.dst,
				Reason: "reassembly abandoned, sender idle past timeout",
			})
		}
	}
}
