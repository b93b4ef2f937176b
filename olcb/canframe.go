package olcb

import "github.com/openlcb-go/openlcb/can"

// CAN identifier layout for OpenLCB message frames. All OpenLCB traffic
// uses extended identifiers:
//
//	bit 28     reserved, always 1
//	bit 27     1 = OpenLCB message, 0 = CAN control frame
//	bits 26-24 frame type; type 1 carries a global or addressed MTI
//	bits 23-12 MTI
//	bits 11-0  source alias
const (
	idReservedBit   = uint32(1) << 28
	idMessageBit    = uint32(1) << 27
	idFrameTypeMTI  = uint32(1) << 24
	idMTIFramePfx   = idReservedBit | idMessageBit | idFrameTypeMTI // 0x19000000
	idFrameTypeMask = uint32(0x1F000000)
	idMTIMask       = uint32(0x00FFF000)
	idAliasMask     = uint32(0x00000FFF)
)

// MTIFramePattern and MTIFrameMask select every global/addressed MTI frame
// in a dispatcher registration.
const (
	MTIFramePattern = idMTIFramePfx
	MTIFrameMask    = idFrameTypeMask
)

// Fragment is the 4-bit continuation code carried in the top nibble of an
// addressed frame's first payload byte.
type Fragment byte

const (
	FragOnly   Fragment = 0 // complete message in a single frame
	FragFirst  Fragment = 1
	FragLast   Fragment = 2
	FragMiddle Fragment = 3
)

// FragmentBytes is how much message payload fits in one addressed frame
// after the two-byte destination header.
const FragmentBytes = 6

// EncodeMTIFrameID packs the identifier of a global or addressed MTI frame.
func EncodeMTIFrameID(mti MTI, src Alias) uint32 {
	return idMTIFramePfx | uint32(mti)<<12 | uint32(src&MaxAlias)
}

// DecodeMTIFrameID unpacks an identifier; ok is false when the frame is
// not a global/addressed MTI frame (control frame, datagram, stream).
func DecodeMTIFrameID(id uint32) (mti MTI, src Alias, ok bool) {
	if id&idFrameTypeMask != idMTIFramePfx {
		return 0, 0, false
	}
	return MTI(id & idMTIMask >> 12), Alias(id & idAliasMask), true
}

// EncodeAddressedHeader packs the destination alias and continuation code
// into the two header bytes of an addressed frame's payload. The alias
// bits are identical across every fragment of one message; only the code
// nibble varies.
func EncodeAddressedHeader(frag Fragment, dst Alias) (byte, byte) {
	return byte(frag)<<4 | byte(dst>>8&0x0F), byte(dst)
}

// DecodeAddressedHeader unpacks the two header bytes of an addressed
// frame's payload.
func DecodeAddressedHeader(b0, b1 byte) (Fragment, Alias) {
	return Fragment(b0 >> 4), Alias(b0&0x0F)<<8 | Alias(b1)
}

// GlobalFrame builds the single frame of a global (broadcast) message.
// Panics when the payload exceeds 8 bytes or the MTI cannot ride an MTI
// frame: global messages are never fragmented and an MTI past the 12-bit
// field would bleed into the frame-type bits, so both are defects in the
// caller.
func GlobalFrame(mti MTI, src Alias, payload []byte) can.Frame {
	if !mti.CanEncode() {
		panic("olcb: mti does not fit an mti frame")
	}
	if len(payload) > 8 {
		panic("olcb: global message payload exceeds one frame")
	}
	return can.NewExtended(EncodeMTIFrameID(mti, src), payload)
}

// AddressedFrames builds the correctly continuation-coded frame sequence
// of an addressed message. One frame carries at most FragmentBytes payload
// bytes behind the destination header; longer payloads split into
// [first, middle..., last]. Panics when the MTI cannot ride an MTI frame.
func AddressedFrames(mti MTI, src, dst Alias, payload []byte) []can.Frame {
	if !mti.CanEncode() {
		panic("olcb: mti does not fit an mti frame")
	}
	n := len(payload)
	count := 1
	if n > FragmentBytes {
		count = (n + FragmentBytes - 1) / FragmentBytes
	}
	frames := make([]can.Frame, 0, count)
	id := EncodeMTIFrameID(mti, src)
	for i := 0; i < count; i++ {
		frag := FragOnly
		if count > 1 {
			switch i {
			case 0:
				frag = FragFirst
			case count - 1:
				frag = FragLast
			default:
				frag = FragMiddle
			}
		}
		chunk := payload[i*FragmentBytes : min(n, (i+1)*FragmentBytes)]
		b0, b1 := EncodeAddressedHeader(frag, dst)
		data := make([]byte, 0, 2+len(chunk))
		data = append(data, b0, b1)
		data = append(data, chunk...)
		frames = append(frames, can.NewExtended(id, data))
	}
	return frames
}
