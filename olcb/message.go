package olcb

import (
	"encoding/hex"
	"fmt"
)

// Alias is the 12-bit identifier standing in for a node's full address on
// one CAN segment.
type Alias uint16

// MaxAlias is the largest representable alias value.
const MaxAlias Alias = 0xFFF

// Message is one logical message as seen by the application: a type code,
// the sending node, an optional destination and a payload of arbitrary
// length. Whether Dst is meaningful follows from the MTI's addressed bit.
type Message struct {
	MTI     MTI
	Src     Alias
	Dst     Alias
	Payload []byte
}

// Addressed reports whether the message is directed at Dst rather than
// broadcast to the whole bus.
func (m *Message) Addressed() bool {
	return m.MTI.Addressed()
}

func (m *Message) String() string {
	if m.Addressed() {
		return fmt.Sprintf("<msg mti=%03x %03x->%03x %s>", uint16(m.MTI), uint16(m.Src), uint16(m.Dst), hex.EncodeToString(m.Payload))
	}
	return fmt.Sprintf("<msg mti=%03x %03x %s>", uint16(m.MTI), uint16(m.Src), hex.EncodeToString(m.Payload))
}
