package can

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Frame is one classical CAN frame (ISO-11898). The OpenLCB layer always
// uses extended (29-bit) identifiers; standard frames are still accepted
// and carried so that a hub can forward non-OpenLCB traffic unmodified.
type Frame struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool
	RTR      bool
	Len      uint8 // 0..8
	Data     [8]byte
}

const (
	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF
)

var (
	ErrInvalidID  = errors.New("can: invalid identifier")
	ErrInvalidLen = errors.New("can: invalid data length")
)

// NewExtended builds an extended-ID data frame. Panics if the payload
// exceeds 8 bytes; frame construction from oversized data is a caller
// defect, not a runtime condition.
func NewExtended(id uint32, data []byte) Frame {
	if len(data) > 8 {
		panic(ErrInvalidLen)
	}
	f := Frame{ID: id, Extended: true, Len: uint8(len(data))}
	copy(f.Data[:], data)
	return f
}

// Validate checks identifier range against the frame format and the data
// length against classical CAN limits.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	if f.Extended {
		if f.ID > maxExtID {
			return ErrInvalidID
		}
	} else if f.ID > maxStdID {
		return ErrInvalidID
	}
	return nil
}

// Payload returns the live data bytes of the frame.
func (f *Frame) Payload() []byte {
	return f.Data[:f.Len]
}

func (f Frame) String() string {
	if f.Extended {
		return fmt.Sprintf("<frame %08x [%d] %s>", f.ID, f.Len, hex.EncodeToString(f.Data[:f.Len]))
	}
	return fmt.Sprintf("<frame %03x [%d] %s>", f.ID, f.Len, hex.EncodeToString(f.Data[:f.Len]))
}
