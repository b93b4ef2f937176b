// Package gridconnect encodes CAN frames to and from the GridConnect
// ASCII wire form used by serial-CAN adapters and TCP hubs:
//
//	:X195B4000N0102030405060708;   extended data frame
//	:S123N01;                      standard data frame
//	:X195B4000R;                   remote frame
//
// The decoder is tolerant of garbage between packets; the Scanner splits a
// byte stream on packet terminators so line noise never desynchronizes it.
package gridconnect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openlcb-go/openlcb/can"
)

var (
	ErrMalformed = errors.New("gridconnect: malformed packet")
	ErrBadID     = errors.New("gridconnect: bad identifier")
	ErrBadData   = errors.New("gridconnect: bad data bytes")
)

// Marshal renders one frame as a GridConnect packet.
func Marshal(f can.Frame) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, ":X%08X", f.ID)
	} else {
		fmt.Fprintf(&b, ":S%03X", f.ID)
	}
	if f.RTR {
		b.WriteByte('R')
	} else {
		b.WriteByte('N')
	}
	for _, d := range f.Payload() {
		fmt.Fprintf(&b, "%02X", d)
	}
	b.WriteByte(';')
	return b.String(), nil
}

// Unmarshal parses one packet, with or without the trailing terminator.
func Unmarshal(s string) (can.Frame, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ";")
	if len(s) < 3 || s[0] != ':' {
		return can.Frame{}, ErrMalformed
	}
	var f can.Frame
	switch s[1] {
	case 'X', 'x':
		f.Extended = true
	case 'S', 's':
	default:
		return can.Frame{}, ErrMalformed
	}

	sep := strings.IndexAny(s[2:], "NnRr")
	if sep < 1 {
		return can.Frame{}, ErrMalformed
	}
	sep += 2
	f.RTR = s[sep] == 'R' || s[sep] == 'r'

	id, err := parseHex(s[2:sep], 8)
	if err != nil {
		return can.Frame{}, ErrBadID
	}
	f.ID = id

	data := s[sep+1:]
	if len(data)%2 != 0 || len(data) > 16 {
		return can.Frame{}, ErrBadData
	}
	for n := 0; n < len(data); n += 2 {
		v, err := parseHex(data[n:n+2], 2)
		if err != nil {
			return can.Frame{}, ErrBadData
		}
		f.Data[n/2] = byte(v)
	}
	f.Len = uint8(len(data) / 2)

	if err := f.Validate(); err != nil {
		return can.Frame{}, err
	}
	return f, nil
}

func parseHex(s string, maxDigits int) (uint32, error) {
	if len(s) == 0 || len(s) > maxDigits {
		return 0, ErrMalformed
	}
	var v uint32
	for n := 0; n < len(s); n++ {
		c := s[n]
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | uint32(c-'0')
		case c >= 'A' && c <= 'F':
			v = v<<4 | uint32(c-'A'+10)
		case c >= 'a' && c <= 'f':
			v = v<<4 | uint32(c-'a'+10)
		default:
			return 0, ErrMalformed
		}
	}
	return v, nil
}

// Scanner splits a byte stream into GridConnect packets. Bytes outside a
// packet are discarded, so the scanner resynchronizes on the next ':'
// after any amount of noise.
type Scanner struct {
	buf    []byte
	inside bool
}

// Feed consumes a chunk of stream bytes and returns the frames of every
// packet completed by it. Malformed packets are skipped.
func (s *Scanner) Feed(chunk []byte) []can.Frame {
	var frames []can.Frame
	for _, c := range chunk {
		switch {
		case c == ':':
			s.buf = s.buf[:0]
			s.buf = append(s.buf, c)
			s.inside = true
		case !s.inside:
			// noise between packets
		case c == ';':
			s.inside = false
			if f, err := Unmarshal(string(s.buf)); err == nil {
				frames = append(frames, f)
			}
			s.buf = s.buf[:0]
		default:
			if len(s.buf) > 32 {
				// Runaway packet; drop and resync.
				s.inside = false
				s.buf = s.buf[:0]
				continue
			}
			s.buf = append(s.buf, c)
		}
	}
	return frames
}
