package olcb

import (
	"bytes"
	"testing"
)

func TestEncodeMTIFrameID(t *testing.T) {
	// Event report from alias 0x32D, the canonical monitoring packet.
	id := EncodeMTIFrameID(MTIEventReport, 0x32D)
	if id != 0x195B432D {
		t.Fatalf("expected 0x195B432D, got %08X", id)
	}
	mti, src, ok := DecodeMTIFrameID(id)
	if !ok || mti != MTIEventReport || src != 0x32D {
		t.Fatalf("round trip failed: %03X %03X %v", uint16(mti), uint16(src), ok)
	}
}

func TestDecodeMTIFrameID_RejectsOtherFrameTypes(t *testing.T) {
	// Datagram one-frame (frame type 2) and CAN control frames must not
	// decode as MTI frames.
	for _, id := range []uint32{0x1A123456, 0x10700123, 0x00000123} {
		if _, _, ok := DecodeMTIFrameID(id); ok {
			t.Fatalf("id %08X wrongly decoded as MTI frame", id)
		}
	}
}

func TestAddressedHeader_RoundTrip(t *testing.T) {
	for _, frag := range []Fragment{FragOnly, FragFirst, FragLast, FragMiddle} {
		for _, dst := range []Alias{0, 1, 0xABC, MaxAlias} {
			b0, b1 := EncodeAddressedHeader(frag, dst)
			gotFrag, gotDst := DecodeAddressedHeader(b0, b1)
			if gotFrag != frag || gotDst != dst {
				t.Fatalf("header round trip: frag %d dst %03X -> frag %d dst %03X",
					frag, uint16(dst), gotFrag, uint16(gotDst))
			}
		}
	}
}

func TestGlobalFrame(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	f := GlobalFrame(MTIEventReport, 1, payload)
	if f.ID != 0x195B4001 {
		t.Fatalf("unexpected id %08X", f.ID)
	}
	if !f.Extended {
		t.Fatal("OpenLCB frames are extended")
	}
	if !bytes.Equal(f.Payload(), payload) {
		t.Fatalf("payload mangled: %x", f.Payload())
	}
}

func TestGlobalFrame_OversizedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("9-byte global payload must panic")
		}
	}()
	GlobalFrame(MTIEventReport, 1, make([]byte, 9))
}

func TestAddressedFrames_SingleFrame(t *testing.T) {
	frames := AddressedFrames(MTIProtocolSupportInquiry, 0, 0, []byte("12345"))
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].ID != 0x19828000 {
		t.Fatalf("unexpected id %08X", frames[0].ID)
	}
	if !bytes.Equal(frames[0].Payload(), []byte{0x00, 0x00, '1', '2', '3', '4', '5'}) {
		t.Fatalf("unexpected payload %x", frames[0].Payload())
	}
}

func TestAddressedFrames_Fragmented(t *testing.T) {
	// 20 bytes split 6+6+6+2 with continuation codes first, middle,
	// middle, last; destination bits identical across all fragments.
	frames := AddressedFrames(MTIProtocolSupportInquiry, 0, 0, []byte("01234567890123456789"))
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}
	want := [][]byte{
		{0x10, 0x00, '0', '1', '2', '3', '4', '5'},
		{0x30, 0x00, '6', '7', '8', '9', '0', '1'},
		{0x30, 0x00, '2', '3', '4', '5', '6', '7'},
		{0x20, 0x00, '8', '9'},
	}
	for i, w := range want {
		if frames[i].ID != 0x19828000 {
			t.Fatalf("frame %d unexpected id %08X", i, frames[i].ID)
		}
		if !bytes.Equal(frames[i].Payload(), w) {
			t.Fatalf("frame %d payload %x, want %x", i, frames[i].Payload(), w)
		}
	}
}

func TestAddressedFrames_ChunkingLaw(t *testing.T) {
	for length := 0; length <= 100; length++ {
		payload := make([]byte, length)
		for i := range payload {
			payload[i] = byte(i)
		}
		frames := AddressedFrames(MTIEventReport|mtiAddressedBit, 5, 0x9AB, payload)

		wantCount := 1
		if length > FragmentBytes {
			wantCount = (length + FragmentBytes - 1) / FragmentBytes
		}
		if len(frames) != wantCount {
			t.Fatalf("len %d: expected %d frames, got %d", length, wantCount, len(frames))
		}

		var rebuilt []byte
		for i, f := range frames {
			frag, dst := DecodeAddressedHeader(f.Data[0], f.Data[1])
			if dst != 0x9AB {
				t.Fatalf("len %d frame %d: destination %03X", length, i, uint16(dst))
			}
			want := FragOnly
			if wantCount > 1 {
				switch i {
				case 0:
					want = FragFirst
				case wantCount - 1:
					want = FragLast
				default:
					want = FragMiddle
				}
			}
			if frag != want {
				t.Fatalf("len %d frame %d: code %d, want %d", length, i, frag, want)
			}
			if i < wantCount-1 && int(f.Len) != 2+FragmentBytes {
				t.Fatalf("len %d frame %d: every frame but the last carries %d payload bytes", length, i, FragmentBytes)
			}
			rebuilt = append(rebuilt, f.Payload()[2:]...)
		}
		if !bytes.Equal(rebuilt, payload) {
			t.Fatalf("len %d: fragmentation round trip mismatch", length)
		}
	}
}

func TestMTIPredicates(t *testing.T) {
	if MTIEventReport.Addressed() {
		t.Fatal("event report is global")
	}
	if !MTIProtocolSupportInquiry.Addressed() {
		t.Fatal("protocol support inquiry is addressed")
	}
	if !MTIEventReport.HasEventID() {
		t.Fatal("event report carries an event id")
	}
	for _, m := range []MTI{MTIDatagram, MTIStreamData, MTIStreamInitiateRequest, MTIStreamProceed} {
		if !m.Special() {
			t.Fatalf("mti %04X must be special", uint16(m))
		}
	}
	if MTIEventReport.Special() || MTIProtocolSupportInquiry.Special() {
		t.Fatal("plain mtis wrongly classified special")
	}
	if !MTIEventReport.CanEncode() || !MTIProtocolSupportInquiry.CanEncode() {
		t.Fatal("plain mtis must be encodable")
	}
	if MTIDatagram.CanEncode() || MTIStreamInitiateRequest.CanEncode() {
		t.Fatal("special mtis must not be encodable")
	}
}

func TestFrameBuilders_UnencodableMTIPanics(t *testing.T) {
	// Non-special, but past the 12-bit identifier field.
	bad := MTI(0x2008)
	if bad.Special() || bad.CanEncode() {
		t.Fatalf("mti %04X should be neither special nor encodable", uint16(bad))
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("GlobalFrame with an unencodable mti must panic")
			}
		}()
		GlobalFrame(bad, 1, nil)
	}()
	defer func() {
		if recover() == nil {
			t.Fatal("AddressedFrames with an unencodable mti must panic")
		}
	}()
	AddressedFrames(bad, 1, 2, nil)
}
