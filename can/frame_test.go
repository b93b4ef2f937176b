package can

import (
	"bytes"
	"testing"

	"github.com/openlcb-go/openlcb/notify"
)

func TestFrame_Validate(t *testing.T) {
	f := NewExtended(0x195B432D, []byte{0x05, 0x01, 0x01, 0x03})
	if err := f.Validate(); err != nil {
		t.Fatalf("valid frame rejected: %v", err)
	}
	if !f.Extended {
		t.Fatal("NewExtended must mark the frame extended")
	}
	if !bytes.Equal(f.Payload(), []byte{0x05, 0x01, 0x01, 0x03}) {
		t.Fatalf("unexpected payload: %x", f.Payload())
	}

	f = Frame{ID: 0x800, Extended: false}
	if err := f.Validate(); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID for 12-bit standard id, got %v", err)
	}
	f = Frame{ID: 0x20000000, Extended: true}
	if err := f.Validate(); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID past 29 bits, got %v", err)
	}
	f = Frame{ID: 1, Len: 9}
	if err := f.Validate(); err != ErrInvalidLen {
		t.Fatalf("expected ErrInvalidLen, got %v", err)
	}
}

func TestNewExtended_OversizedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("9-byte payload must panic")
		}
	}()
	NewExtended(1, make([]byte, 9))
}

func TestChanSink_BackpressureAndWritable(t *testing.T) {
	s := NewChanSink(1)
	if !s.TrySend(NewExtended(1, nil)) {
		t.Fatal("send into empty sink should be accepted")
	}
	if s.TrySend(NewExtended(2, nil)) {
		t.Fatal("send into full sink must report would-block")
	}

	fired := false
	s.NotifyWritable(notify.Func(func() { fired = true }))
	if fired {
		t.Fatal("writable must not fire while the sink is full")
	}
	f, ok := s.Take()
	if !ok || f.ID != 1 {
		t.Fatalf("unexpected take: %v %v", f, ok)
	}
	if !fired {
		t.Fatal("take must fire the writable waiter")
	}
	if !s.TrySend(NewExtended(2, nil)) {
		t.Fatal("sink should accept again after drain")
	}
}

func TestChanSink_NotifyWritableImmediateWhenSpace(t *testing.T) {
	s := NewChanSink(2)
	fired := false
	s.NotifyWritable(notify.Func(func() { fired = true }))
	if !fired {
		t.Fatal("writable must fire immediately while space exists")
	}
}

func TestBus_BroadcastSkipsSender(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Open(4)
	b := bus.Open(4)
	c := bus.Open(4)

	f := NewExtended(0x195B4001, []byte{0xAA})
	if !a.TrySend(f) {
		t.Fatal("loopback send must be accepted")
	}

	for _, ep := range []*Endpoint{b, c} {
		got := <-ep.Recv()
		if got.ID != f.ID || got.Len != f.Len {
			t.Fatalf("endpoint received wrong frame: %v", got)
		}
	}
	select {
	case got := <-a.Recv():
		t.Fatalf("sender must not hear its own frame, got %v", got)
	default:
	}
}

func TestBus_CloseEndsStreams(t *testing.T) {
	bus := NewBus()
	ep := bus.Open(1)
	bus.Close()
	if _, ok := <-ep.Recv(); ok {
		t.Fatal("receive stream must be closed after bus close")
	}
	if ep.TrySend(NewExtended(1, nil)) {
		t.Fatal("send on closed bus must be rejected")
	}
}
