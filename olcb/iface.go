// Package olcb implements the message dispatch and fragmentation engine of
// an OpenLCB CAN node: frame demultiplexing by (value, mask) patterns,
// flow-controlled message write flows that split oversized addressed
// payloads across continuation-coded frames, and the receive-side
// reassembly that mirrors them.
package olcb

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/openlcb-go/openlcb/alloc"
	"github.com/openlcb-go/openlcb/can"
	"github.com/openlcb-go/openlcb/notify"
)

// Observer receives receive-side protocol violations. They are reporting
// material, never fatal; the engine has already discarded the offending
// state when the observer runs.
type Observer interface {
	ProtocolViolation(err error)
}

type logObserver struct {
	log zerolog.Logger
}

func (o logObserver) ProtocolViolation(err error) {
	o.log.Warn().Err(err).Msg("protocol violation on receive")
}

// Interface is one CAN interface's protocol engine. All dispatching and
// flow stepping for the interface runs serialized on a single loop
// goroutine; public methods may be called from any goroutine and hand
// their work to that loop. State shared with callers (registration tables,
// allocator pools) is mutated only in brief atomic sections.
type Interface struct {
	sink can.Sink
	cfg  Config
	log  zerolog.Logger

	frames   *Dispatcher[can.Frame]
	messages *Dispatcher[Message]

	frameWriters     *alloc.Pool[*FrameWriteFlow]
	globalWriters    *alloc.Pool[*WriteFlow]
	addressedWriters *alloc.Pool[*WriteFlow]

	in   chan can.Frame
	wake chan struct{}
	stop chan struct{}
	dead chan struct{}

	actMu    sync.Mutex
	actions  []func()
	draining bool

	// Loop-owned state, touched only from run().
	asm      map[asmKey]*asmContext
	observer Observer
	txWait   []func()
	txArmed  bool

	closeOnce sync.Once
}

// New builds and starts an interface over the given raw-frame sink.
// Inbound frames from the driver enter through DeliverFrame. Close stops
// the loop.
func New(sink can.Sink, cfg Config, log zerolog.Logger) (*Interface, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	i := &Interface{
		sink:     sink,
		cfg:      cfg,
		log:      log,
		frames:   NewDispatcher(func(f can.Frame) uint32 { return f.ID }),
		messages: NewDispatcher(func(m Message) uint32 { return uint32(m.MTI) }),
		in:       make(chan can.Frame, cfg.InboundQueue),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		dead:     make(chan struct{}),
		asm:      make(map[asmKey]*asmContext),
		observer: logObserver{log: log},
	}

	fw := make([]*FrameWriteFlow, cfg.FrameWriteFlows)
	for n := range fw {
		fw[n] = &FrameWriteFlow{iface: i}
	}
	i.frameWriters = alloc.NewPool(fw...)

	gw := make([]*WriteFlow, cfg.GlobalWriteFlows)
	for n := range gw {
		gw[n] = &WriteFlow{iface: i, global: true}
	}
	i.globalWriters = alloc.NewPool(gw...)

	aw := make([]*WriteFlow, cfg.AddressedWriteFlows)
	for n := range aw {
		aw[n] = &WriteFlow{iface: i}
	}
	i.addressedWriters = alloc.NewPool(aw...)

	// The engine's own wiring: every global/addressed MTI frame feeds the
	// message layer, either directly or through reassembly.
	i.frames.Register(MTIFramePattern, MTIFrameMask, HandlerFunc(i.acceptMTIFrame))

	go i.run()
	return i, nil
}

// Frames is the raw-frame dispatcher. Subscribers register against the
// 29-bit CAN identifier.
func (i *Interface) Frames() *Dispatcher[can.Frame] { return i.frames }

// Messages is the logical-message dispatcher. Subscribers register against
// the MTI; mask 0 subscribes to everything.
func (i *Interface) Messages() *Dispatcher[Message] { return i.messages }

// FrameWriters is the allocator pool of raw-frame write flows.
func (i *Interface) FrameWriters() *alloc.Pool[*FrameWriteFlow] { return i.frameWriters }

// GlobalWriters is the allocator pool of broadcast message write flows.
func (i *Interface) GlobalWriters() *alloc.Pool[*WriteFlow] { return i.globalWriters }

// AddressedWriters is the allocator pool of addressed message write flows.
func (i *Interface) AddressedWriters() *alloc.Pool[*WriteFlow] { return i.addressedWriters }

// SetObserver replaces the default zerolog-backed violation reporter.
func (i *Interface) SetObserver(o Observer) {
	if o == nil {
		panic("olcb: nil observer")
	}
	i.do(func() { i.observer = o })
}

// DeliverFrame hands one inbound raw frame from the driver to the engine.
// Frames are processed in delivery order. Blocks while the inbound queue
// is full; returns immediately when the interface is closed.
func (i *Interface) DeliverFrame(f can.Frame) {
	select {
	case i.in <- f:
	case <-i.stop:
	}
}

// SendGlobal acquires a global write flow, possibly waiting for capacity,
// and writes one broadcast message. done receives nil on completion.
func (i *Interface) SendGlobal(mti MTI, src Alias, payload []byte, done func(error)) {
	i.globalWriters.Acquire(func(w *WriteFlow) {
		w.WriteGlobalMessage(mti, src, payload, done)
	})
}

// SendAddressed acquires an addressed write flow, possibly waiting for
// capacity, and writes one message to dst.
func (i *Interface) SendAddressed(mti MTI, src, dst Alias, payload []byte, done func(error)) {
	i.addressedWriters.Acquire(func(w *WriteFlow) {
		w.WriteAddressedMessage(mti, src, dst, payload, done)
	})
}

// Close stops the loop. Writes that had not yet pushed a frame report
// ErrClosed; a send suspended mid-message on transport backpressure is
// abandoned and its callback never fires.
func (i *Interface) Close() error {
	i.closeOnce.Do(func() { close(i.stop) })
	<-i.dead
	return nil
}

// closed reports whether Close has begun.
func (i *Interface) closed() bool {
	select {
	case <-i.stop:
		return true
	default:
		return false
	}
}

// do hands fn to the loop goroutine. Never blocks; safe from notification
// callbacks. Once the loop has begun its final drain the caller runs the
// queue itself; draining is read under the same lock that guards the
// append, so an action enqueued against a stopping loop is always run by
// someone and post-close actions still observe closed() and fail cleanly.
func (i *Interface) do(fn func()) {
	i.actMu.Lock()
	i.actions = append(i.actions, fn)
	drain := i.draining
	i.actMu.Unlock()
	if drain {
		i.runActions()
		return
	}
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

func (i *Interface) runActions() {
	for {
		i.actMu.Lock()
		if len(i.actions) == 0 {
			i.actMu.Unlock()
			return
		}
		fn := i.actions[0]
		i.actions = i.actions[1:]
		i.actMu.Unlock()
		fn()
	}
}

func (i *Interface) run() {
	defer close(i.dead)
	interval := i.cfg.ReassemblyTimeout / 2
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	sweep := time.NewTicker(interval)
	defer sweep.Stop()
	for {
		select {
		case <-i.stop:
			// Final drain so writes racing with Close fail with ErrClosed
			// instead of vanishing. The flag is raised before draining, so
			// an action appended after the drain finds it set and runs on
			// its own goroutine.
			i.actMu.Lock()
			i.draining = true
			i.actMu.Unlock()
			i.runActions()
			return
		case f := <-i.in:
			i.frames.Dispatch(f, notify.Discard)
		case <-i.wake:
			i.runActions()
		case <-sweep.C:
			i.sweepReassembly(time.Now())
		}
	}
}

// awaitWritable parks fn until the sink signals space. The interface owns
// the sink's single writable waiter; any number of suspended flows queue
// behind it. Runs on the loop.
func (i *Interface) awaitWritable(fn func()) {
	i.txWait = append(i.txWait, fn)
	if i.txArmed {
		return
	}
	i.txArmed = true
	i.sink.NotifyWritable(notify.Func(func() {
		i.do(i.writableFired)
	}))
}

func (i *Interface) writableFired() {
	i.txArmed = false
	pending := i.txWait
	i.txWait = nil
	for _, fn := range pending {
		fn()
	}
}

// acceptMTIFrame feeds a global or addressed MTI frame into the message
// layer. Runs on the loop via the frame dispatcher.
func (i *Interface) acceptMTIFrame(f can.Frame, done notify.Notifiable) {
	mti, src, ok := DecodeMTIFrameID(f.ID)
	if !ok || !f.Extended {
		done.Notify()
		return
	}
	if mti.Addressed() {
		i.acceptAddressed(f, mti, src, done)
		return
	}
	msg := Message{MTI: mti, Src: src, Payload: append([]byte(nil), f.Payload()...)}
	i.messages.Dispatch(msg, done)
}
