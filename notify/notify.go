// Package notify provides the one-shot completion primitives the protocol
// stack uses instead of blocking calls. An operation either finishes on the
// caller's stack, or it registers a Notifiable that is invoked exactly once
// when the operation later becomes possible.
package notify

import "sync"

// Notifiable receives a single completion signal.
type Notifiable interface {
	Notify()
}

// Func adapts a plain function to a Notifiable.
type Func func()

func (f Func) Notify() { f() }

// Discard is a Notifiable that ignores the signal. Callers pass it when
// they have no interest in completion.
var Discard Notifiable = Func(func() {})

// Sync is a Notifiable that can be waited on. It is the bridge for callers
// that do want to block (tests, synchronous shims).
type Sync struct {
	ch   chan struct{}
	once sync.Once
}

func NewSync() *Sync {
	return &Sync{ch: make(chan struct{})}
}

func (s *Sync) Notify() {
	s.once.Do(func() { close(s.ch) })
}

// Wait blocks until Notify has been called.
func (s *Sync) Wait() {
	<-s.ch
}

// C exposes the completion channel for use in select statements.
func (s *Sync) C() <-chan struct{} {
	return s.ch
}

// Slot is an owned, optional waiter attached to a resource. At most one
// Notifiable may be registered at a time; registering over a live waiter
// panics, because it means a previous waiter was dropped without ever
// being notified and would have leaked its resource.
type Slot struct {
	mu     sync.Mutex
	waiter Notifiable
}

// Register stores the waiter to be fired later.
func (s *Slot) Register(n Notifiable) {
	if n == nil {
		panic("notify: registering nil waiter")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiter != nil {
		panic("notify: waiter already registered, previous waiter would be lost")
	}
	s.waiter = n
}

// Fire takes the registered waiter, if any, and notifies it. The slot is
// empty afterwards; firing an empty slot is a no-op so that producers may
// signal unconditionally.
func (s *Slot) Fire() {
	s.mu.Lock()
	w := s.waiter
	s.waiter = nil
	s.mu.Unlock()
	if w != nil {
		w.Notify()
	}
}

// Armed reports whether a waiter is currently registered.
func (s *Slot) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiter != nil
}
