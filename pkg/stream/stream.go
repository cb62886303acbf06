// Package stream provides a small broadcast primitive: multiple subscribers
// receive every value emitted after they subscribed, with no replay buffer.
package stream

import (
	"sync"
	"sync/atomic"
)

// Handler receives values from a stream. All fields are optional.
type Handler[T any] struct {
	OnData  func(value T)
	OnError func(err error)
	OnDone  func()
}

// Source is anything that can be subscribed to.
type Source[T any] interface {
	Listen(handler Handler[T]) *Subscription
}

// Subscription represents an active stream subscription.
type Subscription struct {
	detach   func()
	canceled atomic.Bool
}

// Cancel stops delivery to this subscription. Safe to call more than once,
// including while a publish is in flight.
func (s *Subscription) Cancel() {
	if s.canceled.CompareAndSwap(false, true) {
		s.detach()
	}
}

// IsCanceled returns true if this subscription has been canceled.
func (s *Subscription) IsCanceled() bool {
	return s.canceled.Load()
}

type subscriber[T any] struct {
	sub     *Subscription
	handler Handler[T]
}

// Stream broadcasts values to all current subscribers. A late subscriber
// never receives values emitted before it listened.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   []*subscriber[T]
	closed bool
}

// New creates an open stream with no subscribers.
func New[T any]() *Stream[T] {
	return &Stream[T]{}
}

// Listen subscribes to the stream. Subscribing never blocks; listening on a
// closed stream returns an already-canceled subscription.
func (s *Stream[T]) Listen(handler Handler[T]) *Subscription {
	sub := &Subscription{}
	sub.detach = func() { s.remove(sub) }

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.canceled.Store(true)
		return sub
	}
	s.subs = append(s.subs, &subscriber[T]{sub: sub, handler: handler})
	s.mu.Unlock()
	return sub
}

func (s *Stream[T]) remove(sub *Subscription) {
	s.mu.Lock()
	for i, entry := range s.subs {
		if entry.sub == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// snapshot copies the subscriber list so handlers run outside the lock.
func (s *Stream[T]) snapshot() []*subscriber[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.subs) == 0 {
		return nil
	}
	out := make([]*subscriber[T], len(s.subs))
	copy(out, s.subs)
	return out
}

// Emit delivers value to all current subscribers in subscription order.
// Emitting on a closed stream is a no-op.
func (s *Stream[T]) Emit(value T) {
	for _, entry := range s.snapshot() {
		if !entry.sub.IsCanceled() && entry.handler.OnData != nil {
			entry.handler.OnData(value)
		}
	}
}

// Fail delivers err to all current subscribers. The stream remains open.
func (s *Stream[T]) Fail(err error) {
	for _, entry := range s.snapshot() {
		if !entry.sub.IsCanceled() && entry.handler.OnError != nil {
			entry.handler.OnError(err)
		}
	}
}

// Close notifies all subscribers that the stream has ended and permanently
// stops delivery. Close is idempotent.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, entry := range subs {
		entry.sub.canceled.Store(true)
		if entry.handler.OnDone != nil {
			entry.handler.OnDone()
		}
	}
}

// IsClosed returns true if the stream has been closed.
func (s *Stream[T]) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ListenerCount returns the number of active subscriptions.
func (s *Stream[T]) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
