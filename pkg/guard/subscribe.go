package guard

import (
	"github.com/google/uuid"

	"github.com/go-drift/mend/pkg/stream"
)

// Subscribe attaches the scope to a stream source, registered under key
// with at most one live subscription per key (a new subscription cancels
// the prior one). Data is delivered only while the scope is mounted;
// stream errors are forwarded to the interceptor before reaching
// h.OnError; natural completion removes the bookkeeping entry before
// h.OnDone runs. Teardown cancels every live subscription.
//
// Returns nil when the scope is already unmounted.
//
// Example:
//
//	guard.Subscribe(s.scope, "prices", priceFeed, stream.Handler[Price]{
//	    OnData: func(p Price) {
//	        s.scope.Mutate(func() { s.latest = p })
//	    },
//	})
func Subscribe[T any](s *Scope, key string, src stream.Source[T], h stream.Handler[T]) *stream.Subscription {
	if src == nil || !s.Mounted() {
		return nil
	}
	if key == "" {
		key = "sub-" + uuid.NewString()
	}

	var sub *stream.Subscription
	wrapped := stream.Handler[T]{
		OnData: func(value T) {
			if !s.Mounted() {
				return
			}
			if h.OnData != nil {
				h.OnData(value)
			}
		},
		OnError: func(err error) {
			if !s.Mounted() {
				return
			}
			s.forward(err, "")
			if h.OnError != nil {
				h.OnError(err)
			}
		},
		OnDone: func() {
			s.removeSub(key, sub)
			if h.OnDone != nil {
				h.OnDone()
			}
		},
	}
	sub = src.Listen(wrapped)

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		sub.Cancel()
		return nil
	}
	prev := s.subs[key]
	if !sub.IsCanceled() {
		s.subs[key] = sub
	}
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	return sub
}
