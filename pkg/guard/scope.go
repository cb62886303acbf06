// Package guard provides per-component protection scopes: guarded execution
// with fallback substitution, a private result cache, and lifetime-bound
// timers and subscriptions that can never outlive their component.
package guard

import (
	"reflect"
	"sync"

	"github.com/go-drift/mend/pkg/fault"
	"github.com/go-drift/mend/pkg/intercept"
	"github.com/go-drift/mend/pkg/stream"
)

// Scope is the protection adapter owned by one component instance. It is
// created when the component initializes and torn down exactly once when
// the component's lifetime ends.
type Scope struct {
	owner       string
	interceptor *intercept.Interceptor

	mu       sync.Mutex
	mounted  bool
	cache    map[string]any
	reported map[string]struct{}
	timers   map[string]*Timer
	subs     map[string]*stream.Subscription
}

// NewScope creates a mounted scope. owner labels the origin of faults
// forwarded from this scope; a nil interceptor binds the process default.
func NewScope(owner string, ic *intercept.Interceptor) *Scope {
	if owner == "" {
		owner = "scope"
	}
	if ic == nil {
		ic = intercept.Default()
	}
	return &Scope{
		owner:       owner,
		interceptor: ic,
		mounted:     true,
		cache:       make(map[string]any),
		reported:    make(map[string]struct{}),
		timers:      make(map[string]*Timer),
		subs:        make(map[string]*stream.Subscription),
	}
}

// Owner returns the origin label forwarded with this scope's faults.
func (s *Scope) Owner() string {
	return s.owner
}

// Interceptor returns the interceptor this scope forwards to.
func (s *Scope) Interceptor() *intercept.Interceptor {
	return s.interceptor
}

// Mounted reports whether the scope is still attached to a live component.
// It flips to false exactly once, at the start of Teardown.
func (s *Scope) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Mutate applies a state mutation only while the scope is mounted. After
// teardown it is a hard no-op, which structurally prevents the
// mutate-after-teardown fault class. A panic inside fn is contained and
// forwarded.
func (s *Scope) Mutate(fn func()) {
	if fn == nil || !s.Mounted() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.forward(fault.AsError(r), fault.CaptureStack())
		}
	}()
	fn()
}

// Stats describes the scope's current bookkeeping. Diagnostic only.
type Stats struct {
	Cached        int
	Reported      int
	Timers        int
	Subscriptions int
	Mounted       bool
}

// Stats returns the sizes of the scope's caches and handle maps.
func (s *Scope) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Cached:        len(s.cache),
		Reported:      len(s.reported),
		Timers:        len(s.timers),
		Subscriptions: len(s.subs),
		Mounted:       s.mounted,
	}
}

// ClearCache empties the result cache and the reported-operation set.
// Timers and subscriptions are unaffected.
func (s *Scope) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]any)
	s.reported = make(map[string]struct{})
	s.mu.Unlock()
}

// Teardown unmounts the scope, then synchronously cancels every managed
// timer and subscription before returning and drops the cache. Calling it
// again is a no-op; canceling already-canceled handles never fails.
func (s *Scope) Teardown() {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = false
	timers := s.timers
	subs := s.subs
	s.timers = make(map[string]*Timer)
	s.subs = make(map[string]*stream.Subscription)
	s.cache = make(map[string]any)
	s.reported = make(map[string]struct{})
	s.mu.Unlock()

	for _, t := range timers {
		t.Cancel()
	}
	for _, sub := range subs {
		sub.Cancel()
	}
}

// forward admits a contained failure into the interceptor under this
// scope's origin label.
func (s *Scope) forward(err error, trace string) *fault.Fault {
	return s.interceptor.Admit(err, trace, s.owner)
}

// reportOnce records identity and returns true only the first time it is
// seen, so a recurring failure from one site is forwarded a single time.
func (s *Scope) reportOnce(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.reported[identity]; seen {
		return false
	}
	s.reported[identity] = struct{}{}
	return true
}

// cachePut stores a successful result. Nil-valued results are skipped so a
// stale good value is never shadowed by an empty one.
func (s *Scope) cachePut(key string, value any) {
	if isNilValue(value) {
		return
	}
	s.mu.Lock()
	if s.mounted {
		s.cache[key] = value
	}
	s.mu.Unlock()
}

// cacheGet returns the entry under key, if any.
func (s *Scope) cacheGet(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[key]
	return v, ok
}

// removeTimer drops the bookkeeping entry for t, unless the key has
// already been taken over by a replacement handle.
func (s *Scope) removeTimer(key string, t *Timer) {
	s.mu.Lock()
	if s.timers[key] == t {
		delete(s.timers, key)
	}
	s.mu.Unlock()
}

// removeSub drops the bookkeeping entry for sub, unless the key has
// already been taken over by a replacement subscription.
func (s *Scope) removeSub(key string, sub *stream.Subscription) {
	s.mu.Lock()
	if s.subs[key] == sub {
		delete(s.subs, key)
	}
	s.mu.Unlock()
}

// isNilValue reports whether value is nil or a nil-valued reference type.
func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
