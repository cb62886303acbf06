package guard

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/go-drift/mend/pkg/fault"
)

// Timer is a managed deferred-execution handle owned by a scope. The
// callback fires only while the scope is mounted; teardown cancels every
// live handle before returning.
type Timer struct {
	key      string
	periodic bool
	scope    *Scope
	stop     func()
	done     atomic.Bool
}

// Key returns the bookkeeping key the handle is registered under.
func (t *Timer) Key() string {
	return t.key
}

// IsCanceled returns true once the handle has been canceled or, for a
// one-shot handle, has fired.
func (t *Timer) IsCanceled() bool {
	return t.done.Load()
}

// Cancel stops the handle and releases its bookkeeping entry. Canceling an
// already-canceled handle is a no-op.
func (t *Timer) Cancel() {
	if t.done.CompareAndSwap(false, true) {
		t.stop()
		t.scope.removeTimer(t.key, t)
	}
}

// fire runs the callback if the scope is still mounted. A periodic handle
// that observes an unmounted scope cancels itself. Panics in the callback
// are contained and forwarded.
func (t *Timer) fire(fn func()) {
	if !t.scope.Mounted() {
		if t.periodic {
			t.Cancel()
		}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.scope.forward(fault.AsError(r), fault.CaptureStack())
		}
	}()
	fn()
}

// After schedules fn once after delay, registered under key. An empty key
// gets an auto-generated one; scheduling under an existing key cancels the
// prior handle first. A non-positive delay fires fn as soon as possible.
// Returns nil when the scope is already unmounted.
func (s *Scope) After(key string, delay time.Duration, fn func()) *Timer {
	return s.schedule(key, delay, false, fn)
}

// Every schedules fn repeatedly at the given interval, registered under
// key with the same replacement semantics as After. The handle cancels
// itself as soon as it observes an unmounted scope. A non-positive
// interval is a scheduling failure: the fault is forwarded and no handle
// is returned.
func (s *Scope) Every(key string, interval time.Duration, fn func()) *Timer {
	return s.schedule(key, interval, true, fn)
}

func (s *Scope) schedule(key string, d time.Duration, periodic bool, fn func()) *Timer {
	if fn == nil || !s.Mounted() {
		return nil
	}
	if periodic && d <= 0 {
		s.forward(fmt.Errorf("non-positive interval %v for periodic timer", d), "")
		return nil
	}
	if key == "" {
		key = "timer-" + uuid.NewString()
	}

	// The underlying mechanism is armed before the handle becomes visible
	// so Cancel always has something to stop.
	t := &Timer{key: key, periodic: periodic, scope: s}
	if periodic {
		ticker := time.NewTicker(d)
		stopCh := make(chan struct{})
		t.stop = func() {
			ticker.Stop()
			close(stopCh)
		}
		go func() {
			for {
				select {
				case <-ticker.C:
					t.fire(fn)
				case <-stopCh:
					return
				}
			}
		}()
	} else {
		timer := time.AfterFunc(d, func() {
			t.fire(fn)
			// One-shot handles release their entry after firing.
			if t.done.CompareAndSwap(false, true) {
				s.removeTimer(t.key, t)
			}
		})
		t.stop = func() { timer.Stop() }
	}

	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		t.Cancel()
		return nil
	}
	prev := s.timers[key]
	if !t.done.Load() {
		s.timers[key] = t
	}
	s.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	return t
}
