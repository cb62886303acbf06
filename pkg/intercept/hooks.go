package intercept

import (
	"sync"

	"github.com/go-drift/mend/pkg/fault"
)

var (
	dispatchMu   sync.RWMutex
	dispatchFunc func(callback func())

	presenterMu   sync.RWMutex
	presenterFunc func(f *fault.Fault)
)

// RegisterDispatch sets the scheduler used to defer work to the host's next
// tick. This should be called once by the host framework during
// initialization. When no scheduler is registered, deferred work runs on a
// fresh goroutine.
func RegisterDispatch(fn func(callback func())) {
	dispatchMu.Lock()
	dispatchFunc = fn
	dispatchMu.Unlock()
}

// dispatch schedules callback outside the current call path.
func dispatch(callback func()) {
	dispatchMu.RLock()
	fn := dispatchFunc
	dispatchMu.RUnlock()
	if callback == nil {
		return
	}
	if fn == nil {
		go callback()
		return
	}
	fn(callback)
}

// RegisterPresenter sets the host framework's default error-presentation
// path. Unhealed faults admitted by a debug-configured interceptor are
// forwarded here, deferred to the next tick. When no presenter is
// registered the forward is skipped.
func RegisterPresenter(fn func(f *fault.Fault)) {
	presenterMu.Lock()
	presenterFunc = fn
	presenterMu.Unlock()
}

// presenter returns the registered presentation function, or nil.
func presenter() func(f *fault.Fault) {
	presenterMu.RLock()
	defer presenterMu.RUnlock()
	return presenterFunc
}
