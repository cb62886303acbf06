package intercept

import (
	"sync"

	"github.com/go-drift/mend/pkg/fault"
)

var (
	defaultMu       sync.Mutex
	defaultInstance *Interceptor
)

// Initialize constructs a fresh interceptor from cfg and installs it as the
// process default, disposing any previous default. No history carries over;
// pending suppression expiries of the old instance stay bound to the old
// instance.
func Initialize(cfg Config) *Interceptor {
	ic := New(cfg)
	defaultMu.Lock()
	prev := defaultInstance
	defaultInstance = ic
	defaultMu.Unlock()
	if prev != nil {
		prev.Dispose()
	}
	return ic
}

// Default returns the process-default interceptor, creating one with a zero
// config on first use.
func Default() *Interceptor {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstance == nil {
		defaultInstance = New(Config{})
	}
	return defaultInstance
}

// Route admits an uncaught fault into the process-default interceptor.
// Host frameworks wire their global error handler to this entry point.
func Route(err error, trace string, origin string) *fault.Fault {
	return Default().Admit(err, trace, origin)
}
