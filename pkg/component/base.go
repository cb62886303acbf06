// Package component provides the embeddable adapter that wires a host
// component's lifetime to a protection scope.
package component

import (
	"sync"

	"github.com/go-drift/mend/pkg/guard"
	"github.com/go-drift/mend/pkg/intercept"
)

// Base provides protection-scope plumbing for stateful components. Embed
// it in a component and call Teardown exactly once when the component is
// disposed; the library has no independent way to detect disposal.
//
// Example:
//
//	type profileView struct {
//	    component.Base
//	    name string
//	}
//
//	func (v *profileView) Init() {
//	    v.Bind("profileView", nil)
//	    v.Scope().Every("refresh", time.Minute, v.refresh)
//	}
//
//	func (v *profileView) Dispose() {
//	    v.Teardown()
//	}
type Base struct {
	mu       sync.Mutex
	scope    *guard.Scope
	cleanups []func()
	tornDown bool
}

// Bind creates the component's scope with an explicit owner label and
// interceptor. The first call wins; later calls return the existing scope.
func (b *Base) Bind(owner string, ic *intercept.Interceptor) *guard.Scope {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scope == nil {
		b.scope = guard.NewScope(owner, ic)
	}
	return b.scope
}

// Scope returns the component's protection scope, creating one bound to
// the process-default interceptor on first use.
func (b *Base) Scope() *guard.Scope {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scope == nil {
		b.scope = guard.NewScope("component", nil)
	}
	return b.scope
}

// OnTeardown registers a cleanup function to run when the component tears
// down. Returns an unregister function. Cleanups run in reverse
// registration order; registering after teardown runs cleanup immediately.
func (b *Base) OnTeardown(cleanup func()) func() {
	if cleanup == nil {
		return func() {}
	}

	b.mu.Lock()
	if b.tornDown {
		b.mu.Unlock()
		cleanup()
		return func() {}
	}
	index := len(b.cleanups)
	b.cleanups = append(b.cleanups, cleanup)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if index < len(b.cleanups) {
			b.cleanups[index] = nil
		}
	}
}

// Teardown runs the registered cleanups in reverse order, then tears down
// the scope. Only the first call has any effect.
func (b *Base) Teardown() {
	b.mu.Lock()
	if b.tornDown {
		b.mu.Unlock()
		return
	}
	b.tornDown = true
	cleanups := b.cleanups
	b.cleanups = nil
	scope := b.scope
	b.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if cleanups[i] != nil {
			cleanups[i]()
		}
	}
	if scope != nil {
		scope.Teardown()
	}
}

// TornDown returns true once Teardown has run.
func (b *Base) TornDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tornDown
}
