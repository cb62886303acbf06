package guard

import (
	"context"
	"reflect"
	"runtime"
	"strconv"

	"github.com/go-drift/mend/pkg/fault"
)

// Placeholder is the generic substitute returned by RenderText when a build
// fails and no fallback is available.
const Placeholder = "protected content unavailable"

// Run executes op synchronously under the scope's protection. The fault
// never propagates: on failure the caller receives a previously cached
// value under key (if any), otherwise fallback. On success with a non-empty
// key the result is cached. A recurring failure from the same call site is
// forwarded to the interceptor only once.
//
// An unmounted scope resolves silently to fallback without attempting op.
//
// Example:
//
//	name := guard.Run(s.scope, "profile-name", "anonymous", func() (string, error) {
//	    return s.profile.DisplayName()
//	})
func Run[T any](s *Scope, key string, fallback T, op func() (T, error)) T {
	if op == nil || !s.Mounted() {
		return fallback
	}
	site := callSite(2)
	value, trace, err := runContained(op)
	if err == nil {
		if key != "" {
			s.cachePut(key, value)
		}
		return value
	}
	if s.reportOnce("call:" + site) {
		s.forward(err, trace)
	}
	if key != "" {
		if cached, ok := s.cacheGet(key); ok {
			if typed, ok := cached.(T); ok {
				return typed
			}
		}
	}
	return fallback
}

// RunAsync executes a blocking op under the scope's protection. If the
// scope unmounts while op is in flight, the outcome is discarded and
// fallback returned without invoking anything further. On failure while
// mounted the fault is forwarded, onErr (if given) is invoked, and
// fallback returned.
//
// Example:
//
//	items := guard.RunAsync(ctx, s.scope, nil, s.store.FetchItems, func(err error) {
//	    s.scope.Mutate(func() { s.loadFailed = true })
//	})
func RunAsync[T any](ctx context.Context, s *Scope, fallback T, op func(context.Context) (T, error), onErr func(error)) T {
	if op == nil || !s.Mounted() {
		return fallback
	}
	if ctx == nil {
		ctx = context.Background()
	}
	value, trace, err := runContained(func() (T, error) { return op(ctx) })
	if !s.Mounted() {
		return fallback
	}
	if err == nil {
		return value
	}
	s.forward(err, trace)
	if onErr != nil {
		onErr(err)
	}
	return fallback
}

// Render invokes build synchronously and substitutes fallback when it
// fails. A failure is forwarded once per failing dynamic type per scope,
// so a widget subtree that breaks identically on every frame reports once.
func Render[T any](s *Scope, fallback T, build func() T) T {
	if build == nil || !s.Mounted() {
		return fallback
	}
	value, failure := buildContained(build)
	if failure == nil {
		return value
	}
	if s.reportOnce("type:" + failure.kind) {
		s.forward(failure.err, failure.trace)
	}
	return fallback
}

// RenderText is Render for plain text content, substituting Placeholder on
// failure.
func (s *Scope) RenderText(build func() string) string {
	return Render(s, Placeholder, build)
}

// runContained runs op, converting panics into errors. The trace is
// captured at the failure point.
func runContained[T any](op func() (T, error)) (value T, trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault.AsError(r)
			trace = fault.CaptureStack()
		}
	}()
	value, err = op()
	if err != nil {
		trace = fault.CaptureStack()
	}
	return
}

type buildFailure struct {
	err   error
	trace string
	kind  string
}

// buildContained runs build, folding a panic into a failure record carrying
// the panic value's dynamic type.
func buildContained[T any](build func() T) (value T, failure *buildFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &buildFailure{
				err:   fault.AsError(r),
				trace: fault.CaptureStack(),
				kind:  reflect.TypeOf(r).String(),
			}
		}
	}()
	value = build()
	return
}

// callSite identifies a caller frame for once-per-site reporting.
func callSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return file + ":" + strconv.Itoa(line)
}
