// Package intercept implements the fault-intake pipeline: deduplication
// against a suppression window, classification, healing bookkeeping, the
// append-only fault log, and broadcast publication.
package intercept

import (
	"sync"
	"time"

	"github.com/go-drift/mend/pkg/fault"
	"github.com/go-drift/mend/pkg/heal"
	"github.com/go-drift/mend/pkg/stream"
)

const (
	// DefaultWindow is how long a dedup key stays suppressed.
	DefaultWindow = 5 * time.Second
	// DefaultTraceDepth is the number of leading trace lines folded into
	// the dedup key.
	DefaultTraceDepth = 3
)

// Config controls one interceptor instance. The zero value is usable; zero
// fields take the documented defaults.
type Config struct {
	// Window overrides DefaultWindow.
	Window time.Duration
	// TraceDepth overrides DefaultTraceDepth.
	TraceDepth int
	// Rules is the ordered classification table. Defaults to
	// fault.DefaultRules.
	Rules []fault.Rule
	// Registry receives healed-category counts. A fresh registry is
	// created when nil.
	Registry *heal.Registry
	// Debug forwards unhealed faults to the registered presenter,
	// deferred to the next scheduling tick.
	Debug bool
	// LogCap bounds the fault log; once exceeded, the oldest records are
	// dropped. The intercepted/healed totals are independent of the log
	// and keep counting. Zero means unbounded.
	LogCap int
}

// Interceptor admits raw faults, suppresses duplicates inside the window,
// classifies and heals what it recognizes, and republishes every admitted
// record on a broadcast stream. Safe for concurrent use.
type Interceptor struct {
	mu          sync.Mutex
	cfg         Config
	registry    *heal.Registry
	log         []*fault.Fault
	suppressed  map[string]*suppression
	faults      *stream.Stream[*fault.Fault]
	intercepted int
	healed      int
	disposed    bool
}

// suppression is one active dedup entry. The expiry callback compares entry
// identity, not just the key, so an expiry that outlives Clear cannot
// release a key the same fingerprint re-acquired afterward.
type suppression struct {
	timer *time.Timer
}

// New creates an interceptor from cfg.
func New(cfg Config) *Interceptor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.TraceDepth <= 0 {
		cfg.TraceDepth = DefaultTraceDepth
	}
	if cfg.Rules == nil {
		cfg.Rules = fault.DefaultRules
	}
	if cfg.Registry == nil {
		cfg.Registry = heal.NewRegistry()
	}
	return &Interceptor{
		cfg:        cfg,
		registry:   cfg.Registry,
		suppressed: make(map[string]*suppression),
		faults:     stream.New[*fault.Fault](),
	}
}

// Admit runs one fault through the pipeline and returns the admitted
// record, or nil when the fault was dropped (nil error, suppressed
// duplicate, or disposed interceptor). An empty trace is replaced with a
// stack captured at the admission point.
func (i *Interceptor) Admit(err error, trace string, origin string) *fault.Fault {
	if err == nil {
		return nil
	}
	if trace == "" {
		trace = fault.CaptureStack()
	}

	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return nil
	}
	key := fault.Fingerprint(err, trace, i.cfg.TraceDepth)
	if _, active := i.suppressed[key]; active {
		i.mu.Unlock()
		return nil
	}
	// The entry is built before the timer is armed so the callback can
	// capture it without racing the assignment.
	entry := &suppression{}
	entry.timer = time.AfterFunc(i.cfg.Window, func() { i.release(key, entry) })
	i.suppressed[key] = entry

	f := fault.New(err, trace, origin)
	if category, ok := fault.Classify(f.Message(), i.cfg.Rules); ok {
		f.Category = category
		f.Healed = true
		i.registry.Record(category)
	}
	i.log = append(i.log, f)
	if limit := i.cfg.LogCap; limit > 0 && len(i.log) > limit {
		i.log = i.log[len(i.log)-limit:]
	}
	i.intercepted++
	if f.Healed {
		i.healed++
	}
	forward := !f.Healed && i.cfg.Debug
	i.mu.Unlock()

	// Publish outside the lock; stream handlers must not re-enter Admit.
	i.faults.Emit(f)

	// The presentation forward is deferred to the next tick so a
	// presenter that itself faults cannot recurse into admission.
	if forward {
		if present := presenter(); present != nil {
			dispatch(func() { present(f) })
		}
	}
	return f
}

// release drops a suppression key once its window elapses. A stale expiry
// whose entry has been cleared or replaced leaves the map alone.
func (i *Interceptor) release(key string, entry *suppression) {
	i.mu.Lock()
	if i.suppressed[key] == entry {
		delete(i.suppressed, key)
	}
	i.mu.Unlock()
}

// Faults returns a copy of the fault log, oldest first.
func (i *Interceptor) Faults() []*fault.Fault {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*fault.Fault, len(i.log))
	copy(out, i.log)
	return out
}

// Listen subscribes to the broadcast fault stream. A late subscriber never
// receives past faults.
func (i *Interceptor) Listen(h stream.Handler[*fault.Fault]) *stream.Subscription {
	return i.faults.Listen(h)
}

// Registry returns the healing registry this interceptor records into.
func (i *Interceptor) Registry() *heal.Registry {
	return i.registry
}

// TotalIntercepted returns how many faults have been admitted since the
// last Clear.
func (i *Interceptor) TotalIntercepted() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.intercepted
}

// TotalHealed returns how many admitted faults were healed since the last
// Clear.
func (i *Interceptor) TotalHealed() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.healed
}

// HealRate returns healed/intercepted, or 0 when nothing has been admitted.
func (i *Interceptor) HealRate() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.intercepted == 0 {
		return 0
	}
	return float64(i.healed) / float64(i.intercepted)
}

// Window returns the effective suppression window.
func (i *Interceptor) Window() time.Duration {
	return i.cfg.Window
}

// Disposed returns true once Dispose has been called.
func (i *Interceptor) Disposed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.disposed
}

// Clear empties the fault log, resets the totals, and cancels every pending
// suppression expiry. The registry has its own Reset and is left untouched.
func (i *Interceptor) Clear() {
	i.mu.Lock()
	for _, e := range i.suppressed {
		e.timer.Stop()
	}
	i.suppressed = make(map[string]*suppression)
	i.log = nil
	i.intercepted = 0
	i.healed = 0
	i.mu.Unlock()
}

// Dispose clears all state and closes the fault stream: no further admits
// or publishes happen afterward. Dispose is idempotent.
func (i *Interceptor) Dispose() {
	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return
	}
	i.disposed = true
	for _, e := range i.suppressed {
		e.timer.Stop()
	}
	i.suppressed = make(map[string]*suppression)
	i.log = nil
	i.intercepted = 0
	i.healed = 0
	i.mu.Unlock()

	i.faults.Close()
}
