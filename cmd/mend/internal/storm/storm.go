// Package storm drives a synthetic fault workload against a live
// interceptor so the whole pipeline can be watched end to end: guarded
// calls, renders, retries, timers, and subscriptions across a pool of
// short-lived components, with a deliberate mix of healable and
// unhealable failures.
package storm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-drift/mend/pkg/component"
	"github.com/go-drift/mend/pkg/guard"
	"github.com/go-drift/mend/pkg/intercept"
	"github.com/go-drift/mend/pkg/stream"
)

// Options sizes the workload.
type Options struct {
	// Workers is the number of concurrent synthetic components.
	Workers int
	// Duration bounds the run.
	Duration time.Duration
	// Tick paces each worker's operations. Defaults to 50ms.
	Tick time.Duration
}

// Summary reports what a run produced.
type Summary struct {
	Workers     int
	Operations  int
	Deliveries  int
	Intercepted int
	Healed      int
	HealRate    float64
	Report      string
}

// Run executes the workload until the duration elapses or ctx is canceled,
// then tears every component down and collects the totals.
func Run(ctx context.Context, ic *intercept.Interceptor, opts Options) (*Summary, error) {
	if ic == nil {
		return nil, errors.New("storm: interceptor is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Duration <= 0 {
		opts.Duration = time.Second
	}
	if opts.Tick <= 0 {
		opts.Tick = 50 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	feed := stream.New[int]()
	var ops, deliveries atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(opts.Tick)
		defer ticker.Stop()
		n := 0
		for {
			select {
			case <-ctx.Done():
				feed.Close()
				return nil
			case <-ticker.C:
				n++
				feed.Emit(n)
			}
		}
	})
	for w := 0; w < opts.Workers; w++ {
		g.Go(func() error {
			runWorker(ctx, ic, feed, w, opts.Tick, &ops, &deliveries)
			return nil
		})
	}
	err := g.Wait()

	return &Summary{
		Workers:     opts.Workers,
		Operations:  int(ops.Load()),
		Deliveries:  int(deliveries.Load()),
		Intercepted: ic.TotalIntercepted(),
		Healed:      ic.TotalHealed(),
		HealRate:    ic.HealRate(),
		Report:      ic.Registry().Report(),
	}, err
}

// runWorker loops one synthetic component through the operation mix until
// ctx is done, then tears it down. The feed handler and the heartbeat run
// on different goroutines, so the delivery count is atomic.
func runWorker(ctx context.Context, ic *intercept.Interceptor, feed *stream.Stream[int], id int, tick time.Duration, ops, deliveries *atomic.Int64) {
	c := &component.Base{}
	scope := c.Bind(fmt.Sprintf("storm-worker-%d", id), ic)
	defer c.Teardown()

	guard.Subscribe(scope, "feed", feed, stream.Handler[int]{
		OnData: func(int) {
			scope.Mutate(func() { deliveries.Add(1) })
		},
	})
	scope.Every("heartbeat", 4*tick, func() {
		scope.Mutate(func() { deliveries.Add(1) })
	})

	step := 0
	retryAttempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(tick):
		}
		step++
		ops.Add(1)

		switch step % 7 {
		case 0:
			// A genuine nil dereference; the runtime's own message drives
			// classification.
			guard.Run(scope, "", 0, func() (int, error) {
				var p *int
				return *p, nil
			})
		case 1:
			guard.Run(scope, "greeting", "hello", func() (string, error) {
				return fmt.Sprintf("tick %d", step), nil
			})
		case 2:
			_ = guard.Render(scope, "...", func() string {
				panic(errors.New("row content overflowed render constraints"))
			})
		case 3:
			guard.RunAsync(ctx, scope, false, func(context.Context) (bool, error) {
				return false, errors.New("SetState called after Dispose")
			}, nil)
		case 4:
			guard.Run(scope, "", "", func() (string, error) {
				return "", errors.New("context lookup on a deactivated element")
			})
		case 5:
			guard.Retry(ctx, scope, "none", func(context.Context) (string, error) {
				retryAttempts++
				if retryAttempts%3 != 0 {
					return "", errors.New("transient fetch hiccup")
				}
				return "ok", nil
			}, guard.RetryConfig{MaxRetries: 2, Delay: tick / 4, CacheKey: "fetch"})
		case 6:
			guard.Run(scope, "", 0, func() (int, error) {
				return 0, fmt.Errorf("storage probe %d: connection refused", id)
			})
		}
	}
}
