package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/go-drift/mend/cmd/mend/internal/config"
	"github.com/go-drift/mend/cmd/mend/internal/storm"
	"github.com/go-drift/mend/pkg/intercept"
	"github.com/go-drift/mend/pkg/sink"
)

func init() {
	RegisterCommand(&Command{
		Name:  "stress",
		Short: "Run the synthetic fault workload",
		Long: `Run a synthetic fault workload against a fresh interceptor and
print the healing report.

Workers drive protection scopes through a mix of healable and
unhealable failures: nil dereferences, stale state mutations,
render overflows, flaky retries, timers, and subscriptions.
Faults stream to the terminal as they are admitted; with
--metrics, Prometheus counters are served while the storm runs.

Flags override mend.yaml:
  --workers N      Number of concurrent components
  --duration D     How long to run (e.g. 30s)
  --window D       Dedup suppression window
  --debug          Verbose logging and presenter forwarding
  --metrics        Serve /metrics and /healthz during the run
  --addr HOST:PORT Metrics listen address`,
		Usage: "mend stress [flags]",
		Run:   runStress,
	})
}

func runStress(args []string) error {
	dir := projectDir
	if dir == "." {
		dir = config.FindProjectRoot()
	}
	cfg, err := config.Resolve(dir)
	if err != nil {
		return err
	}

	workers := cfg.Storm.Workers
	duration := cfg.Storm.Duration.Std()
	window := cfg.Policy.Window.Std()
	addr := cfg.Storm.MetricsAddr
	debug := cfg.Policy.Debug
	serveMetrics := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--workers":
			if i+1 >= len(args) {
				return fmt.Errorf("--workers requires a number")
			}
			workers, err = strconv.Atoi(args[i+1])
			if err != nil || workers <= 0 {
				return fmt.Errorf("invalid worker count %q", args[i+1])
			}
			i++
		case "--duration":
			if i+1 >= len(args) {
				return fmt.Errorf("--duration requires a duration")
			}
			duration, err = time.ParseDuration(args[i+1])
			if err != nil || duration <= 0 {
				return fmt.Errorf("invalid duration %q", args[i+1])
			}
			i++
		case "--window":
			if i+1 >= len(args) {
				return fmt.Errorf("--window requires a duration")
			}
			window, err = time.ParseDuration(args[i+1])
			if err != nil || window <= 0 {
				return fmt.Errorf("invalid window %q", args[i+1])
			}
			i++
		case "--addr":
			if i+1 >= len(args) {
				return fmt.Errorf("--addr requires an address")
			}
			addr = args[i+1]
			serveMetrics = true
			i++
		case "--debug":
			debug = true
		case "--metrics":
			serveMetrics = true
		default:
			return fmt.Errorf("unknown flag %q", args[i])
		}
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))

	ic := intercept.Initialize(intercept.Config{
		Window:     window,
		TraceDepth: cfg.Policy.TraceDepth,
		LogCap:     cfg.Policy.LogCap,
		Debug:      debug,
	})
	defer ic.Dispose()

	logObserver := sink.NewLogObserver(ic, logger)
	defer logObserver.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	var server *http.Server
	if serveMetrics {
		metricsObserver, err := sink.NewMetricsObserver(ic, nil)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		defer metricsObserver.Close()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		server = &http.Server{Addr: addr, Handler: mux}
		g.Go(func() error {
			logger.Info("serving metrics", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	fmt.Printf("Running fault storm: %d workers for %s (Ctrl+C to stop)...\n\n", workers, duration)

	summary, err := storm.Run(gctx, ic, storm.Options{
		Workers:  workers,
		Duration: duration,
	})

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}
	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Storm complete.")
	fmt.Printf("  workers:      %d\n", summary.Workers)
	fmt.Printf("  operations:   %d\n", summary.Operations)
	fmt.Printf("  deliveries:   %d\n", summary.Deliveries)
	fmt.Printf("  intercepted:  %d\n", summary.Intercepted)
	fmt.Printf("  healed:       %d\n", summary.Healed)
	fmt.Printf("  heal rate:    %.0f%%\n", summary.HealRate*100)
	fmt.Println()
	fmt.Println(summary.Report)
	return nil
}
