// Package sink provides stock observers for the fault stream: a structured
// log sink and a Prometheus metrics sink. The core pipeline never depends
// on either; attach them where the embedding wants observability.
package sink

import (
	"log/slog"
	"strings"

	"github.com/go-drift/mend/pkg/fault"
	"github.com/go-drift/mend/pkg/intercept"
	"github.com/go-drift/mend/pkg/stream"
)

// LogObserver writes every published fault to a structured logger.
type LogObserver struct {
	sub *stream.Subscription
}

// NewLogObserver attaches logger to the interceptor's fault stream. Healed
// faults log at Info, unhealed at Error with the leading trace line; the
// stream closing logs at Debug. A nil logger uses slog.Default.
func NewLogObserver(ic *intercept.Interceptor, logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	o := &LogObserver{}
	o.sub = ic.Listen(stream.Handler[*fault.Fault]{
		OnData: func(f *fault.Fault) {
			if f.Healed {
				logger.Info("fault healed",
					"id", f.ID,
					"category", f.Category.String(),
					"origin", f.Origin,
					"err", f.Message(),
				)
				return
			}
			logger.Error("fault contained",
				"id", f.ID,
				"origin", f.Origin,
				"err", f.Message(),
				"at", traceLine(f.Trace),
			)
		},
		OnDone: func() {
			logger.Debug("fault stream closed")
		},
	})
	return o
}

// Close stops the observer.
func (o *LogObserver) Close() {
	o.sub.Cancel()
}

// traceLine returns the first line of a trace.
func traceLine(trace string) string {
	if i := strings.IndexByte(trace, '\n'); i >= 0 {
		return trace[:i]
	}
	return trace
}
