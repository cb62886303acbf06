package sink

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-drift/mend/pkg/fault"
	"github.com/go-drift/mend/pkg/intercept"
	"github.com/go-drift/mend/pkg/stream"
)

// MetricsObserver exports fault-pipeline counters to Prometheus.
type MetricsObserver struct {
	reg      prometheus.Registerer
	faults   *prometheus.CounterVec
	healRate prometheus.GaugeFunc
	sub      *stream.Subscription
}

// NewMetricsObserver registers fault counters with reg (the default
// registerer when nil) and attaches to the interceptor's fault stream.
func NewMetricsObserver(ic *intercept.Interceptor, reg prometheus.Registerer) (*MetricsObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	faults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mend_faults_total",
			Help: "Total number of admitted faults",
		},
		[]string{"category", "healed"},
	)
	healRate := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mend_heal_rate",
			Help: "Fraction of admitted faults that were healed",
		},
		ic.HealRate,
	)

	if err := reg.Register(faults); err != nil {
		return nil, err
	}
	if err := reg.Register(healRate); err != nil {
		reg.Unregister(faults)
		return nil, err
	}

	o := &MetricsObserver{reg: reg, faults: faults, healRate: healRate}
	o.sub = ic.Listen(stream.Handler[*fault.Fault]{
		OnData: func(f *fault.Fault) {
			faults.WithLabelValues(f.Category.String(), strconv.FormatBool(f.Healed)).Inc()
		},
	})
	return o, nil
}

// Close cancels the stream subscription and unregisters the collectors.
func (o *MetricsObserver) Close() {
	o.sub.Cancel()
	o.reg.Unregister(o.faults)
	o.reg.Unregister(o.healRate)
}
