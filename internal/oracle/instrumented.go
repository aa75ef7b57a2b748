package oracle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instrumented records call counts, outcomes and latency of a wrapped oracle
type Instrumented struct {
	next       Oracle
	calls      *prometheus.CounterVec
	duration   prometheus.Histogram
	lastMetric prometheus.Gauge
}

// NewInstrumented registers the oracle collectors on reg
func NewInstrumented(next Oracle, reg prometheus.Registerer) *Instrumented {
	f := promauto.With(reg)
	return &Instrumented{
		next: next,
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bitwidth_oracle_calls_total",
			Help: "Oracle calls by result (ok, error, or failure kind)",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitwidth_oracle_call_duration_seconds",
			Help:    "Wall-clock duration of oracle calls",
			Buckets: []float64{0.01, 0.1, 1, 10, 30, 60, 120, 300, 600},
		}),
		lastMetric: f.NewGauge(prometheus.GaugeOpts{
			Name: "bitwidth_oracle_last_metric",
			Help: "Metric returned by the most recent successful oracle call",
		}),
	}
}

// Evaluate forwards to the wrapped oracle
func (i *Instrumented) Evaluate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := i.next.Evaluate(ctx, req)
	i.duration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		i.calls.WithLabelValues("error").Inc()
	case resp.Failure != nil:
		i.calls.WithLabelValues(string(resp.Failure.Kind)).Inc()
	default:
		i.calls.WithLabelValues("ok").Inc()
		i.lastMetric.Set(resp.Metric)
	}
	return resp, err
}
