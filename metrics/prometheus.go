package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// latencyBuckets reach past a minute because settlement waits for a block.
var latencyBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// PrometheusRecorder exports payment events as ampersend_x402_payment_events_total
// and facilitator/signing latency as ampersend_x402_operation_duration_seconds.
type PrometheusRecorder struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the SDK collectors on the default registry.
func NewPrometheusRecorder() Recorder {
	return NewPrometheusRecorderWith(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWith registers the SDK collectors on reg. Collectors
// already registered by an earlier recorder are reused.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ampersend",
			Subsystem: "x402",
			Name:      "payment_events_total",
			Help:      "Payment negotiation events by type and network.",
		}, []string{"event", LabelNetwork}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ampersend",
			Subsystem: "x402",
			Name:      "operation_duration_seconds",
			Help:      "Duration of verify, settle and authorize operations.",
			Buckets:   latencyBuckets,
		}, []string{"operation", LabelNetwork}),
	}
	p.events = register(reg, p.events)
	p.duration = register(reg, p.duration)
	return p
}

// register returns the collector already registered under the same
// descriptor, so several recorders on one registry share series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.events.WithLabelValues(name, labels[LabelNetwork]).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.duration.WithLabelValues(name, labels[LabelNetwork]).Observe(d.Seconds())
}
