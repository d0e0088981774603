package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the backend.
type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	SessionResolutions      *prometheus.CounterVec
	SessionResolveDuration  prometheus.Histogram
	StaleSessionSuppressed  prometheus.Counter
	PipelineMoves           *prometheus.CounterVec
	PipelineRollbackReloads prometheus.Counter
}

// New creates and registers the metric set. Registration conflicts are
// tolerated so tests can construct it repeatedly.
func New(serviceName string) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: serviceName,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: serviceName,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		SessionResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: serviceName,
				Subsystem: "session",
				Name:      "resolutions_total",
				Help:      "Session resolution outcomes by result",
			},
			[]string{"result"},
		),
		SessionResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: serviceName,
				Subsystem: "session",
				Name:      "resolve_duration_seconds",
				Help:      "Time taken to resolve and enrich a session",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		StaleSessionSuppressed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: serviceName,
				Subsystem: "session",
				Name:      "stale_suppressed_total",
				Help:      "Session resolutions discarded because a newer auth event superseded them",
			},
		),
		PipelineMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: serviceName,
				Subsystem: "pipeline",
				Name:      "moves_total",
				Help:      "Pipeline stage moves by outcome",
			},
			[]string{"outcome"},
		),
		PipelineRollbackReloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: serviceName,
				Subsystem: "pipeline",
				Name:      "rollback_reloads_total",
				Help:      "Full board reloads triggered by failed stage moves",
			},
		),
	}

	register(m.RequestCount)
	register(m.RequestDuration)
	register(m.SessionResolutions)
	register(m.SessionResolveDuration)
	register(m.StaleSessionSuppressed)
	register(m.PipelineMoves)
	register(m.PipelineRollbackReloads)

	return m
}

func register(c prometheus.Collector) {
	if err := prometheus.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
