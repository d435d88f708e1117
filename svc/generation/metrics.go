package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dmitrymomot/gengate/pkg/provider"
)

// Metrics are the dispatcher's Prometheus collectors.
type Metrics struct {
	Requests       *prometheus.CounterVec
	Attempts       *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec
	CostUSD        *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	CommitFailures prometheus.Counter
}

// GenerationBuckets cover fast image jobs up to the five minute video deadline.
var GenerationBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 180, 300}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Generation requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by backend and result",
		}, []string{"backend", "result"}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "fallbacks_total",
			Help:      "Requests that moved past their primary backend",
		}, []string{"kind"}),
		CostUSD: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "cost_usd_total",
			Help:      "Estimated provider spend in USD",
		}, []string{"backend"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Time from request to resolution",
			Buckets:   GenerationBuckets,
		}, []string{"kind", "state"}),
		CommitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "commit_failures_total",
			Help:      "Successful generations whose usage could not be committed",
		}),
	}
}

func (m *Metrics) observeResult(kind provider.Kind, res *Result, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		outcome = string(res.ErrorKind)
	}
	m.Requests.WithLabelValues(string(kind), outcome).Inc()
	m.Duration.WithLabelValues(string(kind), string(res.State)).Observe(d.Seconds())
	if res.Success {
		m.CostUSD.WithLabelValues(string(res.Provider)).Add(res.CostUSD)
	}
}

func (m *Metrics) observeAttempt(b provider.Backend, out provider.Outcome) {
	if m == nil {
		return
	}
	result := "success"
	if !out.Succeeded() && out.Err != nil {
		result = string(out.Err.Kind)
	}
	m.Attempts.WithLabelValues(string(b), result).Inc()
}

func (m *Metrics) observeFallback(kind provider.Kind) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeCommitFailure() {
	if m == nil {
		return
	}
	m.CommitFailures.Inc()
}
