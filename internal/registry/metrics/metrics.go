package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the code registry and the verification
// paths built on top of it.
type Metrics struct {
	CodesIssued       prometheus.Counter
	CodeCollisions    prometheus.Counter
	Verifications     *prometheus.CounterVec
	SourceFailures    prometheus.Counter
	RateLimitRejected prometheus.Counter
	RegisterDuration  prometheus.Histogram
	VerifyDuration    prometheus.Histogram
}

// New creates a Metrics instance with all registry metrics registered on the
// default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all registry metrics on reg. Tests use a fresh registry
// per instance to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CodesIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "vsauth_codes_issued_total",
			Help: "Total number of security codes issued",
		}),
		CodeCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "vsauth_code_collisions_total",
			Help: "Total number of generated codes rejected for colliding with a stored code",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vsauth_verifications_total",
			Help: "Total number of verification verdicts, labeled by outcome",
		}, []string{"verdict"}),
		SourceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vsauth_source_failures_total",
			Help: "Total number of failed external source lookups",
		}),
		RateLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "vsauth_rate_limit_rejected_total",
			Help: "Total number of requests rejected by the customer rate limiter",
		}),
		RegisterDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vsauth_register_duration_seconds",
			Help:    "Duration of RegisterOrUpdate operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vsauth_verify_duration_seconds",
			Help:    "Duration of verification requests, enrichment included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementCodesIssued records a successful code registration.
func (m *Metrics) IncrementCodesIssued() {
	m.CodesIssued.Inc()
}

// IncrementCodeCollisions records a rejected candidate code.
func (m *Metrics) IncrementCodeCollisions() {
	m.CodeCollisions.Inc()
}

// IncrementVerifications records a verification verdict.
func (m *Metrics) IncrementVerifications(verdict string) {
	m.Verifications.WithLabelValues(verdict).Inc()
}

// IncrementSourceFailures records a failed external source lookup.
func (m *Metrics) IncrementSourceFailures() {
	m.SourceFailures.Inc()
}

// IncrementRateLimitRejected records a rate-limited customer request.
func (m *Metrics) IncrementRateLimitRejected() {
	m.RateLimitRejected.Inc()
}

// ObserveRegister records the duration of a RegisterOrUpdate operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveVerify records the duration of a verification request.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveVerify(start time.Time) {
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}
