package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "palmyra"

// Metrics groups the application collectors. A nil *Metrics is valid and
// records nothing, so services can be built without a registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	UsersProvisioned     *prometheus.CounterVec
	BestEffortFailures   *prometheus.CounterVec
	ProfilesAwaited      *prometheus.CounterVec
	StatsDuration        prometheus.Histogram
	CountersReconciled   prometheus.Counter
	ProfilesMaterialized *prometheus.CounterVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		UsersProvisioned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_provisioned_total",
			Help:      "Identities created through admin provisioning or self-registration.",
		}, []string{"flow", "tenant"}),
		BestEffortFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_effort_failures_total",
			Help:      "Side operations that failed without failing the request.",
		}, []string{"operation"}),
		ProfilesAwaited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_await_total",
			Help:      "Outcomes of waiting for trigger-materialized profiles.",
		}, []string{"flow", "outcome"}),
		StatsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tenant_stats_duration_seconds",
			Help:      "Latency of the tenant statistics fan-out.",
			Buckets:   prometheus.DefBuckets,
		}),
		CountersReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_counters_reconciled_total",
			Help:      "Tenant user counters corrected by the reconciler.",
		}),
		ProfilesMaterialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_materialized_total",
			Help:      "Profiles written by the profile worker.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.UsersProvisioned,
		m.BestEffortFailures,
		m.ProfilesAwaited,
		m.StatsDuration,
		m.CountersReconciled,
		m.ProfilesMaterialized,
	)
	return m
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) UserProvisioned(flow, tenant string) {
	if m == nil {
		return
	}
	m.UsersProvisioned.WithLabelValues(flow, tenant).Inc()
}

func (m *Metrics) BestEffortFailed(operation string) {
	if m == nil {
		return
	}
	m.BestEffortFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) ProfileAwaited(flow string, found bool) {
	if m == nil {
		return
	}
	outcome := "found"
	if !found {
		outcome = "timeout"
	}
	m.ProfilesAwaited.WithLabelValues(flow, outcome).Inc()
}

func (m *Metrics) ObserveStats(started time.Time) {
	if m == nil {
		return
	}
	m.StatsDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) Reconciled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CountersReconciled.Add(float64(n))
}

func (m *Metrics) ProfileMaterialized(created bool) {
	if m == nil {
		return
	}
	result := "created"
	if !created {
		result = "duplicate"
	}
	m.ProfilesMaterialized.WithLabelValues(result).Inc()
}
