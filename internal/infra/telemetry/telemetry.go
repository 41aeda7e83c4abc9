package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
)

// AuthzMetrics exports authorization decisions, rejected dependency cycles and membership
// cache lookups as Prometheus counters.
type AuthzMetrics struct {
	decisions      *prometheus.CounterVec
	cyclesRejected *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// NewAuthzMetrics registers the counters on reg under namespace.
func NewAuthzMetrics(reg prometheus.Registerer, namespace string) *AuthzMetrics {
	if namespace == "" {
		namespace = "tracker"
	}

	m := &AuthzMetrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "Permission checks by permission, outcome and deciding source.",
		}, []string{"permission", "result", "source"}),
		cyclesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_cycles_rejected_total",
			Help:      "Dependency creations refused because they would close a cycle.",
		}, []string{"policy"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "membership_cache_lookups_total",
			Help:      "Membership snapshot cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.decisions, m.cyclesRejected, m.cacheLookups)
	return m
}

func (m *AuthzMetrics) ObserveDecision(permission domain.Permission, allowed bool, source port.DecisionSource) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.decisions.WithLabelValues(string(permission), result, string(source)).Inc()
}

func (m *AuthzMetrics) ObserveCycleRejected(policy string) {
	m.cyclesRejected.WithLabelValues(policy).Inc()
}

func (m *AuthzMetrics) ObserveCacheLookup(hit bool) {
	m.cacheLookups.WithLabelValues(lookupResult(hit)).Inc()
}

func lookupResult(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

var _ port.AuthzMetrics = (*AuthzMetrics)(nil)
