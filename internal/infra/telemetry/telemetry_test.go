package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
)

func TestAuthzMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewAuthzMetrics(registry, "")

	metrics.ObserveDecision(domain.PermissionTicketEdit, true, port.DecisionSourceOverride)
	metrics.ObserveDecision(domain.PermissionTicketEdit, false, port.DecisionSourceMembership)
	metrics.ObserveDecision(domain.PermissionTicketEdit, false, port.DecisionSourceMembership)
	metrics.ObserveCycleRejected("transitive")
	metrics.ObserveCacheLookup(true)
	metrics.ObserveCacheLookup(false)
	metrics.ObserveCacheLookup(false)

	if got := testutil.ToFloat64(metrics.decisions.WithLabelValues("ticket.edit", "allow", "override")); got != 1 {
		t.Fatalf("expected 1 allow decision, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.decisions.WithLabelValues("ticket.edit", "deny", "membership")); got != 2 {
		t.Fatalf("expected 2 deny decisions, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.cyclesRejected.WithLabelValues("transitive")); got != 1 {
		t.Fatalf("expected 1 rejected cycle, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("expected 2 cache misses, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.cacheLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("expected 1 cache hit, got %f", got)
	}
}

func TestAuthzMetricsNamespace(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewAuthzMetrics(registry, "tracker")
	metrics.ObserveCycleRejected("direct")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "tracker_dependency_cycles_rejected_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("tracker_dependency_cycles_rejected_total not registered")
	}
}
