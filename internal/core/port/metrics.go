package port

import "github.com/arklim/ticket-tracker/internal/core/domain"

// DecisionSource names where an authorization answer came from.
type DecisionSource string

const (
	DecisionSourceOverride   DecisionSource = "override"
	DecisionSourceMembership DecisionSource = "membership"
	DecisionSourceNone       DecisionSource = "none"
)

// AuthzMetrics records authorization and dependency graph outcomes.
type AuthzMetrics interface {
	ObserveDecision(permission domain.Permission, allowed bool, source DecisionSource)
	ObserveCycleRejected(policy string)
	ObserveCacheLookup(hit bool)
}

// NopAuthzMetrics discards every observation.
type NopAuthzMetrics struct{}

func (NopAuthzMetrics) ObserveDecision(domain.Permission, bool, DecisionSource) {}
func (NopAuthzMetrics) ObserveCycleRejected(string)                             {}
func (NopAuthzMetrics) ObserveCacheLookup(bool)                                 {}
