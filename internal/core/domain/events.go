package domain

import "time"

// MembershipAction enumerates membership mutations published for audit.
type MembershipAction string

const (
	MembershipAssigned    MembershipAction = "assigned"
	MembershipRoleUpdated MembershipAction = "role_updated"
	MembershipRemoved     MembershipAction = "removed"
)

// MembershipChangedEvent represents the payload for tracker.membership.changed messages.
type MembershipChangedEvent struct {
	EventID    string
	Action     MembershipAction
	ProjectID  string
	UserID     string
	ActorID    string
	Role       Role
	PrevRole   Role
	OccurredAt time.Time
	Metadata   map[string]any
}

// DependencyAction enumerates dependency edge mutations published for audit.
type DependencyAction string

const (
	DependencyCreated DependencyAction = "created"
	DependencyUpdated DependencyAction = "updated"
	DependencyRemoved DependencyAction = "removed"
)

// DependencyChangedEvent represents the payload for tracker.dependency.changed messages.
type DependencyChangedEvent struct {
	EventID      string
	Action       DependencyAction
	DependencyID string
	ProjectID    string
	DependentID  string
	DependsOnID  string
	Kind         RelationshipKind
	ActorID      string
	OccurredAt   time.Time
	Metadata     map[string]any
}
