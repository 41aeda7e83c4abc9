package domain

import "time"

// MembershipStatus tracks the lifecycle of a membership.
type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "ACTIVE"
	MembershipStatusInvited   MembershipStatus = "INVITED"
	MembershipStatusSuspended MembershipStatus = "SUSPENDED"
)

// Membership is a user's standing inside one project. Permissions is a snapshot copied
// from the role catalog when the role was assigned; it is not recomputed on read.
type Membership struct {
	ID          string
	ProjectID   string
	UserID      string
	Role        Role
	Permissions PermissionSet
	Status      MembershipStatus
	JoinedAt    time.Time
	UpdatedAt   time.Time
	InvitedBy   string
}

// IsActive reports whether the membership currently grants anything.
func (m Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}

// Grants reports whether an active membership carries the permission.
func (m Membership) Grants(p Permission) bool {
	return m.IsActive() && m.Permissions.Contains(p)
}
