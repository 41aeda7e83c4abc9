package port

import (
	"context"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// MembershipRepository persists memberships. Implementations must enforce uniqueness of
// (project, user) atomically and report a duplicate as repository.ErrConflict.
type MembershipRepository interface {
	Create(ctx context.Context, membership domain.Membership) error
	Get(ctx context.Context, projectID, userID string) (*domain.Membership, error)
	Update(ctx context.Context, membership domain.Membership) error
	Delete(ctx context.Context, projectID, userID string) error
	ListByProject(ctx context.Context, projectID string, status domain.MembershipStatus) ([]domain.Membership, error)
}

// MembershipCache keeps membership snapshots close to the resolver. SetMembership must not
// overwrite a key that DeleteMembership evicted more recently than one cache TTL ago.
type MembershipCache interface {
	GetMembership(ctx context.Context, projectID, userID string) (*domain.Membership, error)
	SetMembership(ctx context.Context, membership domain.Membership) error
	DeleteMembership(ctx context.Context, projectID, userID string) error
}
