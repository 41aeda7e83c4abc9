package port

import (
	"context"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// DependencyGraph is the read view a DependencyGuard inspects.
type DependencyGraph interface {
	GetByPair(ctx context.Context, dependentID, dependsOnID string) (*domain.DependencyEdge, error)
	ListDependsOn(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error)
}

// DependencyGuard vets a new edge against the current graph. A non-nil error aborts the insert
// and is returned unchanged.
type DependencyGuard func(ctx context.Context, graph DependencyGraph) error

// DependencyRepository persists dependency edges. Implementations must enforce uniqueness
// of the ordered (dependent, depends-on) pair and report a duplicate as
// repository.ErrConflict. List and Count methods only consider active edges.
//
// CreateGuarded runs guard and the insert as one step: no other guarded creation in the
// same project may run between the two, so a pair and its reverse cannot both pass.
type DependencyRepository interface {
	Create(ctx context.Context, edge domain.DependencyEdge) error
	CreateGuarded(ctx context.Context, edge domain.DependencyEdge, guard DependencyGuard) error
	GetByID(ctx context.Context, id string) (*domain.DependencyEdge, error)
	GetByPair(ctx context.Context, dependentID, dependsOnID string) (*domain.DependencyEdge, error)
	Update(ctx context.Context, edge domain.DependencyEdge) error
	ListDependsOn(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error)
	ListDependents(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.DependencyEdge, error)
	CountDependsOn(ctx context.Context, ticketID string) (int, error)
	CountDependents(ctx context.Context, ticketID string) (int, error)
}
