package usecase

import (
	"fmt"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

var (
	// ErrProjectNotFound is returned when a referenced project does not exist.
	ErrProjectNotFound = fmt.Errorf("project %w", domain.ErrNotFound)
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", domain.ErrNotFound)
	// ErrTicketNotFound is returned when a ticket is unknown or belongs to another project.
	ErrTicketNotFound = fmt.Errorf("ticket %w", domain.ErrNotFound)
	// ErrMembershipNotFound is returned when no membership exists for the (project, user) pair.
	ErrMembershipNotFound = fmt.Errorf("membership %w", domain.ErrNotFound)
	// ErrDependencyNotFound is returned when no edge exists for the supplied id.
	ErrDependencyNotFound = fmt.Errorf("dependency %w", domain.ErrNotFound)

	// ErrMembershipExists indicates the user already holds a membership in the project.
	ErrMembershipExists = fmt.Errorf("%w: membership already exists", domain.ErrConflict)
	// ErrDependencyExists indicates an edge for the ordered pair already exists, active or not.
	ErrDependencyExists = fmt.Errorf("%w: dependency already exists between these tickets", domain.ErrConflict)

	// ErrDependencyCycle indicates the new edge would close a cycle.
	ErrDependencyCycle = fmt.Errorf("%w detected", domain.ErrCircularDependency)

	// ErrSelfDependency rejects an edge from a ticket to itself.
	ErrSelfDependency = fmt.Errorf("%w: ticket cannot depend on itself", domain.ErrInvalidArgument)
	// ErrUnknownRole rejects a role outside the catalog.
	ErrUnknownRole = fmt.Errorf("%w: unknown role", domain.ErrInvalidArgument)
	// ErrUnknownRelationship rejects a relationship kind outside the closed set.
	ErrUnknownRelationship = fmt.Errorf("%w: unknown relationship kind", domain.ErrInvalidArgument)
)

func requiredField(name string) error {
	return fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, name)
}
