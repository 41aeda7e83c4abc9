package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Memberships  *MembershipRepository
	Dependencies *DependencyRepository
	Projects     *ProjectRepository
	Tickets      *TicketRepository
	Users        *UserRepository
}

// NewRepositories wires all repositories backed by the provided executor.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Memberships:  NewMembershipRepository(exec),
		Dependencies: NewDependencyRepository(exec),
		Projects:     NewProjectRepository(exec),
		Tickets:      NewTicketRepository(exec),
		Users:        NewUserRepository(exec),
	}
}
