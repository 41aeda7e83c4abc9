package memory

import (
	"context"
	"sync"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

// Directory holds the projects, tickets and users that other services own. It backs the
// memory storage mode and tests.
type Directory struct {
	mu       sync.RWMutex
	projects map[string]domain.ProjectAccess
	tickets  map[string]domain.Ticket
	users    map[string]struct{}
}

// NewDirectory constructs an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		projects: make(map[string]domain.ProjectAccess),
		tickets:  make(map[string]domain.Ticket),
		users:    make(map[string]struct{}),
	}
}

// PutProject registers or replaces a project's owner and admin list.
func (d *Directory) PutProject(access domain.ProjectAccess) {
	d.mu.Lock()
	defer d.mu.Unlock()
	access.AdminIDs = append([]string(nil), access.AdminIDs...)
	d.projects[access.ProjectID] = access
}

// PutTicket registers or replaces a ticket.
func (d *Directory) PutTicket(ticket domain.Ticket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ticket.AssigneeIDs = append([]string(nil), ticket.AssigneeIDs...)
	d.tickets[ticket.ID] = ticket
}

// PutUser registers user ids.
func (d *Directory) PutUser(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.users[id] = struct{}{}
	}
}

func (d *Directory) GetAccess(ctx context.Context, projectID string) (*domain.ProjectAccess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	access, ok := d.projects[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	access.AdminIDs = append([]string(nil), access.AdminIDs...)
	return &access, nil
}

func (d *Directory) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	ticket, ok := d.tickets[ticketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	ticket.AssigneeIDs = append([]string(nil), ticket.AssigneeIDs...)
	return &ticket, nil
}

func (d *Directory) Exists(ctx context.Context, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[userID]
	return ok, nil
}
