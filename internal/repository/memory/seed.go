package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

type seedFile struct {
	Users    []string `json:"users"`
	Projects []struct {
		ID       string   `json:"id"`
		OwnerID  string   `json:"owner_id"`
		AdminIDs []string `json:"admin_ids"`
	} `json:"projects"`
	Tickets []struct {
		ID          string   `json:"id"`
		ProjectID   string   `json:"project_id"`
		CreatorID   string   `json:"creator_id"`
		AssigneeIDs []string `json:"assignee_ids"`
		Status      string   `json:"status"`
	} `json:"tickets"`
}

// LoadSeedFile fills the directory from a JSON document at path.
func (d *Directory) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return d.LoadSeed(f)
}

// LoadSeed fills the directory from a JSON document with users, projects and tickets.
// Tickets without a status start in TODO.
func (d *Directory) LoadSeed(r io.Reader) error {
	var seed seedFile
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	d.PutUser(seed.Users...)
	for _, p := range seed.Projects {
		if p.ID == "" {
			return fmt.Errorf("seed project without id")
		}
		d.PutProject(domain.ProjectAccess{ProjectID: p.ID, OwnerID: p.OwnerID, AdminIDs: p.AdminIDs})
	}
	for _, t := range seed.Tickets {
		if t.ID == "" || t.ProjectID == "" {
			return fmt.Errorf("seed ticket without id or project")
		}
		status := domain.TicketStatus(t.Status)
		if status == "" {
			status = domain.TicketStatusTodo
		}
		d.PutTicket(domain.Ticket{
			ID:          t.ID,
			ProjectID:   t.ProjectID,
			CreatorID:   t.CreatorID,
			AssigneeIDs: t.AssigneeIDs,
			Status:      status,
		})
	}
	return nil
}
