package domain

// TicketStatus is the workflow state of a ticket.
type TicketStatus string

const (
	TicketStatusTodo         TicketStatus = "TODO"
	TicketStatusInProgress   TicketStatus = "IN_PROGRESS"
	TicketStatusInValidation TicketStatus = "IN_VALIDATION"
	TicketStatusDone         TicketStatus = "DONE"
)

// Ticket is the read model of a work item owned by the ticket service.
type Ticket struct {
	ID          string
	ProjectID   string
	CreatorID   string
	AssigneeIDs []string
	Status      TicketStatus
}

// IsDone reports whether the ticket reached its terminal state.
func (t Ticket) IsDone() bool {
	return t.Status == TicketStatusDone
}

// IsAssignee reports whether userID is assigned to the ticket.
func (t Ticket) IsAssignee(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
