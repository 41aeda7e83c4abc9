package port

import (
	"context"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// TicketReader reads tickets owned by the ticket service.
type TicketReader interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
}
