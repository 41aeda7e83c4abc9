package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

// TicketRepository reads the ticket fields the gate and the blocking policy need.
type TicketRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(exec pgExecutor) *TicketRepository {
	return &TicketRepository{exec: exec, builder: newBuilder()}
}

// GetTicket loads a ticket by id.
func (r *TicketRepository) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	stmt, args, err := r.builder.Select("id", "project_id", "creator_id", "COALESCE(assignee_ids, '{}')", "status").
		From("tracker.tickets").
		Where(squirrel.Eq{"id": ticketID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select ticket sql: %w", err)
	}

	var (
		ticket domain.Ticket
		status string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&ticket.ID, &ticket.ProjectID, &ticket.CreatorID, &ticket.AssigneeIDs, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	ticket.Status = domain.TicketStatus(status)
	return &ticket, nil
}
