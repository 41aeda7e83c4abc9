package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/repository"
)

// ReasonInsufficientPermissions is returned by CanTransitionToDone when the ticket is free
// to complete but the caller may not change its status.
const ReasonInsufficientPermissions = "insufficient permissions to change ticket status"

type statusChangeAuthorizer interface {
	CanChangeTicketStatus(ctx context.Context, projectID, userID string, assigneeIDs []string) (bool, error)
}

type blockingExplainer interface {
	BlockingReason(ctx context.Context, ticketID string) (string, error)
}

// CompletionGate decides whether a ticket may move to DONE. It is the only place where
// authorization and the dependency graph meet.
type CompletionGate struct {
	tickets    port.TicketReader
	authorizer statusChangeAuthorizer
	blocking   blockingExplainer
}

// NewCompletionGate constructs a CompletionGate.
func NewCompletionGate(tickets port.TicketReader, authorizer statusChangeAuthorizer, blocking blockingExplainer) *CompletionGate {
	return &CompletionGate{
		tickets:    tickets,
		authorizer: authorizer,
		blocking:   blocking,
	}
}

// CanTransitionToDone reports whether userID may move ticketID to DONE and, if not, why.
// A blocked ticket reports its blocking reason whatever the caller's permissions are.
func (g *CompletionGate) CanTransitionToDone(ctx context.Context, projectID, userID, ticketID string) (bool, string, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	ticketID = strings.TrimSpace(ticketID)

	switch {
	case projectID == "":
		return false, "", requiredField("project id")
	case ticketID == "":
		return false, "", requiredField("ticket id")
	}

	ticket, err := g.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, "", ErrTicketNotFound
		}
		return false, "", fmt.Errorf("load ticket: %w", err)
	}
	if ticket == nil || ticket.ProjectID != projectID {
		return false, "", ErrTicketNotFound
	}

	reason, err := g.blocking.BlockingReason(ctx, ticketID)
	if err != nil {
		return false, "", err
	}
	if reason != "" {
		return false, reason, nil
	}

	allowed, err := g.authorizer.CanChangeTicketStatus(ctx, projectID, userID, ticket.AssigneeIDs)
	if err != nil {
		return false, "", err
	}
	if !allowed {
		return false, ReasonInsufficientPermissions, nil
	}

	return true, "", nil
}
