package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/usecase"
)

// CompletionHandler answers whether the caller may move a ticket to DONE.
type CompletionHandler struct {
	gate        *usecase.CompletionGate
	permissions PermissionChecker
}

// NewCompletionHandler builds the completion endpoint; permissions gates it on ticket.view.
func NewCompletionHandler(gate *usecase.CompletionGate, permissions PermissionChecker) *CompletionHandler {
	return &CompletionHandler{gate: gate, permissions: permissions}
}

// RegisterRoutes mounts the handler under /projects/:projectID.
func (h *CompletionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tickets/:ticketID/completion", h.CanTransitionToDone)
}

// CanTransitionToDone requires ticket.view; the verdict itself covers the status permission.
func (h *CompletionHandler) CanTransitionToDone(c *gin.Context) {
	projectID := c.Param("projectID")
	userID, ok := authorize(c, h.permissions, projectID, domain.PermissionTicketView)
	if !ok {
		return
	}

	ticketID := c.Param("ticketID")
	allowed, reason, err := h.gate.CanTransitionToDone(c.Request.Context(), projectID, userID, ticketID)
	if err != nil {
		RespondWithMappedError(c, err, withKindCases(
			ErrorCase{Err: usecase.ErrTicketNotFound, Status: http.StatusNotFound, Message: "ticket not found"},
		), http.StatusInternalServerError, "failed to evaluate completion")
		return
	}

	c.JSON(http.StatusOK, CompletionResponse{
		ProjectID: projectID,
		TicketID:  ticketID,
		Allowed:   allowed,
		Reason:    reason,
	})
}
