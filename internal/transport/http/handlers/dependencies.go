package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/repository"
	"github.com/arklim/ticket-tracker/internal/usecase"
)

// DependencyHandler exposes the dependency graph. Every route authorizes against the project
// the edge or ticket belongs to: reads need ticket.view, writes need ticket.edit.
type DependencyHandler struct {
	dependencies *usecase.DependencyService
	tickets      port.TicketReader
	permissions  PermissionChecker
}

// NewDependencyHandler builds the dependency endpoints. tickets resolves each ticket's project.
func NewDependencyHandler(dependencies *usecase.DependencyService, tickets port.TicketReader, permissions PermissionChecker) *DependencyHandler {
	return &DependencyHandler{dependencies: dependencies, tickets: tickets, permissions: permissions}
}

// RegisterRoutes mounts the handler on the /api/v1 group.
func (h *DependencyHandler) RegisterRoutes(api *gin.RouterGroup) {
	deps := api.Group("/dependencies")
	deps.POST("", h.CreateDependency)
	deps.POST("/check-circular", h.CheckCircular)
	deps.GET("/:dependencyID", h.GetDependency)
	deps.PUT("/:dependencyID", h.UpdateDependency)
	deps.DELETE("/:dependencyID", h.RemoveDependency)

	tickets := api.Group("/tickets/:ticketID")
	tickets.GET("/depends-on", h.ListDependsOn)
	tickets.GET("/dependents", h.ListDependents)
	tickets.GET("/stats", h.Stats)
	tickets.GET("/can-complete", h.CanComplete)

	api.GET("/projects/:projectID/dependencies", h.ListProjectDependencies)
}

var dependencyErrorCases = withKindCases(
	ErrorCase{Err: usecase.ErrDependencyExists, Status: http.StatusConflict, Message: "dependency already exists between these tickets"},
	ErrorCase{Err: usecase.ErrDependencyCycle, Status: http.StatusConflict, Message: "circular dependency detected"},
	ErrorCase{Err: usecase.ErrSelfDependency, Status: http.StatusBadRequest, Message: "ticket cannot depend on itself"},
	ErrorCase{Err: usecase.ErrUnknownRelationship, Status: http.StatusBadRequest, Message: "unknown relationship type"},
	ErrorCase{Err: usecase.ErrDependencyNotFound, Status: http.StatusNotFound, Message: "dependency not found"},
	ErrorCase{Err: usecase.ErrTicketNotFound, Status: http.StatusNotFound, Message: "ticket not found"},
	ErrorCase{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
)

// CreateDependency requires ticket.edit in the edge's project. Both tickets must belong to it.
func (h *DependencyHandler) CreateDependency(c *gin.Context) {
	var req DependencyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid dependency payload"))
		return
	}

	actorID, ok := authorize(c, h.permissions, req.ProjectID, domain.PermissionTicketEdit)
	if !ok {
		return
	}

	edge, err := h.dependencies.CreateDependency(c.Request.Context(), usecase.CreateDependencyInput{
		DependentID: req.DependentTicketID,
		DependsOnID: req.DependsOnTicketID,
		ProjectID:   req.ProjectID,
		Kind:        req.RelationshipType,
		Description: req.Description,
		CreatedBy:   actorID,
	})
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to create dependency")
		return
	}

	c.JSON(http.StatusCreated, newDependencyPayload(*edge))
}

// GetDependency returns an edge, active or not.
func (h *DependencyHandler) GetDependency(c *gin.Context) {
	edge, _, ok := h.loadEdge(c, domain.PermissionTicketView)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newDependencyPayload(*edge))
}

// UpdateDependency changes the relationship type and/or description.
func (h *DependencyHandler) UpdateDependency(c *gin.Context) {
	edge, actorID, ok := h.loadEdge(c, domain.PermissionTicketEdit)
	if !ok {
		return
	}

	var req DependencyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid dependency payload"))
		return
	}

	updated, err := h.dependencies.UpdateDependency(c.Request.Context(), usecase.UpdateDependencyInput{
		ID:          edge.ID,
		Kind:        req.RelationshipType,
		Description: req.Description,
		ActorID:     actorID,
	})
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to update dependency")
		return
	}

	c.JSON(http.StatusOK, newDependencyPayload(*updated))
}

// RemoveDependency soft-deletes the edge.
func (h *DependencyHandler) RemoveDependency(c *gin.Context) {
	edge, actorID, ok := h.loadEdge(c, domain.PermissionTicketEdit)
	if !ok {
		return
	}

	if err := h.dependencies.RemoveDependency(c.Request.Context(), edge.ID, actorID); err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to remove dependency")
		return
	}

	c.Status(http.StatusNoContent)
}

// CheckCircular reports whether the prospective edge would be rejected as a cycle.
func (h *DependencyHandler) CheckCircular(c *gin.Context) {
	var req CircularCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid circular check payload"))
		return
	}

	if _, ok := h.authorizeTicket(c, req.DependentTicketID, domain.PermissionTicketView); !ok {
		return
	}

	circular, err := h.dependencies.HasCircularDependency(c.Request.Context(), req.DependentTicketID, req.DependsOnTicketID)
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to check dependencies")
		return
	}

	c.JSON(http.StatusOK, CircularCheckResponse{HasCircularDependency: circular})
}

// ListDependsOn lists the active edges leaving the ticket.
func (h *DependencyHandler) ListDependsOn(c *gin.Context) {
	ticket, ok := h.authorizeTicket(c, c.Param("ticketID"), domain.PermissionTicketView)
	if !ok {
		return
	}

	edges, err := h.dependencies.ListDependsOn(c.Request.Context(), ticket.ID)
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to list dependencies")
		return
	}
	c.JSON(http.StatusOK, newDependencyList(edges))
}

// ListDependents lists the active edges pointing at the ticket.
func (h *DependencyHandler) ListDependents(c *gin.Context) {
	ticket, ok := h.authorizeTicket(c, c.Param("ticketID"), domain.PermissionTicketView)
	if !ok {
		return
	}

	edges, err := h.dependencies.ListDependents(c.Request.Context(), ticket.ID)
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to list dependents")
		return
	}
	c.JSON(http.StatusOK, newDependencyList(edges))
}

// Stats reports edge counts and whether the ticket is blocked.
func (h *DependencyHandler) Stats(c *gin.Context) {
	ticket, ok := h.authorizeTicket(c, c.Param("ticketID"), domain.PermissionTicketView)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	dependsOn, err := h.dependencies.CountDependencies(ctx, ticket.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to count dependencies")
		return
	}
	dependents, err := h.dependencies.CountDependents(ctx, ticket.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to count dependents")
		return
	}
	blocked, err := h.dependencies.IsBlocked(ctx, ticket.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to evaluate blocking")
		return
	}

	c.JSON(http.StatusOK, DependencyStatsResponse{
		TicketID:        ticket.ID,
		DependsOnCount:  dependsOn,
		DependentsCount: dependents,
		Blocked:         blocked,
	})
}

// CanComplete reports whether open dependencies block the ticket, without looking at the
// caller's own permissions.
func (h *DependencyHandler) CanComplete(c *gin.Context) {
	ticket, ok := h.authorizeTicket(c, c.Param("ticketID"), domain.PermissionTicketView)
	if !ok {
		return
	}

	reason, err := h.dependencies.BlockingReason(c.Request.Context(), ticket.ID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to evaluate blocking")
		return
	}

	c.JSON(http.StatusOK, CanCompleteResponse{
		TicketID:    ticket.ID,
		CanComplete: reason == "",
		Reason:      reason,
	})
}

// ListProjectDependencies lists the project's active edges.
func (h *DependencyHandler) ListProjectDependencies(c *gin.Context) {
	projectID := c.Param("projectID")
	if _, ok := authorize(c, h.permissions, projectID, domain.PermissionTicketView); !ok {
		return
	}

	edges, err := h.dependencies.ListProjectDependencies(c.Request.Context(), projectID)
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to list dependencies")
		return
	}
	c.JSON(http.StatusOK, newDependencyList(edges))
}

func (h *DependencyHandler) loadEdge(c *gin.Context, permission domain.Permission) (*domain.DependencyEdge, string, bool) {
	edge, err := h.dependencies.GetDependency(c.Request.Context(), c.Param("dependencyID"))
	if err != nil {
		RespondWithMappedError(c, err, dependencyErrorCases, http.StatusInternalServerError, "failed to load dependency")
		return nil, "", false
	}

	actorID, ok := authorize(c, h.permissions, edge.ProjectID, permission)
	if !ok {
		return nil, "", false
	}
	return edge, actorID, true
}

func (h *DependencyHandler) authorizeTicket(c *gin.Context, ticketID string, permission domain.Permission) (*domain.Ticket, bool) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "ticket id is required"))
		return nil, false
	}

	ticket, err := h.tickets.GetTicket(c.Request.Context(), ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "ticket not found"))
			return nil, false
		}
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to load ticket")
		return nil, false
	}

	if _, ok := authorize(c, h.permissions, ticket.ProjectID, permission); !ok {
		return nil, false
	}
	return ticket, true
}
