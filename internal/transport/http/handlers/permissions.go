package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/transport/http/middleware"
)

type roleResolver interface {
	PermissionChecker
	EffectiveRole(ctx context.Context, projectID, userID string) (domain.Role, bool, error)
}

// PermissionHandler lets a caller probe their own standing in a project.
type PermissionHandler struct {
	resolver roleResolver
}

func NewPermissionHandler(resolver roleResolver) *PermissionHandler {
	return &PermissionHandler{resolver: resolver}
}

// RegisterRoutes mounts the handler under /projects/:projectID.
func (h *PermissionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/permissions/:permission", h.CheckPermission)
	r.GET("/role", h.EffectiveRole)
}

// CheckPermission answers GET /projects/:projectID/permissions/:permission for the caller.
// A denial is a normal 200 answer, not an error.
func (h *PermissionHandler) CheckPermission(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	projectID := c.Param("projectID")
	permission := domain.Permission(strings.ToLower(strings.TrimSpace(c.Param("permission"))))

	allowed, err := h.resolver.HasPermission(c.Request.Context(), projectID, userID, permission)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "authorization check failed")
		return
	}

	c.JSON(http.StatusOK, PermissionCheckResponse{
		ProjectID:  projectID,
		Permission: string(permission),
		Allowed:    allowed,
	})
}

// EffectiveRole answers GET /projects/:projectID/role for the caller.
func (h *PermissionHandler) EffectiveRole(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	projectID := c.Param("projectID")
	role, hasRole, err := h.resolver.EffectiveRole(c.Request.Context(), projectID, userID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "role lookup failed")
		return
	}

	c.JSON(http.StatusOK, EffectiveRoleResponse{
		ProjectID: projectID,
		Role:      string(role),
		HasRole:   hasRole,
	})
}
