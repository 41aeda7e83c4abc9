package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/transport/http/middleware"
)

// PermissionChecker is the slice of the permission resolver the handlers need.
type PermissionChecker interface {
	HasPermission(ctx context.Context, projectID, userID string, permission domain.Permission) (bool, error)
}

// authorize answers 401/403/500 itself and returns the caller id only when the caller holds
// permission in projectID.
func authorize(c *gin.Context, checker PermissionChecker, projectID string, permission domain.Permission) (string, bool) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return "", false
	}

	allowed, err := checker.HasPermission(c.Request.Context(), strings.TrimSpace(projectID), userID, permission)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authorization check failed"))
		return "", false
	}
	if !allowed {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "insufficient permissions"))
		return "", false
	}

	return userID, true
}
