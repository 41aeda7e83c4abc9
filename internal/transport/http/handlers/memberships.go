package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/usecase"
)

// MembershipHandler manages project members.
type MembershipHandler struct {
	memberships *usecase.MembershipService
	permissions PermissionChecker
}

func NewMembershipHandler(memberships *usecase.MembershipService, permissions PermissionChecker) *MembershipHandler {
	return &MembershipHandler{memberships: memberships, permissions: permissions}
}

// RegisterRoutes mounts the handler under /projects/:projectID.
func (h *MembershipHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/members", h.ListMembers)
	r.POST("/members", h.AssignMember)
	r.PUT("/members/:userID", h.UpdateMemberRole)
	r.DELETE("/members/:userID", h.RemoveMember)
}

var membershipErrorCases = withKindCases(
	ErrorCase{Err: usecase.ErrMembershipExists, Status: http.StatusConflict, Message: "user is already a member of this project"},
	ErrorCase{Err: usecase.ErrMembershipNotFound, Status: http.StatusNotFound, Message: "membership not found"},
	ErrorCase{Err: usecase.ErrProjectNotFound, Status: http.StatusNotFound, Message: "project not found"},
	ErrorCase{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	ErrorCase{Err: usecase.ErrUnknownRole, Status: http.StatusBadRequest, Message: "unknown role"},
)

// ListMembers requires project.view.
func (h *MembershipHandler) ListMembers(c *gin.Context) {
	projectID := c.Param("projectID")
	if _, ok := authorize(c, h.permissions, projectID, domain.PermissionProjectView); !ok {
		return
	}

	members, err := h.memberships.ListMembers(c.Request.Context(), projectID)
	if err != nil {
		RespondWithMappedError(c, err, membershipErrorCases, http.StatusInternalServerError, "failed to list members")
		return
	}

	payload := make([]MembershipPayload, 0, len(members))
	for _, m := range members {
		payload = append(payload, newMembershipPayload(m))
	}
	c.JSON(http.StatusOK, MemberListResponse{Members: payload, Total: len(payload)})
}

// AssignMember requires project.manage_members.
func (h *MembershipHandler) AssignMember(c *gin.Context) {
	projectID := c.Param("projectID")
	actorID, ok := authorize(c, h.permissions, projectID, domain.PermissionProjectManageMembers)
	if !ok {
		return
	}

	var req MemberAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid member payload"))
		return
	}

	membership, err := h.memberships.AssignRole(c.Request.Context(), projectID, req.UserID, roleFromRequest(req.Role), actorID)
	if err != nil {
		RespondWithMappedError(c, err, membershipErrorCases, http.StatusInternalServerError, "failed to add member")
		return
	}

	c.JSON(http.StatusCreated, newMembershipPayload(*membership))
}

// UpdateMemberRole requires project.manage_roles.
func (h *MembershipHandler) UpdateMemberRole(c *gin.Context) {
	projectID := c.Param("projectID")
	actorID, ok := authorize(c, h.permissions, projectID, domain.PermissionProjectManageRoles)
	if !ok {
		return
	}

	var req MemberRoleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	membership, err := h.memberships.UpdateRole(c.Request.Context(), projectID, c.Param("userID"), roleFromRequest(req.Role), actorID)
	if err != nil {
		RespondWithMappedError(c, err, membershipErrorCases, http.StatusInternalServerError, "failed to update member role")
		return
	}

	c.JSON(http.StatusOK, newMembershipPayload(*membership))
}

// RemoveMember requires project.manage_members.
func (h *MembershipHandler) RemoveMember(c *gin.Context) {
	projectID := c.Param("projectID")
	actorID, ok := authorize(c, h.permissions, projectID, domain.PermissionProjectManageMembers)
	if !ok {
		return
	}

	if err := h.memberships.RemoveUserFromProject(c.Request.Context(), projectID, c.Param("userID"), actorID); err != nil {
		RespondWithMappedError(c, err, membershipErrorCases, http.StatusInternalServerError, "failed to remove member")
		return
	}

	c.Status(http.StatusNoContent)
}

func roleFromRequest(raw string) domain.Role {
	return domain.Role(strings.ToUpper(strings.TrimSpace(raw)))
}
