package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/repository"
)

// PermissionResolver answers whether a user may perform a permission inside a project.
//
// Project owners and listed admins hold every permission regardless of membership state.
// Everyone else is judged by the materialized permission set of an ACTIVE membership.
// Missing projects, memberships or ids resolve to false; errors are reserved for storage
// failures.
type PermissionResolver struct {
	projects    port.ProjectDirectory
	memberships port.MembershipRepository
	cache       port.MembershipCache
	metrics     port.AuthzMetrics
	logger      *zap.Logger
}

// NewPermissionResolver constructs a PermissionResolver.
func NewPermissionResolver(projects port.ProjectDirectory, memberships port.MembershipRepository) *PermissionResolver {
	return &PermissionResolver{
		projects:    projects,
		memberships: memberships,
		metrics:     port.NopAuthzMetrics{},
		logger:      zap.NewNop(),
	}
}

// WithCache places a membership cache in front of the repository.
func (r *PermissionResolver) WithCache(cache port.MembershipCache) *PermissionResolver {
	r.cache = cache
	return r
}

// WithMetrics records every decision.
func (r *PermissionResolver) WithMetrics(metrics port.AuthzMetrics) *PermissionResolver {
	if metrics != nil {
		r.metrics = metrics
	}
	return r
}

// WithLogger sets the logger used for cache degradation warnings.
func (r *PermissionResolver) WithLogger(logger *zap.Logger) *PermissionResolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// HasPermission reports whether userID holds permission in projectID.
func (r *PermissionResolver) HasPermission(ctx context.Context, projectID, userID string, permission domain.Permission) (bool, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	if projectID == "" || userID == "" || permission == "" {
		r.metrics.ObserveDecision(permission, false, port.DecisionSourceNone)
		return false, nil
	}

	override, err := r.hasOverride(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	if override {
		r.metrics.ObserveDecision(permission, true, port.DecisionSourceOverride)
		return true, nil
	}

	membership, err := r.membership(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	if membership == nil {
		r.metrics.ObserveDecision(permission, false, port.DecisionSourceNone)
		return false, nil
	}

	allowed := membership.Grants(permission)
	r.metrics.ObserveDecision(permission, allowed, port.DecisionSourceMembership)
	return allowed, nil
}

// EffectiveRole returns the role userID acts with in projectID. Owners and listed admins
// act as ADMIN. The boolean is false when the user has no standing in the project.
func (r *PermissionResolver) EffectiveRole(ctx context.Context, projectID, userID string) (domain.Role, bool, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	if projectID == "" || userID == "" {
		return "", false, nil
	}

	override, err := r.hasOverride(ctx, projectID, userID)
	if err != nil {
		return "", false, err
	}
	if override {
		return domain.RoleAdmin, true, nil
	}

	membership, err := r.membership(ctx, projectID, userID)
	if err != nil {
		return "", false, err
	}
	if membership == nil || !membership.IsActive() {
		return "", false, nil
	}
	return membership.Role, true, nil
}

// CanViewProject reports whether userID holds project.view in projectID.
func (r *PermissionResolver) CanViewProject(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionProjectView)
}

// CanEditProject reports whether userID holds project.edit in projectID.
func (r *PermissionResolver) CanEditProject(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionProjectEdit)
}

// CanDeleteProject reports whether userID holds project.delete in projectID.
func (r *PermissionResolver) CanDeleteProject(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionProjectDelete)
}

// CanManageMembers reports whether userID holds project.manage_members in projectID.
func (r *PermissionResolver) CanManageMembers(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionProjectManageMembers)
}

// CanManageRoles reports whether userID holds project.manage_roles in projectID.
func (r *PermissionResolver) CanManageRoles(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionProjectManageRoles)
}

// CanCreateTicket reports whether userID holds ticket.create in projectID.
func (r *PermissionResolver) CanCreateTicket(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionTicketCreate)
}

// CanEditTicket allows blanket ticket editors, or assignees holding ticket.edit_assigned.
func (r *PermissionResolver) CanEditTicket(ctx context.Context, projectID, userID string, assigneeIDs []string) (bool, error) {
	return r.blanketOrScoped(ctx, projectID, userID,
		domain.PermissionTicketEdit, domain.PermissionTicketEditAssigned, contains(assigneeIDs, userID))
}

// CanDeleteTicket reports whether userID holds ticket.delete in projectID.
func (r *PermissionResolver) CanDeleteTicket(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionTicketDelete)
}

// CanAssignTicket reports whether userID holds ticket.assign in projectID.
func (r *PermissionResolver) CanAssignTicket(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionTicketAssign)
}

// CanChangeTicketStatus allows blanket status changers, or assignees holding
// ticket.change_status_assigned.
func (r *PermissionResolver) CanChangeTicketStatus(ctx context.Context, projectID, userID string, assigneeIDs []string) (bool, error) {
	return r.blanketOrScoped(ctx, projectID, userID,
		domain.PermissionTicketChangeStatus, domain.PermissionTicketChangeStatusAssigned, contains(assigneeIDs, userID))
}

// CanCreateComment reports whether userID holds comment.create in projectID.
func (r *PermissionResolver) CanCreateComment(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionCommentCreate)
}

// CanEditComment allows blanket comment editors, or the author holding comment.edit_own.
func (r *PermissionResolver) CanEditComment(ctx context.Context, projectID, userID, authorID string) (bool, error) {
	return r.blanketOrScoped(ctx, projectID, userID,
		domain.PermissionCommentEdit, domain.PermissionCommentEditOwn, authorID != "" && authorID == userID)
}

// CanDeleteComment allows blanket comment deleters, or the author holding comment.delete_own.
func (r *PermissionResolver) CanDeleteComment(ctx context.Context, projectID, userID, authorID string) (bool, error) {
	return r.blanketOrScoped(ctx, projectID, userID,
		domain.PermissionCommentDelete, domain.PermissionCommentDeleteOwn, authorID != "" && authorID == userID)
}

// CanViewAudit reports whether userID holds audit.view in projectID.
func (r *PermissionResolver) CanViewAudit(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionAuditView)
}

// CanDeleteAudit reports whether userID holds audit.delete in projectID.
func (r *PermissionResolver) CanDeleteAudit(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionAuditDelete)
}

// CanUploadAttachment reports whether userID holds attachment.upload in projectID.
func (r *PermissionResolver) CanUploadAttachment(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionAttachmentUpload)
}

// CanCompleteChecklist reports whether userID holds checklist.complete in projectID.
func (r *PermissionResolver) CanCompleteChecklist(ctx context.Context, projectID, userID string) (bool, error) {
	return r.HasPermission(ctx, projectID, userID, domain.PermissionChecklistComplete)
}

// blanketOrScoped evaluates: blanket OR (scoped AND owns).
func (r *PermissionResolver) blanketOrScoped(ctx context.Context, projectID, userID string, blanket, scoped domain.Permission, owns bool) (bool, error) {
	allowed, err := r.HasPermission(ctx, projectID, userID, blanket)
	if err != nil || allowed {
		return allowed, err
	}
	if !owns {
		return false, nil
	}
	return r.HasPermission(ctx, projectID, userID, scoped)
}

func (r *PermissionResolver) hasOverride(ctx context.Context, projectID, userID string) (bool, error) {
	if r.projects == nil {
		return false, nil
	}

	access, err := r.projects.GetAccess(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load project access: %w", err)
	}
	if access == nil {
		return false, nil
	}

	return access.HasOverride(userID), nil
}

func (r *PermissionResolver) membership(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	if r.cache != nil {
		cached, err := r.cache.GetMembership(ctx, projectID, userID)
		switch {
		case err == nil && cached != nil:
			r.metrics.ObserveCacheLookup(true)
			return cached, nil
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			r.logger.Warn("membership cache lookup failed",
				zap.String("project_id", projectID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		r.metrics.ObserveCacheLookup(false)
	}

	if r.memberships == nil {
		return nil, nil
	}

	membership, err := r.memberships.Get(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}

	if r.cache != nil && membership != nil {
		if err := r.cache.SetMembership(ctx, *membership); err != nil {
			r.logger.Warn("membership cache write failed",
				zap.String("project_id", projectID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	return membership, nil
}

func contains(values []string, target string) bool {
	if target == "" {
		return false
	}
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
