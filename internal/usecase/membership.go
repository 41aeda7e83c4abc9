package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/core/rbac"
	"github.com/arklim/ticket-tracker/internal/repository"
)

// MembershipService assigns, changes and removes project roles.
type MembershipService struct {
	memberships port.MembershipRepository
	projects    port.ProjectDirectory
	users       port.UserDirectory
	events      port.EventPublisher
	cache       port.MembershipCache
	catalog     rbac.Catalog
	logger      *zap.Logger
	now         func() time.Time
}

// NewMembershipService constructs a MembershipService backed by the default role catalog.
func NewMembershipService(memberships port.MembershipRepository, projects port.ProjectDirectory, users port.UserDirectory, events port.EventPublisher) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		projects:    projects,
		users:       users,
		events:      events,
		catalog:     rbac.Default(),
		logger:      zap.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithCatalog replaces the role catalog used to materialize permissions.
func (s *MembershipService) WithCatalog(catalog rbac.Catalog) *MembershipService {
	s.catalog = catalog
	return s
}

// WithCache evicts cached snapshots whenever a membership changes.
func (s *MembershipService) WithCache(cache port.MembershipCache) *MembershipService {
	s.cache = cache
	return s
}

// WithLogger sets the logger used for audit publication and cache eviction failures.
func (s *MembershipService) WithLogger(logger *zap.Logger) *MembershipService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the service clock for deterministic testing.
func (s *MembershipService) WithClock(clock func() time.Time) *MembershipService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// AssignRole creates an ACTIVE membership whose permissions are copied from the catalog.
// A second assignment for the same (project, user) fails with ErrMembershipExists; use
// UpdateRole to change an existing membership.
func (s *MembershipService) AssignRole(ctx context.Context, projectID, userID string, role domain.Role, invitedBy string) (*domain.Membership, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)
	invitedBy = strings.TrimSpace(invitedBy)

	if projectID == "" {
		return nil, requiredField("project id")
	}
	if userID == "" {
		return nil, requiredField("user id")
	}
	if !s.catalog.Knows(role) {
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, role)
	}

	if err := s.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	membership := domain.Membership{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		UserID:      userID,
		Role:        role,
		Permissions: s.catalog.PermissionsFor(role),
		Status:      domain.MembershipStatusActive,
		JoinedAt:    now,
		UpdatedAt:   now,
		InvitedBy:   invitedBy,
	}

	if err := s.memberships.Create(ctx, membership); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrMembershipExists
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}

	s.evict(ctx, projectID, userID)
	s.publish(ctx, domain.MembershipChangedEvent{
		Action:     domain.MembershipAssigned,
		ProjectID:  projectID,
		UserID:     userID,
		ActorID:    invitedBy,
		Role:       role,
		OccurredAt: now,
	})

	return &membership, nil
}

// UpdateRole replaces the membership's role and re-copies its permissions from the catalog.
// The previous permission set is discarded wholesale: any grant that did not come from the
// catalog is lost.
func (s *MembershipService) UpdateRole(ctx context.Context, projectID, userID string, newRole domain.Role, actorID string) (*domain.Membership, error) {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)

	if projectID == "" {
		return nil, requiredField("project id")
	}
	if userID == "" {
		return nil, requiredField("user id")
	}
	if !s.catalog.Knows(newRole) {
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, newRole)
	}

	membership, err := s.memberships.Get(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}

	prevRole := membership.Role
	membership.Role = newRole
	membership.Permissions = s.catalog.PermissionsFor(newRole)
	membership.UpdatedAt = s.now()

	if err := s.memberships.Update(ctx, *membership); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("update membership: %w", err)
	}

	s.evict(ctx, projectID, userID)
	s.publish(ctx, domain.MembershipChangedEvent{
		Action:     domain.MembershipRoleUpdated,
		ProjectID:  projectID,
		UserID:     userID,
		ActorID:    strings.TrimSpace(actorID),
		Role:       newRole,
		PrevRole:   prevRole,
		OccurredAt: membership.UpdatedAt,
	})

	return membership, nil
}

// RemoveUserFromProject deletes the membership. Owner and admin overrides are unaffected.
func (s *MembershipService) RemoveUserFromProject(ctx context.Context, projectID, userID, actorID string) error {
	projectID = strings.TrimSpace(projectID)
	userID = strings.TrimSpace(userID)

	if projectID == "" {
		return requiredField("project id")
	}
	if userID == "" {
		return requiredField("user id")
	}

	var prevRole domain.Role
	if existing, err := s.memberships.Get(ctx, projectID, userID); err == nil && existing != nil {
		prevRole = existing.Role
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load membership: %w", err)
	}

	if err := s.memberships.Delete(ctx, projectID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("delete membership: %w", err)
	}

	s.evict(ctx, projectID, userID)
	s.publish(ctx, domain.MembershipChangedEvent{
		Action:     domain.MembershipRemoved,
		ProjectID:  projectID,
		UserID:     userID,
		ActorID:    strings.TrimSpace(actorID),
		PrevRole:   prevRole,
		OccurredAt: s.now(),
	})

	return nil
}

// GetMembership returns the membership for (project, user).
func (s *MembershipService) GetMembership(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	membership, err := s.memberships.Get(ctx, strings.TrimSpace(projectID), strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return membership, nil
}

// ListMembers returns the project's ACTIVE memberships.
func (s *MembershipService) ListMembers(ctx context.Context, projectID string) ([]domain.Membership, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, requiredField("project id")
	}

	members, err := s.memberships.ListByProject(ctx, projectID, domain.MembershipStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *MembershipService) ensureProject(ctx context.Context, projectID string) error {
	if s.projects == nil {
		return nil
	}
	if _, err := s.projects.GetAccess(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("lookup project %s: %w", projectID, err)
	}
	return nil
}

func (s *MembershipService) ensureUser(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", userID, err)
	}
	if !exists {
		return fmt.Errorf("user %s: %w", userID, ErrUserNotFound)
	}
	return nil
}

func (s *MembershipService) evict(ctx context.Context, projectID, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteMembership(ctx, projectID, userID); err != nil {
		s.logger.Warn("membership cache eviction failed",
			zap.String("project_id", projectID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *MembershipService) publish(ctx context.Context, event domain.MembershipChangedEvent) {
	if s.events == nil {
		return
	}
	event.EventID = uuid.NewString()
	if err := s.events.PublishMembershipChanged(ctx, event); err != nil {
		s.logger.Warn("publish membership event failed",
			zap.String("action", string(event.Action)),
			zap.String("project_id", event.ProjectID),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}
