package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/rbac"
	"github.com/arklim/ticket-tracker/internal/repository/memory"
)

type eventRecorder struct {
	mu          sync.Mutex
	memberships []domain.MembershipChangedEvent
	deps        []domain.DependencyChangedEvent
	err         error
}

func (r *eventRecorder) PublishMembershipChanged(_ context.Context, event domain.MembershipChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memberships = append(r.memberships, event)
	return r.err
}

func (r *eventRecorder) PublishDependencyChanged(_ context.Context, event domain.DependencyChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = append(r.deps, event)
	return r.err
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func newMembershipService(t *testing.T) (*MembershipService, *memory.MembershipStore, *eventRecorder) {
	t.Helper()
	dir, store := newFixture(t)
	events := &eventRecorder{}
	svc := NewMembershipService(store, dir, dir, events).
		WithLogger(zaptest.NewLogger(t)).
		WithClock(fixedClock)
	return svc, store, events
}

func TestAssignRoleMaterializesCatalog(t *testing.T) {
	svc, _, events := newMembershipService(t)

	membership, err := svc.AssignRole(context.Background(), "p1", "member", domain.RoleMember, "owner")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !membership.Permissions.Equal(rbac.PermissionsForRole(domain.RoleMember)) {
		t.Fatalf("expected MEMBER permissions, got %v", membership.Permissions.Strings())
	}
	if membership.Status != domain.MembershipStatusActive || membership.InvitedBy != "owner" {
		t.Fatalf("unexpected membership %+v", membership)
	}
	if !membership.JoinedAt.Equal(fixedClock()) {
		t.Fatalf("expected join time from clock, got %v", membership.JoinedAt)
	}
	if len(events.memberships) != 1 || events.memberships[0].Action != domain.MembershipAssigned {
		t.Fatalf("expected assigned event, got %+v", events.memberships)
	}
}

func TestAssignRoleIsStableAcrossCatalogEdits(t *testing.T) {
	dir, store := newFixture(t)
	original := NewMembershipService(store, dir, dir, nil)
	if _, err := original.AssignRole(context.Background(), "p1", "member", domain.RoleMember, "owner"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	edited := rbac.NewCatalog(map[domain.Role][]domain.Permission{
		domain.RoleMember: {domain.PermissionProjectView, domain.PermissionTicketDelete},
	})
	later := NewMembershipService(store, dir, dir, nil).WithCatalog(edited)
	resolver := NewPermissionResolver(dir, store)
	ctx := context.Background()

	if ok, _ := resolver.HasPermission(ctx, "p1", "member", domain.PermissionTicketDelete); ok {
		t.Fatalf("catalog edits must not leak into existing memberships")
	}
	if ok, _ := resolver.HasPermission(ctx, "p1", "member", domain.PermissionCommentCreate); !ok {
		t.Fatalf("existing grant must survive catalog edit")
	}

	updated, err := later.UpdateRole(ctx, "p1", "member", domain.RoleMember, "owner")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Permissions.Equal(domain.NewPermissionSet(domain.PermissionProjectView, domain.PermissionTicketDelete)) {
		t.Fatalf("update must re-copy from the current catalog, got %v", updated.Permissions.Strings())
	}
	if ok, _ := resolver.HasPermission(ctx, "p1", "member", domain.PermissionTicketDelete); !ok {
		t.Fatalf("expected re-materialized grant after update")
	}
}

func TestAssignRoleRejectsDuplicate(t *testing.T) {
	svc, _, _ := newMembershipService(t)
	ctx := context.Background()

	if _, err := svc.AssignRole(ctx, "p1", "member", domain.RoleMember, "owner"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := svc.AssignRole(ctx, "p1", "member", domain.RoleManager, "owner")
	if !errors.Is(err, ErrMembershipExists) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAssignRoleConcurrentDuplicates(t *testing.T) {
	svc, store, _ := newMembershipService(t)
	ctx := context.Background()

	const callers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AssignRole(ctx, "p1", "member", domain.RoleMember, "owner")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != callers-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", callers-1, successes, conflicts)
	}
	members, _ := store.ListByProject(ctx, "p1", "")
	if len(members) != 1 {
		t.Fatalf("expected exactly one membership, got %d", len(members))
	}
}

func TestAssignRoleValidation(t *testing.T) {
	svc, _, _ := newMembershipService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		project string
		user    string
		role    domain.Role
		want    error
	}{
		{"unknown role", "p1", "member", "OWNER", domain.ErrInvalidArgument},
		{"missing project id", "", "member", domain.RoleMember, domain.ErrInvalidArgument},
		{"missing user id", "p1", " ", domain.RoleMember, domain.ErrInvalidArgument},
		{"unknown project", "ghost", "member", domain.RoleMember, ErrProjectNotFound},
		{"unknown user", "p1", "ghost", domain.RoleMember, ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AssignRole(ctx, tc.project, tc.user, tc.role, "owner")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdateRoleMissingMembership(t *testing.T) {
	svc, _, _ := newMembershipService(t)

	_, err := svc.UpdateRole(context.Background(), "p1", "member", domain.RoleManager, "owner")
	if !errors.Is(err, ErrMembershipNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRoleDropsCustomGrants(t *testing.T) {
	svc, store, events := newMembershipService(t)
	ctx := context.Background()

	membership, err := svc.AssignRole(ctx, "p1", "member", domain.RoleMember, "owner")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	membership.Permissions[domain.PermissionAuditExport] = struct{}{}
	if err := store.Update(ctx, *membership); err != nil {
		t.Fatalf("seed custom grant: %v", err)
	}

	updated, err := svc.UpdateRole(ctx, "p1", "member", domain.RoleObserver, "owner")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Permissions.Contains(domain.PermissionAuditExport) {
		t.Fatalf("custom grant should be dropped on role change")
	}
	if !updated.Permissions.Equal(rbac.PermissionsForRole(domain.RoleObserver)) {
		t.Fatalf("expected OBSERVER permissions, got %v", updated.Permissions.Strings())
	}

	last := events.memberships[len(events.memberships)-1]
	if last.Action != domain.MembershipRoleUpdated || last.PrevRole != domain.RoleMember || last.Role != domain.RoleObserver {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestRemoveUserFromProject(t *testing.T) {
	svc, _, events := newMembershipService(t)
	cache := &membershipCacheStub{}
	svc.WithCache(cache)
	ctx := context.Background()

	if _, err := svc.AssignRole(ctx, "p1", "member", domain.RoleMember, "owner"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.RemoveUserFromProject(ctx, "p1", "member", "owner"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.GetMembership(ctx, "p1", "member"); !errors.Is(err, ErrMembershipNotFound) {
		t.Fatalf("expected membership to be gone, got %v", err)
	}
	if err := svc.RemoveUserFromProject(ctx, "p1", "member", "owner"); !errors.Is(err, ErrMembershipNotFound) {
		t.Fatalf("expected not found on second removal, got %v", err)
	}
	if cache.deletes != 2 {
		t.Fatalf("expected cache eviction on assign and remove, got %d", cache.deletes)
	}

	last := events.memberships[len(events.memberships)-1]
	if last.Action != domain.MembershipRemoved || last.PrevRole != domain.RoleMember {
		t.Fatalf("unexpected event %+v", last)
	}
}

func TestRemoveUserKeepsOwnerOverride(t *testing.T) {
	dir, store := newFixture(t)
	svc := NewMembershipService(store, dir, dir, nil)
	resolver := NewPermissionResolver(dir, store)
	ctx := context.Background()

	if _, err := svc.AssignRole(ctx, "p1", "owner", domain.RoleObserver, "owner"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.RemoveUserFromProject(ctx, "p1", "owner", "owner"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := resolver.CanDeleteProject(ctx, "p1", "owner"); !ok {
		t.Fatalf("owner override must survive membership removal")
	}
}

func TestMembershipPublishFailureDoesNotFailOperation(t *testing.T) {
	svc, _, events := newMembershipService(t)
	events.err = errors.New("broker unavailable")

	if _, err := svc.AssignRole(context.Background(), "p1", "member", domain.RoleMember, "owner"); err != nil {
		t.Fatalf("publication failure must not fail the assignment: %v", err)
	}
}

func TestListMembersReturnsActiveOnly(t *testing.T) {
	svc, store, _ := newMembershipService(t)
	ctx := context.Background()

	if _, err := svc.AssignRole(ctx, "p1", "member", domain.RoleMember, "owner"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	seedMembership(t, store, "observer", domain.RoleObserver, domain.MembershipStatusSuspended)

	members, err := svc.ListMembers(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 1 || members[0].UserID != "member" {
		t.Fatalf("unexpected members %+v", members)
	}
}
