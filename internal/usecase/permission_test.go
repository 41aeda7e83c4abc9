package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/core/rbac"
	"github.com/arklim/ticket-tracker/internal/repository"
	"github.com/arklim/ticket-tracker/internal/repository/memory"
)

type decision struct {
	permission domain.Permission
	allowed    bool
	source     port.DecisionSource
}

type metricsRecorder struct {
	decisions []decision
	cycles    []string
	hits      int
	misses    int
}

func (m *metricsRecorder) ObserveDecision(p domain.Permission, allowed bool, source port.DecisionSource) {
	m.decisions = append(m.decisions, decision{p, allowed, source})
}

func (m *metricsRecorder) ObserveCycleRejected(policy string) {
	m.cycles = append(m.cycles, policy)
}

func (m *metricsRecorder) ObserveCacheLookup(hit bool) {
	if hit {
		m.hits++
		return
	}
	m.misses++
}

type membershipCacheStub struct {
	entries map[string]domain.Membership
	getErr  error
	setErr  error
	sets    int
	deletes int
}

func (c *membershipCacheStub) key(projectID, userID string) string {
	return projectID + "/" + userID
}

func (c *membershipCacheStub) GetMembership(_ context.Context, projectID, userID string) (*domain.Membership, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	m, ok := c.entries[c.key(projectID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (c *membershipCacheStub) SetMembership(_ context.Context, m domain.Membership) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	if c.entries == nil {
		c.entries = make(map[string]domain.Membership)
	}
	c.entries[c.key(m.ProjectID, m.UserID)] = m
	return nil
}

func (c *membershipCacheStub) DeleteMembership(_ context.Context, projectID, userID string) error {
	c.deletes++
	delete(c.entries, c.key(projectID, userID))
	return nil
}

type failingProjects struct{ err error }

func (f failingProjects) GetAccess(context.Context, string) (*domain.ProjectAccess, error) {
	return nil, f.err
}

func newFixture(t *testing.T) (*memory.Directory, *memory.MembershipStore) {
	t.Helper()
	dir := memory.NewDirectory()
	dir.PutProject(domain.ProjectAccess{ProjectID: "p1", OwnerID: "owner", AdminIDs: []string{"admin"}})
	dir.PutUser("owner", "admin", "member", "observer", "manager")
	return dir, memory.NewMembershipStore()
}

func seedMembership(t *testing.T, store *memory.MembershipStore, userID string, role domain.Role, status domain.MembershipStatus) {
	t.Helper()
	err := store.Create(context.Background(), domain.Membership{
		ID:          userID + "-m",
		ProjectID:   "p1",
		UserID:      userID,
		Role:        role,
		Permissions: rbac.PermissionsForRole(role),
		Status:      status,
	})
	if err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

func TestHasPermissionOverridePrimacy(t *testing.T) {
	dir, store := newFixture(t)
	resolver := NewPermissionResolver(dir, store)
	ctx := context.Background()

	all := []domain.Permission{"made.up"}
	for p := range rbac.PermissionsForRole(domain.RoleAdmin) {
		all = append(all, p)
	}

	for _, user := range []string{"owner", "admin"} {
		for _, p := range all {
			ok, err := resolver.HasPermission(ctx, "p1", user, p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ok {
				t.Fatalf("expected %s to hold %s without membership", user, p)
			}
		}
	}
}

func TestHasPermissionOverrideIgnoresSuspendedMembership(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "owner", domain.RoleObserver, domain.MembershipStatusSuspended)
	resolver := NewPermissionResolver(dir, store)

	ok, err := resolver.HasPermission(context.Background(), "p1", "owner", domain.PermissionProjectDelete)
	if err != nil || !ok {
		t.Fatalf("expected owner override to win, got %v, %v", ok, err)
	}
}

func TestHasPermissionFailsClosed(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "suspended", domain.RoleAdmin, domain.MembershipStatusSuspended)
	resolver := NewPermissionResolver(dir, store)
	ctx := context.Background()

	cases := []struct {
		name      string
		projectID string
		userID    string
		perm      domain.Permission
	}{
		{"no membership", "p1", "stranger", domain.PermissionProjectView},
		{"missing project", "ghost", "stranger", domain.PermissionProjectView},
		{"inactive membership", "p1", "suspended", domain.PermissionProjectView},
		{"empty user", "p1", "", domain.PermissionProjectView},
		{"empty project", "", "owner", domain.PermissionProjectView},
		{"empty permission", "p1", "owner", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := resolver.HasPermission(ctx, tc.projectID, tc.userID, tc.perm)
			if err != nil {
				t.Fatalf("absence must not be an error, got %v", err)
			}
			if ok {
				t.Fatalf("expected denial")
			}
		})
	}
}

func TestHasPermissionUsesMaterializedSet(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "member", domain.RoleMember, domain.MembershipStatusActive)
	metrics := &metricsRecorder{}
	resolver := NewPermissionResolver(dir, store).WithMetrics(metrics)
	ctx := context.Background()

	if ok, _ := resolver.HasPermission(ctx, "p1", "member", domain.PermissionCommentCreate); !ok {
		t.Fatalf("member should create comments")
	}
	if ok, _ := resolver.HasPermission(ctx, "p1", "member", domain.PermissionTicketDelete); ok {
		t.Fatalf("member should not delete tickets")
	}

	if len(metrics.decisions) != 2 {
		t.Fatalf("expected 2 decisions recorded, got %d", len(metrics.decisions))
	}
	if metrics.decisions[0].source != port.DecisionSourceMembership || !metrics.decisions[0].allowed {
		t.Fatalf("unexpected first decision %+v", metrics.decisions[0])
	}
	if metrics.decisions[1].allowed {
		t.Fatalf("unexpected second decision %+v", metrics.decisions[1])
	}
}

func TestHasPermissionPropagatesInfrastructureErrors(t *testing.T) {
	boom := errors.New("connection refused")
	resolver := NewPermissionResolver(failingProjects{err: boom}, memory.NewMembershipStore())

	_, err := resolver.HasPermission(context.Background(), "p1", "u1", domain.PermissionProjectView)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestHasPermissionReadsThroughCache(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "member", domain.RoleMember, domain.MembershipStatusActive)
	cache := &membershipCacheStub{}
	metrics := &metricsRecorder{}
	resolver := NewPermissionResolver(dir, store).WithCache(cache).WithMetrics(metrics)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, err := resolver.HasPermission(ctx, "p1", "member", domain.PermissionTicketView); err != nil || !ok {
			t.Fatalf("expected allow, got %v, %v", ok, err)
		}
	}
	if cache.sets != 1 {
		t.Fatalf("expected single cache fill, got %d", cache.sets)
	}
	if metrics.misses != 1 || metrics.hits != 2 {
		t.Fatalf("expected 1 miss and 2 hits, got %d and %d", metrics.misses, metrics.hits)
	}
}

func TestHasPermissionDegradesWhenCacheFails(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "member", domain.RoleMember, domain.MembershipStatusActive)
	cache := &membershipCacheStub{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	resolver := NewPermissionResolver(dir, store).WithCache(cache)

	ok, err := resolver.HasPermission(context.Background(), "p1", "member", domain.PermissionTicketView)
	if err != nil || !ok {
		t.Fatalf("expected store fallback, got %v, %v", ok, err)
	}
}

func TestScopedPredicates(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "member", domain.RoleMember, domain.MembershipStatusActive)
	seedMembership(t, store, "manager", domain.RoleManager, domain.MembershipStatusActive)
	seedMembership(t, store, "observer", domain.RoleObserver, domain.MembershipStatusActive)
	resolver := NewPermissionResolver(dir, store)
	ctx := context.Background()

	cases := []struct {
		name  string
		check func() (bool, error)
		want  bool
	}{
		{"member edits assigned ticket", func() (bool, error) {
			return resolver.CanEditTicket(ctx, "p1", "member", []string{"member"})
		}, true},
		{"member cannot edit unassigned ticket", func() (bool, error) {
			return resolver.CanEditTicket(ctx, "p1", "member", []string{"someone"})
		}, false},
		{"manager edits any ticket", func() (bool, error) {
			return resolver.CanEditTicket(ctx, "p1", "manager", nil)
		}, true},
		{"member changes status of assigned ticket", func() (bool, error) {
			return resolver.CanChangeTicketStatus(ctx, "p1", "member", []string{"x", "member"})
		}, true},
		{"member cannot change status of unassigned ticket", func() (bool, error) {
			return resolver.CanChangeTicketStatus(ctx, "p1", "member", nil)
		}, false},
		{"observer cannot change status even when assigned", func() (bool, error) {
			return resolver.CanChangeTicketStatus(ctx, "p1", "observer", []string{"observer"})
		}, false},
		{"member edits own comment", func() (bool, error) {
			return resolver.CanEditComment(ctx, "p1", "member", "member")
		}, true},
		{"member cannot edit foreign comment", func() (bool, error) {
			return resolver.CanEditComment(ctx, "p1", "member", "manager")
		}, false},
		{"member deletes own comment", func() (bool, error) {
			return resolver.CanDeleteComment(ctx, "p1", "member", "member")
		}, true},
		{"manager deletes foreign comment", func() (bool, error) {
			return resolver.CanDeleteComment(ctx, "p1", "manager", "member")
		}, true},
		{"observer views project", func() (bool, error) {
			return resolver.CanViewProject(ctx, "p1", "observer")
		}, true},
		{"member cannot delete project", func() (bool, error) {
			return resolver.CanDeleteProject(ctx, "p1", "member")
		}, false},
		{"manager does not manage members", func() (bool, error) {
			return resolver.CanManageMembers(ctx, "p1", "manager")
		}, false},
		{"member cannot create tickets", func() (bool, error) {
			return resolver.CanCreateTicket(ctx, "p1", "member")
		}, false},
		{"admin override manages roles", func() (bool, error) {
			return resolver.CanManageRoles(ctx, "p1", "admin")
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.check()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEffectiveRole(t *testing.T) {
	dir, store := newFixture(t)
	seedMembership(t, store, "member", domain.RoleMember, domain.MembershipStatusActive)
	seedMembership(t, store, "observer", domain.RoleObserver, domain.MembershipStatusSuspended)
	resolver := NewPermissionResolver(dir, store)
	ctx := context.Background()

	cases := []struct {
		user   string
		role   domain.Role
		member bool
	}{
		{"owner", domain.RoleAdmin, true},
		{"admin", domain.RoleAdmin, true},
		{"member", domain.RoleMember, true},
		{"observer", "", false},
		{"stranger", "", false},
	}
	for _, tc := range cases {
		role, ok, err := resolver.EffectiveRole(ctx, "p1", tc.user)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.user, err)
		}
		if role != tc.role || ok != tc.member {
			t.Fatalf("%s: expected (%q, %v), got (%q, %v)", tc.user, tc.role, tc.member, role, ok)
		}
	}
}
