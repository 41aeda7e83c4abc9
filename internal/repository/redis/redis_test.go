package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestMembershipCache_RoundTrip(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewMembershipCache(client, "members", time.Minute)
	ctx := context.Background()

	joined := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := domain.Membership{
		ID:          "m-1",
		ProjectID:   "p-1",
		UserID:      "u-1",
		Role:        domain.RoleMember,
		Permissions: domain.NewPermissionSet(domain.PermissionTicketView, domain.PermissionTicketEditAssigned),
		Status:      domain.MembershipStatusActive,
		JoinedAt:    joined,
		UpdatedAt:   joined,
		InvitedBy:   "owner",
	}

	if err := cache.SetMembership(ctx, m); err != nil {
		t.Fatalf("SetMembership returned error: %v", err)
	}

	ttl := server.TTL("members:p-1:u-1")
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within (0, 1m], got %v", ttl)
	}

	got, err := cache.GetMembership(ctx, "p-1", "u-1")
	if err != nil {
		t.Fatalf("GetMembership returned error: %v", err)
	}
	if !got.Permissions.Equal(m.Permissions) || got.Role != m.Role || !got.JoinedAt.Equal(joined) || got.InvitedBy != "owner" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestMembershipCache_MissAndEvict(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewMembershipCache(client, "", 0)
	ctx := context.Background()

	if _, err := cache.GetMembership(ctx, "p-1", "u-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected miss, got %v", err)
	}

	if err := cache.SetMembership(ctx, domain.Membership{ProjectID: "p-1", UserID: "u-1", Status: domain.MembershipStatusActive}); err != nil {
		t.Fatalf("SetMembership returned error: %v", err)
	}
	if err := cache.DeleteMembership(ctx, "p-1", "u-1"); err != nil {
		t.Fatalf("DeleteMembership returned error: %v", err)
	}
	if _, err := cache.GetMembership(ctx, "p-1", "u-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected miss after eviction, got %v", err)
	}
	if err := cache.DeleteMembership(ctx, "p-1", "u-2"); err != nil {
		t.Fatalf("evicting a missing key should succeed, got %v", err)
	}
}

func TestMembershipCache_EvictionBlocksStaleWrite(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewMembershipCache(client, "members", time.Minute)
	ctx := context.Background()
	stale := domain.Membership{ProjectID: "p-1", UserID: "u-1", Role: domain.RoleAdmin, Status: domain.MembershipStatusActive}

	// A read-through loaded stale before the membership was removed and writes it back late.
	if err := cache.DeleteMembership(ctx, "p-1", "u-1"); err != nil {
		t.Fatalf("DeleteMembership returned error: %v", err)
	}
	if err := cache.SetMembership(ctx, stale); err != nil {
		t.Fatalf("SetMembership returned error: %v", err)
	}
	if _, err := cache.GetMembership(ctx, "p-1", "u-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected evicted key to stay a miss, got %v", err)
	}
	if ttl := server.TTL("members:p-1:u-1"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected eviction marker to expire within 1m, got %v", ttl)
	}

	server.FastForward(time.Minute + time.Second)

	fresh := stale
	fresh.Role = domain.RoleMember
	if err := cache.SetMembership(ctx, fresh); err != nil {
		t.Fatalf("SetMembership returned error: %v", err)
	}
	got, err := cache.GetMembership(ctx, "p-1", "u-1")
	if err != nil {
		t.Fatalf("GetMembership returned error: %v", err)
	}
	if got.Role != domain.RoleMember {
		t.Fatalf("expected fresh snapshot after the marker expired, got %+v", got)
	}

	// A populated key is not overwritten either; eviction is the only way to replace it.
	other := fresh
	other.Role = domain.RoleObserver
	if err := cache.SetMembership(ctx, other); err != nil {
		t.Fatalf("SetMembership returned error: %v", err)
	}
	if got, _ := cache.GetMembership(ctx, "p-1", "u-1"); got == nil || got.Role != domain.RoleMember {
		t.Fatalf("expected existing snapshot to be kept, got %+v", got)
	}
}

func TestMembershipCache_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewMembershipCache(client, "members", time.Minute)

	if _, err := cache.GetMembership(context.Background(), "", "u-1"); err == nil {
		t.Fatalf("expected error for empty project id")
	}
	if err := cache.SetMembership(context.Background(), domain.Membership{ProjectID: "p-1"}); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestMembershipCache_CorruptEntry(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewMembershipCache(client, "members", time.Minute)

	if err := server.Set("members:p-1:u-1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := cache.GetMembership(context.Background(), "p-1", "u-1"); err == nil || errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestWriteThrottleStore_SlidingWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewWriteThrottleStore(client, "writes", time.Hour)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		decision, err := store.Hit(ctx, "u-1", 2, time.Minute, base.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Hit returned error: %v", err)
		}
		if !decision.Allowed || decision.Count != i+1 {
			t.Fatalf("attempt %d: unexpected decision %+v", i+1, decision)
		}
	}

	decision, err := store.Hit(ctx, "u-1", 2, time.Minute, base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if decision.Allowed || decision.Count != 2 {
		t.Fatalf("expected third attempt to be refused at count 2, got %+v", decision)
	}
	if !decision.Reset.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected reset at %v, got %v", base.Add(time.Minute), decision.Reset)
	}

	decision, err = store.Hit(ctx, "u-1", 2, time.Minute, base.Add(61*time.Second))
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if !decision.Allowed || decision.Count != 2 {
		t.Fatalf("expected oldest attempt to leave the window, got %+v", decision)
	}

	if _, err := store.Hit(ctx, "u-1", 0, time.Minute, base); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
