package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/repository"
)

type membershipKey struct {
	projectID string
	userID    string
}

// MembershipStore keeps memberships in process memory. The (project, user) uniqueness
// check and the insert happen under one lock.
type MembershipStore struct {
	mu          sync.RWMutex
	memberships map[membershipKey]domain.Membership
}

// NewMembershipStore constructs an empty MembershipStore.
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		memberships: make(map[membershipKey]domain.Membership),
	}
}

func (s *MembershipStore) Create(ctx context.Context, membership domain.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{membership.ProjectID, membership.UserID}
	if _, exists := s.memberships[key]; exists {
		return repository.ErrConflict
	}
	s.memberships[key] = cloneMembership(membership)
	return nil
}

func (s *MembershipStore) Get(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	membership, ok := s.memberships[membershipKey{projectID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneMembership(membership)
	return &out, nil
}

func (s *MembershipStore) Update(ctx context.Context, membership domain.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{membership.ProjectID, membership.UserID}
	if _, ok := s.memberships[key]; !ok {
		return repository.ErrNotFound
	}
	s.memberships[key] = cloneMembership(membership)
	return nil
}

func (s *MembershipStore) Delete(ctx context.Context, projectID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{projectID, userID}
	if _, ok := s.memberships[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.memberships, key)
	return nil
}

// ListByProject returns memberships ordered by join time. An empty status matches all.
func (s *MembershipStore) ListByProject(ctx context.Context, projectID string, status domain.MembershipStatus) ([]domain.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Membership
	for key, membership := range s.memberships {
		if key.projectID != projectID {
			continue
		}
		if status != "" && membership.Status != status {
			continue
		}
		out = append(out, cloneMembership(membership))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func cloneMembership(m domain.Membership) domain.Membership {
	m.Permissions = m.Permissions.Clone()
	return m
}
