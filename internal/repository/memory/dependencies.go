package memory

import (
	"context"
	"sync"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/repository"
)

type pairKey struct {
	dependentID string
	dependsOnID string
}

// DependencyStore keeps dependency edges in insertion order. The ordered pair is unique
// across active and inactive edges.
type DependencyStore struct {
	mu     sync.RWMutex
	order  []string
	edges  map[string]domain.DependencyEdge
	byPair map[pairKey]string
}

// NewDependencyStore constructs an empty DependencyStore.
func NewDependencyStore() *DependencyStore {
	return &DependencyStore{
		edges:  make(map[string]domain.DependencyEdge),
		byPair: make(map[pairKey]string),
	}
}

func (s *DependencyStore) Create(ctx context.Context, edge domain.DependencyEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertLocked(edge)
}

// CreateGuarded holds the write lock across guard and the insert. guard reads through a
// view that must not be used after it returns.
func (s *DependencyStore) CreateGuarded(ctx context.Context, edge domain.DependencyEdge, guard port.DependencyGuard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if guard != nil {
		if err := guard(ctx, lockedGraph{s}); err != nil {
			return err
		}
	}
	return s.insertLocked(edge)
}

func (s *DependencyStore) insertLocked(edge domain.DependencyEdge) error {
	key := pairKey{edge.DependentID, edge.DependsOnID}
	if _, exists := s.byPair[key]; exists {
		return repository.ErrConflict
	}
	if _, exists := s.edges[edge.ID]; exists {
		return repository.ErrConflict
	}
	s.edges[edge.ID] = edge
	s.byPair[key] = edge.ID
	s.order = append(s.order, edge.ID)
	return nil
}

func (s *DependencyStore) GetByID(ctx context.Context, id string) (*domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &edge, nil
}

func (s *DependencyStore) GetByPair(ctx context.Context, dependentID, dependsOnID string) (*domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pairLocked(dependentID, dependsOnID)
}

func (s *DependencyStore) pairLocked(dependentID, dependsOnID string) (*domain.DependencyEdge, error) {
	id, ok := s.byPair[pairKey{dependentID, dependsOnID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	edge := s.edges[id]
	return &edge, nil
}

// Update replaces the mutable attributes of an edge. The endpoints of an edge never change.
func (s *DependencyStore) Update(ctx context.Context, edge domain.DependencyEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.edges[edge.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Kind = edge.Kind
	current.Description = edge.Description
	current.Active = edge.Active
	current.UpdatedAt = edge.UpdatedAt
	s.edges[edge.ID] = current
	return nil
}

func (s *DependencyStore) ListDependsOn(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	return s.filter(ctx, func(e domain.DependencyEdge) bool { return e.DependentID == ticketID })
}

func (s *DependencyStore) ListDependents(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	return s.filter(ctx, func(e domain.DependencyEdge) bool { return e.DependsOnID == ticketID })
}

func (s *DependencyStore) ListByProject(ctx context.Context, projectID string) ([]domain.DependencyEdge, error) {
	return s.filter(ctx, func(e domain.DependencyEdge) bool { return e.ProjectID == projectID })
}

func (s *DependencyStore) CountDependsOn(ctx context.Context, ticketID string) (int, error) {
	edges, err := s.ListDependsOn(ctx, ticketID)
	return len(edges), err
}

func (s *DependencyStore) CountDependents(ctx context.Context, ticketID string) (int, error) {
	edges, err := s.ListDependents(ctx, ticketID)
	return len(edges), err
}

// filter returns active edges matching match, in insertion order.
func (s *DependencyStore) filter(ctx context.Context, match func(domain.DependencyEdge) bool) ([]domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterLocked(match), nil
}

func (s *DependencyStore) filterLocked(match func(domain.DependencyEdge) bool) []domain.DependencyEdge {
	var out []domain.DependencyEdge
	for _, id := range s.order {
		edge := s.edges[id]
		if edge.Active && match(edge) {
			out = append(out, edge)
		}
	}
	return out
}

// lockedGraph reads the store while CreateGuarded holds its write lock.
type lockedGraph struct {
	s *DependencyStore
}

func (g lockedGraph) GetByPair(ctx context.Context, dependentID, dependsOnID string) (*domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.s.pairLocked(dependentID, dependsOnID)
}

func (g lockedGraph) ListDependsOn(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.s.filterLocked(func(e domain.DependencyEdge) bool { return e.DependentID == ticketID }), nil
}
