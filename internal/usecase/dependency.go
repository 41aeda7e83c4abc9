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
	"github.com/arklim/ticket-tracker/internal/repository"
)

// CycleDetection selects how CreateDependency looks for cycles.
type CycleDetection string

const (
	// CycleDetectionTransitive rejects any edge that would close a cycle of active edges.
	CycleDetectionTransitive CycleDetection = "transitive"
	// CycleDetectionDirect only rejects the exact reverse of an existing edge.
	CycleDetectionDirect CycleDetection = "direct"
)

// BlockingMode selects which active edges keep a ticket blocked.
type BlockingMode string

const (
	// BlockingStatusAware blocks while the depends-on ticket is not DONE.
	BlockingStatusAware BlockingMode = "status_aware"
	// BlockingAnyActiveEdge blocks on every active edge regardless of the target's status.
	BlockingAnyActiveEdge BlockingMode = "any_active_edge"
)

// DependencyPolicy groups the graph behaviours that can be switched for compatibility.
type DependencyPolicy struct {
	CycleDetection CycleDetection
	Blocking       BlockingMode
}

// DefaultDependencyPolicy returns transitive cycle detection with status-aware blocking.
func DefaultDependencyPolicy() DependencyPolicy {
	return DependencyPolicy{
		CycleDetection: CycleDetectionTransitive,
		Blocking:       BlockingStatusAware,
	}
}

// ParseDependencyPolicy validates configuration tokens. Empty values fall back to defaults.
func ParseDependencyPolicy(cycleDetection, blocking string) (DependencyPolicy, error) {
	policy := DefaultDependencyPolicy()

	switch CycleDetection(strings.ToLower(strings.TrimSpace(cycleDetection))) {
	case "":
	case CycleDetectionTransitive:
		policy.CycleDetection = CycleDetectionTransitive
	case CycleDetectionDirect:
		policy.CycleDetection = CycleDetectionDirect
	default:
		return DependencyPolicy{}, fmt.Errorf("%w: unknown cycle detection %q", domain.ErrInvalidArgument, cycleDetection)
	}

	switch BlockingMode(strings.ToLower(strings.TrimSpace(blocking))) {
	case "":
	case BlockingStatusAware:
		policy.Blocking = BlockingStatusAware
	case BlockingAnyActiveEdge:
		policy.Blocking = BlockingAnyActiveEdge
	default:
		return DependencyPolicy{}, fmt.Errorf("%w: unknown blocking mode %q", domain.ErrInvalidArgument, blocking)
	}

	return policy, nil
}

// CreateDependencyInput carries the attributes of a new edge.
type CreateDependencyInput struct {
	DependentID string
	DependsOnID string
	ProjectID   string
	Kind        string
	Description string
	CreatedBy   string
}

// UpdateDependencyInput changes the mutable attributes of an edge. Nil fields are left as is.
type UpdateDependencyInput struct {
	ID          string
	Kind        *string
	Description *string
	ActorID     string
}

// DependencyService maintains the blocking graph between tickets. It has no notion of
// permissions; callers authorize before calling.
type DependencyService struct {
	deps    port.DependencyRepository
	tickets port.TicketReader
	users   port.UserDirectory
	events  port.EventPublisher
	policy  DependencyPolicy
	metrics port.AuthzMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewDependencyService constructs a DependencyService with the default policy.
func NewDependencyService(deps port.DependencyRepository, tickets port.TicketReader, users port.UserDirectory, events port.EventPublisher) *DependencyService {
	return &DependencyService{
		deps:    deps,
		tickets: tickets,
		users:   users,
		events:  events,
		policy:  DefaultDependencyPolicy(),
		metrics: port.NopAuthzMetrics{},
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithPolicy overrides cycle detection and blocking behaviour.
func (s *DependencyService) WithPolicy(policy DependencyPolicy) *DependencyService {
	if policy.CycleDetection != "" {
		s.policy.CycleDetection = policy.CycleDetection
	}
	if policy.Blocking != "" {
		s.policy.Blocking = policy.Blocking
	}
	return s
}

// Policy returns the active policy.
func (s *DependencyService) Policy() DependencyPolicy {
	return s.policy
}

// WithMetrics records rejected cycles.
func (s *DependencyService) WithMetrics(metrics port.AuthzMetrics) *DependencyService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithLogger sets the logger used when audit publication fails.
func (s *DependencyService) WithLogger(logger *zap.Logger) *DependencyService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the service clock for deterministic testing.
func (s *DependencyService) WithClock(clock func() time.Time) *DependencyService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// CreateDependency persists an active edge DependentID -> DependsOnID.
//
// Both tickets must belong to input.ProjectID. An existing edge for the same ordered pair is a
// duplicate even when it was soft-deleted. The duplicate and cycle checks run inside the
// store's guarded create, so a pair and its reverse cannot both be inserted.
func (s *DependencyService) CreateDependency(ctx context.Context, input CreateDependencyInput) (*domain.DependencyEdge, error) {
	dependentID := strings.TrimSpace(input.DependentID)
	dependsOnID := strings.TrimSpace(input.DependsOnID)
	projectID := strings.TrimSpace(input.ProjectID)
	createdBy := strings.TrimSpace(input.CreatedBy)

	switch {
	case dependentID == "":
		return nil, requiredField("dependent ticket id")
	case dependsOnID == "":
		return nil, requiredField("depends-on ticket id")
	case projectID == "":
		return nil, requiredField("project id")
	case createdBy == "":
		return nil, requiredField("created by")
	}
	if dependentID == dependsOnID {
		return nil, ErrSelfDependency
	}

	kind, ok := domain.ParseRelationshipKind(input.Kind)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownRelationship, input.Kind)
	}

	if err := s.ensureUser(ctx, createdBy); err != nil {
		return nil, err
	}

	for _, ticketID := range []string{dependentID, dependsOnID} {
		if err := s.ensureTicketInProject(ctx, ticketID, projectID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	edge := domain.DependencyEdge{
		ID:          uuid.NewString(),
		DependentID: dependentID,
		DependsOnID: dependsOnID,
		ProjectID:   projectID,
		Kind:        kind,
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Active:      true,
	}

	guard := func(ctx context.Context, graph port.DependencyGraph) error {
		existing, err := graph.GetByPair(ctx, dependentID, dependsOnID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("lookup dependency pair: %w", err)
		}
		if existing != nil {
			return ErrDependencyExists
		}

		cycle, err := s.wouldCreateCycle(ctx, graph, dependentID, dependsOnID)
		if err != nil {
			return err
		}
		if cycle {
			s.metrics.ObserveCycleRejected(string(s.policy.CycleDetection))
			return ErrDependencyCycle
		}
		return nil
	}

	if err := s.deps.CreateGuarded(ctx, edge, guard); err != nil {
		switch {
		case errors.Is(err, ErrDependencyExists), errors.Is(err, ErrDependencyCycle):
			return nil, err
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrDependencyExists
		}
		return nil, fmt.Errorf("create dependency: %w", err)
	}

	s.publish(ctx, domain.DependencyCreated, edge, createdBy)
	return &edge, nil
}

// GetDependency returns an edge by id, including soft-deleted edges.
func (s *DependencyService) GetDependency(ctx context.Context, id string) (*domain.DependencyEdge, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, requiredField("dependency id")
	}

	edge, err := s.deps.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDependencyNotFound
		}
		return nil, fmt.Errorf("load dependency: %w", err)
	}
	return edge, nil
}

// UpdateDependency changes the relationship kind and/or description of an edge.
func (s *DependencyService) UpdateDependency(ctx context.Context, input UpdateDependencyInput) (*domain.DependencyEdge, error) {
	edge, err := s.GetDependency(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Kind != nil {
		kind, ok := domain.ParseRelationshipKind(*input.Kind)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownRelationship, *input.Kind)
		}
		edge.Kind = kind
	}
	if input.Description != nil {
		edge.Description = strings.TrimSpace(*input.Description)
	}
	edge.UpdatedAt = s.now()

	if err := s.deps.Update(ctx, *edge); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDependencyNotFound
		}
		return nil, fmt.Errorf("update dependency: %w", err)
	}

	s.publish(ctx, domain.DependencyUpdated, *edge, strings.TrimSpace(input.ActorID))
	return edge, nil
}

// RemoveDependency soft-deletes the edge. Removing an already inactive edge succeeds
// without touching the store.
func (s *DependencyService) RemoveDependency(ctx context.Context, id, actorID string) error {
	edge, err := s.GetDependency(ctx, id)
	if err != nil {
		return err
	}
	if !edge.Active {
		return nil
	}

	edge.Active = false
	edge.UpdatedAt = s.now()

	if err := s.deps.Update(ctx, *edge); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDependencyNotFound
		}
		return fmt.Errorf("deactivate dependency: %w", err)
	}

	s.publish(ctx, domain.DependencyRemoved, *edge, strings.TrimSpace(actorID))
	return nil
}

// HasCircularDependency reports whether adding dependentID -> dependsOnID would be
// rejected as a cycle under the active policy.
func (s *DependencyService) HasCircularDependency(ctx context.Context, dependentID, dependsOnID string) (bool, error) {
	dependentID = strings.TrimSpace(dependentID)
	dependsOnID = strings.TrimSpace(dependsOnID)
	if dependentID == "" || dependsOnID == "" {
		return false, nil
	}
	if dependentID == dependsOnID {
		return true, nil
	}
	return s.wouldCreateCycle(ctx, s.deps, dependentID, dependsOnID)
}

// IsBlocked reports whether ticketID still waits on at least one outstanding dependency.
func (s *DependencyService) IsBlocked(ctx context.Context, ticketID string) (bool, error) {
	blockers, err := s.blockers(ctx, ticketID)
	if err != nil {
		return false, err
	}
	return len(blockers) > 0, nil
}

// BlockingReason returns "Blocked by: a, b" listing outstanding depends-on tickets in store
// order, or "" when the ticket is not blocked. The order is not a stability guarantee.
func (s *DependencyService) BlockingReason(ctx context.Context, ticketID string) (string, error) {
	blockers, err := s.blockers(ctx, ticketID)
	if err != nil {
		return "", err
	}
	if len(blockers) == 0 {
		return "", nil
	}

	ids := make([]string, 0, len(blockers))
	for _, edge := range blockers {
		ids = append(ids, edge.DependsOnID)
	}
	return "Blocked by: " + strings.Join(ids, ", "), nil
}

// CountDependencies counts the active edges leaving ticketID.
func (s *DependencyService) CountDependencies(ctx context.Context, ticketID string) (int, error) {
	n, err := s.deps.CountDependsOn(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return 0, fmt.Errorf("count dependencies: %w", err)
	}
	return n, nil
}

// CountDependents counts the active edges pointing at ticketID.
func (s *DependencyService) CountDependents(ctx context.Context, ticketID string) (int, error) {
	n, err := s.deps.CountDependents(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return 0, fmt.Errorf("count dependents: %w", err)
	}
	return n, nil
}

// ListDependsOn returns the active edges leaving ticketID.
func (s *DependencyService) ListDependsOn(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	edges, err := s.deps.ListDependsOn(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	return edges, nil
}

// ListDependents returns the active edges pointing at ticketID.
func (s *DependencyService) ListDependents(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	edges, err := s.deps.ListDependents(ctx, strings.TrimSpace(ticketID))
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	return edges, nil
}

// ListProjectDependencies returns the active edges of a project.
func (s *DependencyService) ListProjectDependencies(ctx context.Context, projectID string) ([]domain.DependencyEdge, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, requiredField("project id")
	}
	edges, err := s.deps.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project dependencies: %w", err)
	}
	return edges, nil
}

// wouldCreateCycle checks the reverse pair first (active or not), then, in transitive
// mode, walks active edges from dependsOnID looking for dependentID.
func (s *DependencyService) wouldCreateCycle(ctx context.Context, graph port.DependencyGraph, dependentID, dependsOnID string) (bool, error) {
	reverse, err := graph.GetByPair(ctx, dependsOnID, dependentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("lookup reverse dependency: %w", err)
	}
	if reverse != nil {
		return true, nil
	}

	if s.policy.CycleDetection != CycleDetectionTransitive {
		return false, nil
	}

	visited := map[string]struct{}{dependsOnID: {}}
	queue := []string{dependsOnID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		edges, err := graph.ListDependsOn(ctx, current)
		if err != nil {
			return false, fmt.Errorf("walk dependencies of %s: %w", current, err)
		}
		for _, edge := range edges {
			next := edge.DependsOnID
			if next == dependentID {
				return true, nil
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return false, nil
}

// blockers returns the active edges of ticketID that still block it under the policy.
// In status-aware mode a depends-on ticket that cannot be read keeps blocking.
func (s *DependencyService) blockers(ctx context.Context, ticketID string) ([]domain.DependencyEdge, error) {
	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, nil
	}

	edges, err := s.deps.ListDependsOn(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	if s.policy.Blocking != BlockingStatusAware || s.tickets == nil {
		return edges, nil
	}

	outstanding := edges[:0:0]
	for _, edge := range edges {
		target, err := s.tickets.GetTicket(ctx, edge.DependsOnID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				outstanding = append(outstanding, edge)
				continue
			}
			return nil, fmt.Errorf("load ticket %s: %w", edge.DependsOnID, err)
		}
		if target == nil || !target.IsDone() {
			outstanding = append(outstanding, edge)
		}
	}
	return outstanding, nil
}

// ensureTicketInProject reports ErrTicketNotFound for unknown tickets and for tickets of
// another project, so callers learn nothing about foreign ticket ids.
func (s *DependencyService) ensureTicketInProject(ctx context.Context, ticketID, projectID string) error {
	if s.tickets == nil {
		return nil
	}
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
		}
		return fmt.Errorf("load ticket: %w", err)
	}
	if ticket == nil || ticket.ProjectID != projectID {
		return fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID)
	}
	return nil
}

func (s *DependencyService) ensureUser(ctx context.Context, userID string) error {
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

func (s *DependencyService) publish(ctx context.Context, action domain.DependencyAction, edge domain.DependencyEdge, actorID string) {
	if s.events == nil {
		return
	}
	event := domain.DependencyChangedEvent{
		EventID:      uuid.NewString(),
		Action:       action,
		DependencyID: edge.ID,
		ProjectID:    edge.ProjectID,
		DependentID:  edge.DependentID,
		DependsOnID:  edge.DependsOnID,
		Kind:         edge.Kind,
		ActorID:      actorID,
		OccurredAt:   edge.UpdatedAt,
	}
	if err := s.events.PublishDependencyChanged(ctx, event); err != nil {
		s.logger.Warn("publish dependency event failed",
			zap.String("action", string(action)),
			zap.String("dependency_id", edge.ID),
			zap.Error(err),
		)
	}
}
