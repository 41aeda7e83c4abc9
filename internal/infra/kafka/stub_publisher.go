package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when Kafka is disabled.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, actorID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("actor_id", actorID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

// PublishMembershipChanged logs membership events.
func (p *StubPublisher) PublishMembershipChanged(_ context.Context, event domain.MembershipChangedEvent) error {
	p.logEvent(EventMembershipChanged, event.ActorID, event.OccurredAt,
		zap.String("action", string(event.Action)),
		zap.String("project_id", event.ProjectID),
		zap.String("user_id", event.UserID),
		zap.String("role", string(event.Role)),
		zap.String("prev_role", string(event.PrevRole)),
	)
	return nil
}

// PublishDependencyChanged logs dependency events.
func (p *StubPublisher) PublishDependencyChanged(_ context.Context, event domain.DependencyChangedEvent) error {
	p.logEvent(EventDependencyChanged, event.ActorID, event.OccurredAt,
		zap.String("action", string(event.Action)),
		zap.String("dependency_id", event.DependencyID),
		zap.String("dependent_ticket_id", event.DependentID),
		zap.String("depends_on_ticket_id", event.DependsOnID),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
