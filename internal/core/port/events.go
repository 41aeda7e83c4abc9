package port

import (
	"context"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishMembershipChanged(ctx context.Context, event domain.MembershipChangedEvent) error
	PublishDependencyChanged(ctx context.Context, event domain.DependencyChangedEvent) error
}
