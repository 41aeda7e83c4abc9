package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/domain"
	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/infra/config"
)

const (
	schemaVersion = "1.0"

	EventMembershipChanged = "membership.changed"
	EventDependencyChanged = "dependency.changed"
)

// EventPublisher implements port.EventPublisher on Kafka. Membership events are keyed by
// project and user so that a partition sees every change for one membership in order;
// dependency events are keyed by the dependent ticket.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	ActorID   string            `json:"actor_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type membershipPayload struct {
	Action    string         `json:"action"`
	ProjectID string         `json:"project_id"`
	UserID    string         `json:"user_id"`
	Role      string         `json:"role,omitempty"`
	PrevRole  string         `json:"prev_role,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type dependencyPayload struct {
	Action       string         `json:"action"`
	DependencyID string         `json:"dependency_id"`
	ProjectID    string         `json:"project_id"`
	DependentID  string         `json:"dependent_ticket_id"`
	DependsOnID  string         `json:"depends_on_ticket_id"`
	Kind         string         `json:"relationship_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, actorID, key string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: p.producer.TopicName(eventType),
		ActorID:   actorID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   body,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishMembershipChanged publishes <prefix>.membership.changed events.
func (p *EventPublisher) PublishMembershipChanged(ctx context.Context, event domain.MembershipChangedEvent) error {
	payload := membershipPayload{
		Action:    string(event.Action),
		ProjectID: event.ProjectID,
		UserID:    event.UserID,
		Role:      string(event.Role),
		PrevRole:  string(event.PrevRole),
		Metadata:  event.Metadata,
	}
	key := event.ProjectID + ":" + event.UserID
	return p.publish(ctx, event.EventID, EventMembershipChanged, event.ActorID, key, event.OccurredAt, payload)
}

// PublishDependencyChanged publishes <prefix>.dependency.changed events.
func (p *EventPublisher) PublishDependencyChanged(ctx context.Context, event domain.DependencyChangedEvent) error {
	payload := dependencyPayload{
		Action:       string(event.Action),
		DependencyID: event.DependencyID,
		ProjectID:    event.ProjectID,
		DependentID:  event.DependentID,
		DependsOnID:  event.DependsOnID,
		Kind:         string(event.Kind),
		Metadata:     event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventDependencyChanged, event.ActorID, event.DependentID, event.OccurredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
