package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/ticket-tracker/internal/core/port"
	"github.com/arklim/ticket-tracker/internal/infra/config"
)

type membershipEvicter interface {
	DeleteMembership(ctx context.Context, projectID, userID string) error
}

// MembershipInvalidationConsumer evicts cached membership snapshots when another replica
// publishes a membership change.
type MembershipInvalidationConsumer struct {
	cache  membershipEvicter
	logger *zap.Logger
}

// NewMembershipInvalidationConsumer constructs the consumer.
func NewMembershipInvalidationConsumer(cache port.MembershipCache, logger *zap.Logger) *MembershipInvalidationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipInvalidationConsumer{cache: cache, logger: logger}
}

// HandleMessage decodes a membership envelope and evicts the matching snapshot.
func (c *MembershipInvalidationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode membership envelope: %w", err)
	}

	var payload membershipPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return fmt.Errorf("decode membership payload: %w", err)
	}
	if payload.ProjectID == "" || payload.UserID == "" {
		return fmt.Errorf("membership event %s missing project or user", envelope.EventID)
	}

	if c.cache == nil {
		return nil
	}
	if err := c.cache.DeleteMembership(ctx, payload.ProjectID, payload.UserID); err != nil {
		c.logger.Warn("failed to evict membership snapshot",
			zap.String("project_id", payload.ProjectID),
			zap.String("user_id", payload.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("evict membership: %w", err)
	}

	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *MembershipInvalidationConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *MembershipInvalidationConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler. Undecodable messages are logged and
// committed so that one bad record cannot stall the partition.
func (c *MembershipInvalidationConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg); err != nil {
				c.logger.Warn("membership invalidation skipped",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// ConsumerGroup runs a handler against the membership topic until its context ends.
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler sarama.ConsumerGroupHandler
	logger  *zap.Logger
}

// NewConsumerGroup joins cfg.ConsumerGroup on the membership topic.
func NewConsumerGroup(cfg config.KafkaSettings, handler sarama.ConsumerGroupHandler, logger *zap.Logger) (*ConsumerGroup, error) {
	saramaConfig := newSaramaConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ConsumerGroup{
		group:   group,
		topics:  []string{topicName(cfg.TopicPrefix, EventMembershipChanged)},
		handler: handler,
		logger:  logger,
	}, nil
}

// Run consumes until ctx is cancelled. Rebalances restart the session.
func (g *ConsumerGroup) Run(ctx context.Context) {
	go func() {
		for err := range g.group.Errors() {
			g.logger.Warn("kafka consumer error", zap.Error(err))
		}
	}()

	for {
		if err := g.group.Consume(ctx, g.topics, g.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			g.logger.Error("kafka consume failed", zap.Strings("topics", g.topics), zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Close leaves the group.
func (g *ConsumerGroup) Close() error {
	if err := g.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	return nil
}
