package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/service"
)

// Consumer reads enqueue requests from a Kafka topic and feeds them into
// the queue. Offsets are committed manually, only after the item has
// been persisted, so a store outage leads to redelivery instead of loss.
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler sarama.ConsumerGroupHandler
	logger  *zap.Logger
}

func NewConsumer(
	brokers []string,
	groupID string,
	topic string,
	svc *service.QueueService,
	logger *zap.Logger,
) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRange(),
	}
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: &enqueueHandler{svc: svc, logger: logger},
		logger:  logger,
	}, nil
}

// Run consumes until ctx is cancelled, rejoining the group after
// rebalances and transient errors.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c.handler); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consume loop error", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type enqueueHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func (h *enqueueHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *enqueueHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *enqueueHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	for msg := range claim.Messages() {
		var req domain.EnqueueRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			// Undecodable messages are dropped after logging: redelivery
			// cannot fix malformed JSON.
			h.logger.Warn("dropping malformed enqueue message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			session.MarkMessage(msg, "")
			session.Commit()
			continue
		}

		id, err := h.svc.Enqueue(session.Context(), req)
		if err != nil {
			// Validation failures are permanent; store failures are not.
			// Only the latter warrant redelivery.
			if req.Validate() != nil {
				h.logger.Warn("dropping invalid enqueue message",
					zap.Int64("offset", msg.Offset), zap.Error(err))
				session.MarkMessage(msg, "")
				session.Commit()
				continue
			}
			return fmt.Errorf("enqueue from kafka: %w", err)
		}

		h.logger.Debug("enqueued from kafka",
			zap.String("id", id), zap.Int64("offset", msg.Offset))
		session.MarkMessage(msg, "")
		session.Commit()
	}
	return nil
}
