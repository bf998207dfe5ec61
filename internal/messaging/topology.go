// Package messaging carries moderation tasks over RabbitMQ.
package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	ModerationQueue         = "moderation_tasks"
	ModerationDLX           = "moderation_tasks_dlx"
	ModerationDLQ           = "moderation_tasks_dlq"
	moderationDLQRoutingKey = "dlq"
)

// Connect dials RabbitMQ, retrying while the broker starts up.
func Connect(ctx context.Context, url string, maxRetries int, delay time.Duration, logger *zap.Logger) (*amqp.Connection, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			return conn, nil
		}
		lastErr = err
		logger.Warn("RabbitMQ connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, lastErr)
}

// DeclareModerationTopology declares the task queue, its dead letter
// exchange and the dead letter queue. Publisher and consumer both call it
// so the arguments always match.
func DeclareModerationTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ModerationDLX, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", ModerationDLX, err)
	}
	if _, err := ch.QueueDeclare(ModerationDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", ModerationDLQ, err)
	}
	if err := ch.QueueBind(ModerationDLQ, moderationDLQRoutingKey, ModerationDLX, false, nil); err != nil {
		return fmt.Errorf("failed to bind %q to %q: %w", ModerationDLQ, ModerationDLX, err)
	}
	args := amqp.Table{
		"x-queue-mode":              "lazy",
		"x-dead-letter-exchange":    ModerationDLX,
		"x-dead-letter-routing-key": moderationDLQRoutingKey,
	}
	if _, err := ch.QueueDeclare(ModerationQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", ModerationQueue, err)
	}
	return nil
}
