package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

// ModerationTaskPublisher queues messages for an asynchronous moderation scan.
type ModerationTaskPublisher interface {
	PublishModerationTask(ctx context.Context, task models.ModerationTask) error
}

// channelPublisher is the part of *amqp.Channel used for publishing.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type rabbitMQPublisher struct {
	channel   channelPublisher
	queueName string
	attempts  int
	logger    *zap.Logger
}

var _ ModerationTaskPublisher = (*rabbitMQPublisher)(nil)

// NewModerationPublisher opens a channel on conn and declares the moderation topology.
func NewModerationPublisher(conn *amqp.Connection, logger *zap.Logger) (ModerationTaskPublisher, *amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("moderation publisher: failed to open channel: %w", err)
	}
	if err := DeclareModerationTopology(ch); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("moderation publisher: %w", err)
	}
	return newPublisher(ch, ModerationQueue, logger), ch, nil
}

func newPublisher(ch channelPublisher, queue string, logger *zap.Logger) *rabbitMQPublisher {
	return &rabbitMQPublisher{
		channel:   ch,
		queueName: queue,
		attempts:  3,
		logger:    logger.Named("ModerationPublisher"),
	}
}

// PublishModerationTask sends the task as a persistent JSON message.
func (p *rabbitMQPublisher) PublishModerationTask(ctx context.Context, task models.ModerationTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode moderation task: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for attempt := 1; attempt <= p.attempts; attempt++ {
		err = p.channel.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.TaskID,
			Timestamp:    time.Now(),
			AppId:        "persona-server",
			Body:         body,
		})
		if err == nil {
			p.logger.Debug("Moderation task published",
				zap.String("task_id", task.TaskID),
				zap.String("message_id", task.MessageID),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		p.logger.Warn("Publish attempt failed", zap.String("task_id", task.TaskID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("failed to publish moderation task: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("failed to publish moderation task after %d attempts: %w", p.attempts, err)
}
