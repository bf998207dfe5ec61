package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

// TaskHandler processes one moderation task.
type TaskHandler interface {
	ScanMessage(ctx context.Context, task models.ModerationTask) error
}

// ModerationConsumer reads moderation tasks and hands them to a TaskHandler.
// Failed tasks are rejected without requeue and end up in the dead letter queue.
type ModerationConsumer struct {
	conn        *amqp.Connection
	handler     TaskHandler
	taskTimeout time.Duration
	logger      *zap.Logger

	mu         sync.Mutex
	channel    *amqp.Channel
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// NewModerationConsumer creates a consumer. Start must be called to begin reading.
func NewModerationConsumer(conn *amqp.Connection, handler TaskHandler, taskTimeout time.Duration, logger *zap.Logger) *ModerationConsumer {
	return &ModerationConsumer{
		conn:        conn,
		handler:     handler,
		taskTimeout: taskTimeout,
		logger:      logger.Named("ModerationConsumer"),
	}
}

// Start declares the topology and consumes in a background goroutine.
func (c *ModerationConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		return errors.New("moderation consumer already started")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareModerationTopology(ch); err != nil {
		ch.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	tag := fmt.Sprintf("moderation-worker-%d", time.Now().UnixNano())
	msgs, err := ch.Consume(ModerationQueue, tag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register consumer on %q: %w", ModerationQueue, err)
	}

	localCtx, cancel := context.WithCancel(ctx)
	c.channel = ch
	c.cancelFunc = cancel
	c.done = make(chan struct{})
	done := c.done

	c.logger.Info("Moderation consumer started", zap.String("queue", ModerationQueue), zap.String("consumer_tag", tag))
	go func() {
		defer close(done)
		for {
			select {
			case <-localCtx.Done():
				c.logger.Info("Context cancelled, consumer stopping")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("Delivery channel closed, consumer stopping")
					return
				}
				c.handleMessage(localCtx, msg)
			}
		}
	}()
	return nil
}

// delivery is the part of amqp.Delivery the consumer needs.
type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *ModerationConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	c.process(ctx, msg.Body, msg.DeliveryTag, msg)
}

func (c *ModerationConsumer) process(ctx context.Context, body []byte, tag uint64, d delivery) {
	var task models.ModerationTask
	if err := json.Unmarshal(body, &task); err != nil {
		c.logger.Error("Failed to decode moderation task", zap.Uint64("delivery_tag", tag), zap.Error(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to nack message", zap.Uint64("delivery_tag", tag), zap.Error(nackErr))
		}
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	defer cancel()
	start := time.Now()
	if err := c.handler.ScanMessage(taskCtx, task); err != nil {
		tasksProcessed.WithLabelValues(outcomeFailed).Inc()
		c.logger.Error("Moderation task failed",
			zap.String("task_id", task.TaskID),
			zap.String("message_id", task.MessageID),
			zap.Error(err),
		)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to nack message", zap.Uint64("delivery_tag", tag), zap.Error(nackErr))
		}
		return
	}
	tasksProcessed.WithLabelValues(outcomeOK).Inc()
	taskDuration.Observe(time.Since(start).Seconds())
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to ack message", zap.Uint64("delivery_tag", tag), zap.Error(ackErr))
	}
}

// Stop cancels consumption and waits for the in-flight task to finish.
func (c *ModerationConsumer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return errors.New("moderation consumer not started")
	}
	c.cancelFunc()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("Timed out waiting for consumer goroutine")
	}
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		c.logger.Error("Failed to close channel", zap.Error(err))
	}
	c.channel = nil
	c.logger.Info("Moderation consumer stopped")
	return nil
}
