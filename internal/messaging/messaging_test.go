package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

type fakeChannel struct {
	failures  int
	published []amqp.Publishing
	keys      []string
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("channel busy")
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func TestPublishModerationTask(t *testing.T) {
	ch := &fakeChannel{failures: 1}
	p := newPublisher(ch, ModerationQueue, zap.NewNop())
	task := models.ModerationTask{TaskID: "t1", MessageID: "m1", UserID: "u1", CharacterID: "c1", Text: "hello", CreatedAt: time.Now().UTC()}

	require.NoError(t, p.PublishModerationTask(context.Background(), task))
	require.Len(t, ch.published, 1)
	assert.Equal(t, "/"+ModerationQueue, ch.keys[0])

	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "t1", msg.MessageId)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "m1", decoded["message_id"])
	assert.Equal(t, "hello", decoded["text"])
}

func TestPublishModerationTask_GivesUp(t *testing.T) {
	ch := &fakeChannel{failures: 10}
	p := newPublisher(ch, ModerationQueue, zap.NewNop())

	err := p.PublishModerationTask(context.Background(), models.ModerationTask{TaskID: "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel busy")
	assert.Empty(t, ch.published)
}

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error { d.acked = true; return nil }
func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked = true
	d.requeued = requeue
	return nil
}

type fakeHandler struct {
	err  error
	seen []models.ModerationTask
}

func (h *fakeHandler) ScanMessage(_ context.Context, task models.ModerationTask) error {
	h.seen = append(h.seen, task)
	return h.err
}

func TestConsumerProcess(t *testing.T) {
	body, err := json.Marshal(models.ModerationTask{TaskID: "t1", MessageID: "m1", Text: "hi"})
	require.NoError(t, err)

	t.Run("ack on success", func(t *testing.T) {
		h := &fakeHandler{}
		c := NewModerationConsumer(nil, h, time.Second, zap.NewNop())
		d := &fakeDelivery{}
		c.process(context.Background(), body, 1, d)
		assert.True(t, d.acked)
		assert.False(t, d.nacked)
		require.Len(t, h.seen, 1)
		assert.Equal(t, "m1", h.seen[0].MessageID)
	})

	t.Run("nack without requeue on failure", func(t *testing.T) {
		h := &fakeHandler{err: errors.New("scan failed")}
		c := NewModerationConsumer(nil, h, time.Second, zap.NewNop())
		d := &fakeDelivery{}
		c.process(context.Background(), body, 2, d)
		assert.False(t, d.acked)
		assert.True(t, d.nacked)
		assert.False(t, d.requeued)
	})

	t.Run("nack malformed body", func(t *testing.T) {
		h := &fakeHandler{}
		c := NewModerationConsumer(nil, h, time.Second, zap.NewNop())
		d := &fakeDelivery{}
		c.process(context.Background(), []byte("{not json"), 3, d)
		assert.True(t, d.nacked)
		assert.Empty(t, h.seen)
	})
}

func TestStopWithoutStart(t *testing.T) {
	c := NewModerationConsumer(nil, &fakeHandler{}, time.Second, zap.NewNop())
	assert.Error(t, c.Stop())
}
