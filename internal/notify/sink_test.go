package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlemilk/pfinance-insights/internal/model"
	"github.com/castlemilk/pfinance-insights/internal/store"
)

type recordingSink struct {
	name string
	err  error
	sent []*model.Notification
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, n *model.Notification) error {
	s.sent = append(s.sent, n)
	return s.err
}

func TestCreatedNotificationsAreDispatched(t *testing.T) {
	failing := &recordingSink{name: "broken", err: errors.New("offline")}
	ok := &recordingSink{name: "ok"}

	res, err := newTestEngine(store.NewMemoryStore(), failing, ok).Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)

	assert.Len(t, failing.sent, 10)
	assert.Len(t, ok.sent, 10, "a failing sink does not block the next one")
	assert.Zero(t, res.Totals().Failed)
}

func TestSkippedNotificationsAreNotDispatched(t *testing.T) {
	sink := &recordingSink{name: "ok"}
	engine := newTestEngine(store.NewMemoryStore(), sink)

	_, err := engine.Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)
	_, err = engine.Evaluate(context.Background(), fixture(), now)
	require.NoError(t, err)

	assert.Len(t, sink.sent, 10)
}

type fakeSender struct {
	messages []*messaging.Message
	err      error
}

func (f *fakeSender) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.messages = append(f.messages, m)
	return "projects/test/messages/1", f.err
}

func TestPushSinkTargetsUserTopic(t *testing.T) {
	sender := &fakeSender{}
	sink := &PushSink{client: sender, linkURL: "https://app.example.com/notifications"}

	n := &model.Notification{ID: "n1", UserID: "user-1", Type: model.NotificationLowBalance, Priority: model.PriorityHigh, Title: "Low balance", Message: "Top up"}
	require.NoError(t, sink.Send(context.Background(), n))

	require.Len(t, sender.messages, 1)
	m := sender.messages[0]
	assert.Equal(t, "user-user-1", m.Topic)
	assert.Equal(t, "Low balance", m.Notification.Title)
	assert.Equal(t, "low_balance", m.Data["type"])
	assert.Equal(t, "https://app.example.com/notifications", m.Webpush.FCMOptions.Link)

	sender.err = errors.New("quota")
	assert.Error(t, sink.Send(context.Background(), n))
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func TestAMQPSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := &AMQPSink{channel: pub, exchange: "pfinance", routingKey: "notifications"}

	n := &model.Notification{ID: "n1", UserID: "user-1", Type: model.NotificationBudgetAlert, Title: "Budget Alert", CreatedAt: now}
	require.NoError(t, sink.Send(context.Background(), n))

	assert.Equal(t, "pfinance", pub.exchange)
	assert.Equal(t, "notifications", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "n1", pub.msg.MessageId)

	var decoded model.Notification
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, "user-1", decoded.UserID)
	assert.Equal(t, model.NotificationBudgetAlert, decoded.Type)
	assert.NoError(t, sink.Close())
}
