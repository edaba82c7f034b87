package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firebase.google.com/go/v4/messaging"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// Sink delivers a freshly created notification somewhere outside the store.
// Delivery is best effort.
type Sink interface {
	Name() string
	Send(ctx context.Context, n *model.Notification) error
}

// messageSender is the part of *messaging.Client the push sink needs.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushSink sends notifications through Firebase Cloud Messaging to the
// per-user topic the web client subscribes to.
type PushSink struct {
	client  messageSender
	linkURL string
}

// NewPushSink wraps an FCM client. linkURL is opened when the user taps the
// notification.
func NewPushSink(client *messaging.Client, linkURL string) *PushSink {
	return &PushSink{client: client, linkURL: linkURL}
}

// UserTopic is the FCM topic carrying a user's notifications.
func UserTopic(userID string) string {
	return "user-" + userID
}

func (s *PushSink) Name() string { return "fcm" }

func (s *PushSink) Send(ctx context.Context, n *model.Notification) error {
	message := &messaging.Message{
		Topic: UserTopic(n.UserID),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: map[string]string{
			"notificationId": n.ID,
			"type":           string(n.Type),
			"priority":       string(n.Priority),
		},
	}
	if s.linkURL != "" {
		message.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: s.linkURL},
		}
	}
	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("fcm send to %s: %w", n.UserID, err)
	}
	return nil
}

// publisher is the part of *amqp.Channel the AMQP sink needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes each notification as JSON to a durable direct exchange.
type AMQPSink struct {
	conn       *amqp.Connection
	channel    publisher
	exchange   string
	routingKey string
}

// NewAMQPSink dials url and declares the exchange and queue, binding the
// queue under its own name.
func NewAMQPSink(url, exchange, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &AMQPSink{conn: conn, channel: ch, exchange: exchange, routingKey: queue}, nil
}

func (s *AMQPSink) Name() string { return "amqp" }

func (s *AMQPSink) Send(ctx context.Context, n *model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = s.channel.PublishWithContext(ctx, s.exchange, s.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Type:         string(n.Type),
		Timestamp:    n.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close closes the connection and with it the channel.
func (s *AMQPSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
