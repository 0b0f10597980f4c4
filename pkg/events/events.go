package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mydiary/mall-server/pkg/config"
	"github.com/mydiary/mall-server/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

// New picks the publisher named by cfg.Driver.
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "nats":
		return NewNATSPublisher(cfg.NATSURL)
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	case "", "none":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("mall-server"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	return n.conn.Drain()
}

// AMQPPublisher publishes to a durable topic exchange, routing key = subject.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (a *AMQPPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "exchange", a.exchange)

	return a.ch.PublishWithContext(ctx, a.exchange, subject, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
}

func (a *AMQPPublisher) Close() error {
	_ = a.ch.Close()
	return a.conn.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// Emit publishes and logs failures; event delivery never fails a request.
func Emit(ctx context.Context, p Publisher, subject string, data any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

// Event subjects
const (
	UserRegistered      = "user.registered"
	UserVerified        = "user.verified"
	UserLoggedIn        = "user.logged_in"
	UserLoggedOut       = "user.logged_out"
	UserPasswordChanged = "user.password_changed"
	AccountsExpired     = "account.expired"
	SessionsExpired     = "session.expired"

	OrderCreated  = "order.created"
	OrderUpdated  = "order.updated"
	OrderCanceled = "order.canceled"
)

// Event payloads

type UserEvent struct {
	UserID     int64     `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Reason     string    `json:"reason,omitempty"`
}

type SweepEvent struct {
	Count      int64     `json:"count"`
	UserIDs    []int64   `json:"user_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type OrderEvent struct {
	OrderID    int64     `json:"order_id"`
	Reference  string    `json:"reference"`
	UserID     int64     `json:"user_id"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}
