// ABOUTME: RabbitMQ publisher for activity events using amqp091-go
// ABOUTME: Declares a durable topic exchange and publishes persistent JSON messages

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes activity events to a RabbitMQ topic exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	producer string
	log      *slog.Logger
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring exchange %q: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		producer: "greentic-gateway",
		log:      logger.With("component", "events"),
	}, nil
}

// PublishActivityAppended wraps the event in an envelope and publishes it
// with the event's routing key.
func (p *AMQPPublisher) PublishActivityAppended(ctx context.Context, event ActivityAppendedV1) error {
	msg := Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Producer: p.producer,
			Time:     time.Now().UTC(),
			Type:     TypeActivityAppended,
		},
		Data: event,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	key := event.RoutingKey()
	err = ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.Meta.ID,
			Timestamp:    msg.Meta.Time,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing to %q: %w", p.exchange, err)
	}

	p.log.Debug("event published", "key", key, "exchange", p.exchange)
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

var _ Publisher = (*AMQPPublisher)(nil)
