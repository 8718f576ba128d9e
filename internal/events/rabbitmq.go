package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the exchange activity events are published to.
	DefaultExchangeName = "todo_activity"
	// DefaultQueueName is the queue bound to the activity exchange.
	DefaultQueueName = "todo_activity_events"
	// routingKey routes all activity events to the single queue.
	routingKey = "activity"
)

// RabbitMQPublisher implements Publisher using RabbitMQ.
type RabbitMQPublisher struct {
	conn         *amqp.Connection
	channel      *amqp.Channel
	exchangeName string
	queueName    string
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the activity
// exchange and queue.
func NewRabbitMQPublisher(amqpURL string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := &RabbitMQPublisher{
		conn:         conn,
		channel:      ch,
		exchangeName: DefaultExchangeName,
		queueName:    DefaultQueueName,
	}

	if err := p.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup exchange: %w", err)
	}

	return p, nil
}

func (p *RabbitMQPublisher) setup() error {
	err := p.channel.ExchangeDeclare(
		p.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = p.channel.QueueDeclare(
		p.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := p.channel.QueueBind(p.queueName, routingKey, p.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Publish sends an activity event to the broker.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// HealthCheck verifies the broker connection is healthy.
func (p *RabbitMQPublisher) HealthCheck(ctx context.Context) error {
	if p.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	if p.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel is closed")
	}
	return nil
}

// Close closes the broker connection.
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}
