package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const reconnectDelay = 5 * time.Second

// RabbitMQQueue publishes every subject to one topic exchange, using the
// subject as routing key. Subscribers may use "*" and "#" wildcards.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	url      string
	exchange string
	mu       sync.RWMutex
	closed   chan struct{}
	log      *zap.Logger
}

// NewRabbitMQQueue creates a new RabbitMQ message queue adapter
func NewRabbitMQQueue(url, exchange string, log *zap.Logger) (MessageQueue, error) {
	q := &RabbitMQQueue{
		url:      url,
		exchange: exchange,
		closed:   make(chan struct{}),
		log:      log,
	}
	if err := q.connect(); err != nil {
		return nil, err
	}

	go q.monitorConnection()

	log.Info("Successfully connected to RabbitMQ", zap.String("exchange", exchange))
	return q, nil
}

func (q *RabbitMQQueue) connect() error {
	conn, err := amqp.Dial(q.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if err := ch.ExchangeDeclare(q.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	q.mu.Lock()
	q.conn = conn
	q.channel = ch
	q.mu.Unlock()
	return nil
}

func (q *RabbitMQQueue) Publish(subject string, data []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	err := q.channel.Publish(
		q.exchange, subject, false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
			Timestamp:   time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	return nil
}

func (q *RabbitMQQueue) Subscribe(subject string, handler func(data []byte) error) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.channel == nil {
		return fmt.Errorf("rabbitmq: channel not available")
	}

	queue, err := q.channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}

	if err := q.channel.QueueBind(queue.Name, subject, q.exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}

	msgs, err := q.channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume: %w", err)
	}

	go func() {
		for msg := range msgs {
			if err := handler(msg.Body); err != nil {
				q.log.Error("Error processing RabbitMQ message",
					zap.String("routing_key", msg.RoutingKey),
					zap.Error(err),
				)
			}
		}
	}()

	q.log.Info("Subscribed to RabbitMQ topic", zap.String("binding", subject))
	return nil
}

func (q *RabbitMQQueue) Ping(ctx context.Context) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq: connection closed")
	}
	return nil
}

func (q *RabbitMQQueue) Close() error {
	select {
	case <-q.closed:
		return nil
	default:
		close(q.closed)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

func (q *RabbitMQQueue) monitorConnection() {
	for {
		q.mu.RLock()
		conn := q.conn
		q.mu.RUnlock()

		select {
		case reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1)):
			if !ok || reason == nil {
				return
			}
			q.log.Warn("RabbitMQ connection lost, reconnecting...", zap.String("reason", reason.Reason))
		case <-q.closed:
			return
		}

		for {
			select {
			case <-q.closed:
				return
			case <-time.After(reconnectDelay):
			}
			if err := q.connect(); err != nil {
				q.log.Error("Failed to reconnect to RabbitMQ", zap.Error(err))
				continue
			}
			q.log.Info("Successfully reconnected to RabbitMQ")
			break
		}
	}
}
