// Package queue relays domain events to an external broker.
package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Ping(ctx context.Context) error
	Close() error
}

const (
	DriverNone     = "none"
	DriverNATS     = "nats"
	DriverRabbitMQ = "rabbitmq"
)

// Open connects to the broker selected by driver. It returns a nil queue and
// no error for DriverNone or an empty driver.
func Open(driver, url, name string, log *zap.Logger) (MessageQueue, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverNATS:
		return NewNATSQueue(url, name, log)
	case DriverRabbitMQ:
		return NewRabbitMQQueue(url, name, log)
	default:
		return nil, fmt.Errorf("unknown queue driver %q", driver)
	}
}
