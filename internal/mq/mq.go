// Package mq carries account events over RabbitMQ or Google Cloud Pub/Sub
// behind one small publish/subscribe API.
package mq

import (
	"context"
	"fmt"
	"sync"
)

// Message attributes the backends map onto native broker fields.
const (
	// AttrContentType becomes the AMQP content type. Pub/Sub keeps it as an attribute.
	AttrContentType = "content_type"
	// AttrOrderingKey becomes the Pub/Sub ordering key. RabbitMQ queues are
	// already ordered, so it travels as a header there.
	AttrOrderingKey = "ordering_key"
)

// Message is a delivery handed to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. A non-nil error nacks it.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by RabbitMQClient and PubSubClient.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ is the handle the rest of the app holds. Close is safe to call more
// than once; the server and the CLI both close on their error paths.
type MQ struct {
	backend   Backend
	closeOnce sync.Once
	closeErr  error
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends data to channel and returns the broker's message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id, err := m.backend.Publish(ctx, channel, data, attrs)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe blocks delivering messages from channel to handler.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := m.backend.Subscribe(ctx, channel, handler); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	return nil
}

func (m *MQ) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.backend.Close()
	})
	return m.closeErr
}
