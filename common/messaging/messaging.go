// Package messaging provides abstractions for message broker communication.
// Services publish and subscribe through these interfaces without being
// coupled to a specific broker implementation.
package messaging

import (
	"context"
	"time"
)

// Message represents a message received from or sent to a message broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// MessageHandler processes a received message.
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription represents an active subscription to a subject.
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher publishes messages to subjects.
type Publisher interface {
	// Publish sends a message to the specified subject (fire-and-forget).
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishJSON marshals v and publishes it.
	PublishJSON(ctx context.Context, subject string, v any) error

	Close() error
}

// Subscriber subscribes to messages on subjects.
type Subscriber interface {
	// Subscribe creates a fan-out subscription. Wildcards follow broker rules.
	Subscribe(subject string, handler MessageHandler) (Subscription, error)

	Close() error
}

// Client combines Publisher and Subscriber.
type Client interface {
	Publisher
	Subscriber

	// Drain gracefully closes the connection, allowing in-flight messages to complete.
	Drain() error

	// IsConnected returns true if the client is connected to the broker.
	IsConnected() bool
}
