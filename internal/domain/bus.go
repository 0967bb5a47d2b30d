package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// The channel implementation serves single-process deployments; NATS backs
// multi-process ones. Delivery is at-least-once: consumers deduplicate.
type EventBus interface {
	// Publish sends a payload to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. Messages for one
	// subscription are delivered sequentially: a handler finishes
	// before the next message is taken.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents a bus message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Bus topics.
const (
	// TopicPOSEvents is the shared append-only event log all producers
	// write to and the router consumes from.
	TopicPOSEvents = "magpie.pos.events"

	// TopicRealtimePrefix prefixes best-effort push groups
	// (e.g. magpie.realtime.fraud_alerts_T1).
	TopicRealtimePrefix = "magpie.realtime."
)
