package eventbus

import (
	"context"
	"encoding/json"
	"time"
)

// EventConsumer handles messages for a set of routing keys.
type EventConsumer interface {
	// EventTypes returns the routing keys this consumer handles,
	// e.g. ["billing.purchases.updated"].
	EventTypes() []string

	// Handle processes the message.
	Handle(ctx context.Context, msg *Message) error
}

// Message is a message received from the bus. Body is the JSON event.
type Message struct {
	ID            string          `json:"id,omitempty"`
	RoutingKey    string          `json:"routing_key"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
	Body          json.RawMessage `json:"body"`
}

// Decode unmarshals the message body into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

// Consumer defines the interface for consuming messages from a broker.
type Consumer interface {
	// Start begins consuming messages. This is a blocking call.
	Start(ctx context.Context) error

	// RegisterConsumer registers an event consumer.
	RegisterConsumer(consumer EventConsumer)

	// Close closes the consumer connection.
	Close() error
}
