package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

type mockConsumer struct {
	eventTypes []string
	messages   []*eventbus.Message
	err        error
}

func (m *mockConsumer) EventTypes() []string {
	return m.eventTypes
}

func (m *mockConsumer) Handle(_ context.Context, msg *eventbus.Message) error {
	m.messages = append(m.messages, msg)
	return m.err
}

func TestConsumerRegistry_Register(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(observability.NopLogger())

	registry.Register(&mockConsumer{
		eventTypes: []string{"billing.purchases.updated", "billing.products.updated"},
	})

	assert.Len(t, registry.GetConsumers("billing.purchases.updated"), 1)
	assert.Len(t, registry.GetConsumers("billing.products.updated"), 1)
	assert.Empty(t, registry.GetConsumers("unknown.event.type"))
	assert.Equal(t, []string{"billing.products.updated", "billing.purchases.updated"}, registry.EventTypes())
	assert.Equal(t, 2, registry.ConsumerCount())
}

func TestConsumerRegistry_Dispatch(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantErr   bool
		wantCalls int
	}{
		{name: "all succeed", errs: []error{nil, nil}, wantCalls: 2},
		{name: "one fails, others still run", errs: []error{errors.New("boom"), nil}, wantErr: true, wantCalls: 2},
		{name: "no consumers", errs: nil, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := eventbus.NewConsumerRegistry(observability.NopLogger())
			var consumers []*mockConsumer
			for _, err := range tt.errs {
				c := &mockConsumer{eventTypes: []string{"billing.purchase.failed"}, err: err}
				consumers = append(consumers, c)
				registry.Register(c)
			}

			err := registry.Dispatch(context.Background(), &eventbus.Message{
				ID:         "m-1",
				RoutingKey: "billing.purchase.failed",
				Body:       []byte(`{"reason":"declined"}`),
			})

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			calls := 0
			for _, c := range consumers {
				calls += len(c.messages)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestMessage_Decode(t *testing.T) {
	msg := &eventbus.Message{Body: []byte(`{"reason":"declined"}`)}

	var body struct {
		Reason string `json:"reason"`
	}
	require.NoError(t, msg.Decode(&body))
	assert.Equal(t, "declined", body.Reason)
}
