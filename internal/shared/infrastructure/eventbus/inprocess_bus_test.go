package eventbus_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tally/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

func TestInProcessEventBus_Publish(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(observability.NopLogger())
	consumer := &mockConsumer{eventTypes: []string{"billing.purchases.updated"}}
	bus.RegisterConsumer(consumer)

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	err := bus.Publish(ctx, "billing.purchases.updated", []byte(`{"new_purchase":true}`))

	require.NoError(t, err)
	require.Len(t, consumer.messages, 1)
	msg := consumer.messages[0]
	assert.Equal(t, "billing.purchases.updated", msg.RoutingKey)
	assert.Equal(t, "corr-1", msg.CorrelationID)
	assert.NotEmpty(t, msg.ID)
	assert.JSONEq(t, `{"new_purchase":true}`, string(msg.Body))
}

func TestInProcessEventBus_MultipleConsumers(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(observability.NopLogger())
	consumer1 := &mockConsumer{eventTypes: []string{"billing.products.updated"}}
	consumer2 := &mockConsumer{eventTypes: []string{"billing.products.updated"}}
	bus.RegisterConsumer(consumer1)
	bus.RegisterConsumer(consumer2)

	require.NoError(t, bus.Publish(context.Background(), "billing.products.updated", []byte(`{}`)))

	assert.Len(t, consumer1.messages, 1)
	assert.Len(t, consumer2.messages, 1)
}

func TestInProcessEventBus_SwallowsFailures(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		err      error
		received int
	}{
		{name: "no consumers", payload: []byte(`{}`)},
		{name: "consumer error", payload: []byte(`{}`), err: errors.New("consumer error"), received: 1},
		{name: "invalid json", payload: []byte("invalid json"), received: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := eventbus.NewInProcessEventBus(observability.NopLogger())
			consumer := &mockConsumer{eventTypes: []string{"billing.purchase.canceled"}, err: tt.err}
			if tt.name != "no consumers" {
				bus.RegisterConsumer(consumer)
			}

			err := bus.Publish(context.Background(), "billing.purchase.canceled", tt.payload)

			require.NoError(t, err)
			assert.Len(t, consumer.messages, tt.received)
		})
	}
}

type republishingConsumer struct {
	bus  *eventbus.InProcessEventBus
	seen []string
}

func (c *republishingConsumer) EventTypes() []string {
	return []string{"billing.purchases.updated", "licence.status_changed"}
}

func (c *republishingConsumer) Handle(ctx context.Context, msg *eventbus.Message) error {
	c.seen = append(c.seen, msg.RoutingKey)
	if msg.RoutingKey == "billing.purchases.updated" {
		return c.bus.Publish(ctx, "licence.status_changed", []byte(`{}`))
	}
	return nil
}

func TestInProcessEventBus_PublishFromHandler(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(observability.NopLogger())
	consumer := &republishingConsumer{bus: bus}
	bus.RegisterConsumer(consumer)

	require.NoError(t, bus.Publish(context.Background(), "billing.purchases.updated", []byte(`{}`)))

	assert.Equal(t, []string{"billing.purchases.updated", "licence.status_changed"}, consumer.seen)
}

func TestInProcessEventBus_StartAndClose(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(observability.NopLogger())
	assert.NotNil(t, bus.Registry())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bus.Start(ctx), context.DeadlineExceeded)
	assert.NoError(t, bus.Close())
}

func TestMeteredPublisher(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	p := eventbus.NewMeteredPublisher(eventbus.NewNoopPublisher(nil), metrics)

	require.NoError(t, p.Publish(context.Background(), "licence.status_changed", []byte(`{}`)))
	require.NoError(t, p.Close())

	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricEventsPublished,
		observability.T("routing_key", "licence.status_changed")))
}

func TestNoopPublisher(t *testing.T) {
	p := eventbus.NewNoopPublisher(nil)
	assert.NoError(t, p.Publish(context.Background(), "licence.status_changed", []byte(`{}`)))
	assert.NoError(t, p.Close())
}
