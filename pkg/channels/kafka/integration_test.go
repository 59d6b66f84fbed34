//go:build integration

package kafka_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/convoflow/pkg/channels/kafka"
	"github.com/dukex/convoflow/pkg/eventbus"
	"github.com/dukex/convoflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaTc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

var brokers []string

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := kafkaTc.Run(ctx, "confluentinc/confluent-local:7.7.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	if err != nil {
		panic("Failed to start Kafka container: " + err.Error())
	}

	brokers, err = container.Brokers(ctx)
	if err != nil {
		panic("Failed to get Kafka brokers: " + err.Error())
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		panic("Failed to terminate Kafka container: " + err.Error())
	}

	os.Exit(code)
}

func TestKafkaEventBus_PublishSubscribe(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), brokers, "convoflow-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *events.FlowPublished, 1)
	require.NoError(t, bus.Handle(events.FlowPublishedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.FlowPublished)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "flow-1", events.FlowPublished{
		BaseEvent: events.NewBaseEvent(events.FlowPublishedEvent, "flow-1"),
		VersionID: "version-1",
		Label:     "v1.0",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "flow-1", event.FlowID)
		assert.Equal(t, "v1.0", event.Label)
	case <-time.After(30 * time.Second):
		t.Fatal("flow.published event not received")
	}
}
