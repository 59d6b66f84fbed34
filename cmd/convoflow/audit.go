package main

import (
	"context"
	"log/slog"

	"github.com/dukex/convoflow/pkg/eventbus"
	"github.com/dukex/convoflow/pkg/events"
)

// subscribeAudit logs every flow and run lifecycle event seen on the bus.
func subscribeAudit(ctx context.Context, bus eventbus.EventSubscriber, logger *slog.Logger) error {
	audited := []events.EventType{
		events.FlowCreatedEvent,
		events.FlowDeletedEvent,
		events.FlowPublishedEvent,
		events.FlowRolledBackEvent,
		events.FlowRestoredEvent,
		events.RunStartedEvent,
		events.RunLoggedEvent,
		events.RunEndedEvent,
	}

	for _, eventType := range audited {
		level := slog.LevelInfo
		if eventType == events.RunLoggedEvent {
			level = slog.LevelDebug
		}

		err := bus.Handle(eventType, func(ctx context.Context, event any) error {
			logger.Log(ctx, level, "Event received", "event_type", eventType, "event", event)

			return nil
		})
		if err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
