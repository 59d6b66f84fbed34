// Package events defines event types and structures for flow and run lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic is the watermill topic every event is published on.
const Topic = "convoflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Flow lifecycle events.
	FlowCreatedEvent    EventType = "flow.created"
	FlowDeletedEvent    EventType = "flow.deleted"
	FlowPublishedEvent  EventType = "flow.published"
	FlowRolledBackEvent EventType = "flow.rolled_back"
	FlowRestoredEvent   EventType = "flow.restored"

	// Simulated run events.
	RunStartedEvent EventType = "run.started"
	RunLoggedEvent  EventType = "run.logged"
	RunEndedEvent   EventType = "run.ended"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowID    string         `json:"flow_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type FlowCreated struct {
	BaseEvent

	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

func (f FlowCreated) GetType() EventType {
	return FlowCreatedEvent
}

type FlowDeleted struct {
	BaseEvent
}

func (f FlowDeleted) GetType() EventType {
	return FlowDeletedEvent
}

type FlowPublished struct {
	BaseEvent

	VersionID string `json:"version_id"`
	Label     string `json:"label"`
	Author    string `json:"author,omitempty"`
	Changelog string `json:"changelog,omitempty"`
}

func (f FlowPublished) GetType() EventType {
	return FlowPublishedEvent
}

// FlowRolledBack is published when the current version label moves back without restoring content.
type FlowRolledBack struct {
	BaseEvent

	VersionID string `json:"version_id"`
	Label     string `json:"label"`
}

func (f FlowRolledBack) GetType() EventType {
	return FlowRolledBackEvent
}

type FlowRestored struct {
	BaseEvent

	VersionID string `json:"version_id"`
	Label     string `json:"label"`
}

func (f FlowRestored) GetType() EventType {
	return FlowRestoredEvent
}

type RunStarted struct {
	BaseEvent

	RunID   string         `json:"run_id"`
	Channel models.Channel `json:"channel"`
}

func (r RunStarted) GetType() EventType {
	return RunStartedEvent
}

// RunLogged carries one entry of a run's event log.
type RunLogged struct {
	BaseEvent

	RunID string          `json:"run_id"`
	Entry models.LogEvent `json:"entry"`
}

func (r RunLogged) GetType() EventType {
	return RunLoggedEvent
}

type RunEnded struct {
	BaseEvent

	RunID  string           `json:"run_id"`
	Result models.RunResult `json:"result"`
	Stats  models.RunStats  `json:"stats"`
}

func (r RunEnded) GetType() EventType {
	return RunEndedEvent
}

func NewBaseEvent(eventType EventType, flowID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowID:    flowID,
		Metadata:  make(map[string]any),
	}
}
