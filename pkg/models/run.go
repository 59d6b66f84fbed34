package models

import "time"

// Channel selects chat or voice semantics for a simulated run.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelVoice Channel = "voice"
)

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return c == ChannelChat || c == ChannelVoice
}

// RunState is the interpreter state of a run.
type RunState string

const (
	RunStateIdle            RunState = "idle"
	RunStateRunning         RunState = "running"
	RunStateWaitingForInput RunState = "waiting_for_input"
	RunStateWaitingForDTMF  RunState = "waiting_for_dtmf"
	RunStateEnded           RunState = "ended"
)

// RunResult qualifies how an ended run terminated.
type RunResult string

const (
	RunResultSuccess RunResult = "success"
	RunResultError   RunResult = "error"
)

// Outcome is the post-run badge shown to the operator.
type Outcome string

const (
	OutcomePassed              Outcome = "passed"
	OutcomeCompletedWithErrors Outcome = "completed_with_errors"
)

// EventCategory classifies who or what produced a log event.
type EventCategory string

const (
	EventCategoryBot    EventCategory = "bot"
	EventCategoryUser   EventCategory = "user"
	EventCategorySystem EventCategory = "system"
	EventCategoryVoice  EventCategory = "voice"
	EventCategoryDTMF   EventCategory = "dtmf"
	EventCategoryError  EventCategory = "error"
)

// EventStatus is the optional progress marker of a log event.
type EventStatus string

const (
	EventStatusSuccess    EventStatus = "success"
	EventStatusError      EventStatus = "error"
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
)

// LogEvent is one entry of a run's ordered event log.
type LogEvent struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Content   string        `json:"content"`
	NodeID    string        `json:"node_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Status    EventStatus   `json:"status,omitempty"`
}

// RunStats are the running totals of a run.
type RunStats struct {
	NodesVisited int           `json:"nodes_visited"`
	TotalNodes   int           `json:"total_nodes"`
	APICalls     int           `json:"api_calls"`
	Errors       int           `json:"errors"`
	ElapsedTime  time.Duration `json:"elapsed_time"`
	Outcome      Outcome       `json:"outcome"`
}

// CallStatus tracks the simulated phone call of a voice run.
type CallStatus struct {
	Active    bool          `json:"active"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunSnapshot is a point-in-time copy of a run, safe to hand to other goroutines.
type RunSnapshot struct {
	ID            string         `json:"id"`
	FlowID        string         `json:"flow_id"`
	Channel       Channel        `json:"channel"`
	State         RunState       `json:"state"`
	Result        RunResult      `json:"result,omitempty"`
	CurrentNodeID string         `json:"current_node_id,omitempty"`
	Events        []LogEvent     `json:"events"`
	Stats         RunStats       `json:"stats"`
	Call          *CallStatus    `json:"call,omitempty"`
	Variables     map[string]any `json:"variables"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
}
