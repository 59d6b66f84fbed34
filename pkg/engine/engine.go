// Package engine interprets a flow as a simulated chat or voice conversation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/convoflow/pkg/eventbus"
	"github.com/dukex/convoflow/pkg/events"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/otelhelper"
	"github.com/dukex/convoflow/pkg/protocol"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Pacer inserts the artificial delay before a node's effect.
type Pacer interface {
	Pause(ctx context.Context, node *models.Node, channel models.Channel) error
}

// Engine starts runs. It holds no per-run state and is safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	invokers  map[models.NodeType]protocol.Invoker
	pacer     Pacer
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	now       func() time.Time
	maxSteps  int
}

// DefaultMaxSteps bounds how many nodes one start or submission may dispatch.
const DefaultMaxSteps = 10_000

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithInvokers sets the capability used for each effectful node type.
// Node types without an invoker succeed without doing anything.
func WithInvokers(invokers map[models.NodeType]protocol.Invoker) Option {
	return func(e *Engine) {
		for nodeType, invoker := range invokers {
			e.invokers[nodeType] = invoker
		}
	}
}

func WithPacer(pacer Pacer) Option {
	return func(e *Engine) {
		e.pacer = pacer
	}
}

// WithPublisher fans run events out to an event bus.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMaxSteps caps the nodes dispatched between two suspensions. Zero or less disables the cap.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		invokers: make(map[models.NodeType]protocol.Invoker),
		tracer:   otelhelper.NoopTracer(),
		now:      time.Now,
		maxSteps: DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "engine")

	return e
}

// NewRun snapshots flow into an idle run. Later edits to flow do not affect the run.
func (e *Engine) NewRun(flow *models.Flow, channel models.Channel) (*Run, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChannel, channel)
	}

	snapshot := flow.Clone()

	if snapshot.StartNode() == nil {
		return nil, fmt.Errorf("flow %s: %w", flow.ID, ErrNoStartNode)
	}

	return newRun(e, uuid.NewString(), snapshot, channel), nil
}

// Start creates a run and drives it until the first suspension or termination.
func (e *Engine) Start(ctx context.Context, flow *models.Flow, channel models.Channel) (*Run, error) {
	run, err := e.NewRun(flow, channel)
	if err != nil {
		return nil, err
	}

	if err := run.Start(ctx); err != nil {
		return nil, err
	}

	return run, nil
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(context.WithoutCancel(ctx), key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish run event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, flowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, flowID)
	base.Timestamp = e.now().UTC()

	return base
}
