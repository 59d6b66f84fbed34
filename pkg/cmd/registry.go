// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/convoflow/pkg/engine"
	"github.com/dukex/convoflow/pkg/eventbus"
	"github.com/dukex/convoflow/pkg/otelhelper"
	"github.com/dukex/convoflow/pkg/registry"
	"github.com/dukex/convoflow/pkg/simulate"
	"go.opentelemetry.io/otel/trace"
)

// NewRegistry returns a registry holding every built-in node type.
func NewRegistry(logger *slog.Logger) (*registry.Registry, error) {
	reg, err := registry.NewDefaultRegistry(logger.With("module", "registry"))
	if err != nil {
		return nil, fmt.Errorf("failed to register node types: %w", err)
	}

	return reg, nil
}

// EngineConfig selects how simulated runs behave.
type EngineConfig struct {
	APIFailureRate float64
	Latency        bool
	Seed           uint64 // 0 picks a random seed
}

// NewEngine builds an engine with the simulated capabilities.
func NewEngine(config EngineConfig, logger *slog.Logger, publisher eventbus.EventPublisher, tracer trace.Tracer) *engine.Engine {
	source := simulate.NewSource(nil)
	if config.Seed != 0 {
		source = simulate.NewSeededSource(config.Seed)
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithInvokers(simulate.Invokers(source, config.APIFailureRate)),
	}

	if config.Latency {
		opts = append(opts, engine.WithPacer(simulate.DefaultLatency()))
	}

	if publisher != nil {
		opts = append(opts, engine.WithPublisher(publisher))
	}

	if tracer != nil {
		opts = append(opts, engine.WithTracer(tracer))
	}

	return engine.New(opts...)
}

// NewTracer exports spans over OTLP HTTP when enabled. The shutdown function is never nil.
// nolint:ireturn
func NewTracer(ctx context.Context, enabled bool) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}
