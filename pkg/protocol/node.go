// Package protocol defines the interfaces and contracts for pluggable node types.
package protocol

import (
	"context"

	"github.com/dukex/convoflow/pkg/models"
)

// NodeFactory describes a node type and provides its default configuration.
type NodeFactory interface {
	// Type returns the node type this factory describes
	Type() models.NodeType

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any

	// Defaults returns a fresh configuration for a newly added node
	Defaults() models.NodeData
}

// Invoker performs the external effect of a node during a run.
type Invoker interface {
	Invoke(ctx context.Context, node *models.Node) (Outcome, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, node *models.Node) (Outcome, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, node *models.Node) (Outcome, error) {
	return f(ctx, node)
}

// Outcome is the result of invoking a node's external effect.
type Outcome struct {
	Success bool
	Detail  string // Human-readable description of what happened
}
