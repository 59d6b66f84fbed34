// Package registry provides node factory registration for the registry system.
package registry

import (
	"log/slog"

	"github.com/dukex/convoflow/pkg/nodes"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes() error {
	for _, factory := range nodes.Builtin() {
		if err := r.RegisterNode(factory); err != nil {
			return err
		}
	}

	return nil
}

// NewDefaultRegistry returns a registry holding every built-in node type.
func NewDefaultRegistry(log *slog.Logger) (*Registry, error) {
	reg := NewRegistry(log)
	if err := reg.RegisterDefaultNodes(); err != nil {
		return nil, err
	}

	return reg, nil
}
