// Package registry keeps the catalogue of node types available to flows.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/protocol"
	"github.com/dukex/convoflow/pkg/template"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrNodeTypeNotRegistered is returned for node types without a factory.
	ErrNodeTypeNotRegistered = errors.New("node type not registered")

	// ErrInvalidNodeData is returned when node data does not satisfy the type's schema.
	ErrInvalidNodeData = errors.New("node data does not match schema")
)

// NodeTypeInfo is the public description of a registered node type.
type NodeTypeInfo struct {
	Type        models.NodeType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`
	Defaults    models.NodeData `json:"defaults"`
}

type entry struct {
	factory protocol.NodeFactory
	schema  *gojsonschema.Schema
}

type Registry struct {
	logger *slog.Logger
	mu     sync.RWMutex
	order  []models.NodeType
	nodes  map[models.NodeType]entry
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log,
		nodes:  make(map[models.NodeType]entry),
	}
}

// RegisterNode adds or replaces a node factory. Its schema is compiled once here.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(factory.Schema()))
	if err != nil {
		return fmt.Errorf("invalid schema for node type %s: %w", factory.Type(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[factory.Type()]; !exists {
		r.order = append(r.order, factory.Type())
	}

	r.nodes[factory.Type()] = entry{factory: factory, schema: schema}

	r.logger.Debug("Registered node type", "type", factory.Type())

	return nil
}

// Factory returns the factory registered for nodeType.
func (r *Registry) Factory(nodeType models.NodeType) (protocol.NodeFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.nodes[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeTypeNotRegistered, nodeType)
	}

	return e.factory, nil
}

// Defaults returns a fresh default configuration for nodeType.
func (r *Registry) Defaults(nodeType models.NodeType) (models.NodeData, error) {
	factory, err := r.Factory(nodeType)
	if err != nil {
		return nil, err
	}

	return factory.Defaults(), nil
}

// ValidateData checks node data against the schema of nodeType.
func (r *Registry) ValidateData(nodeType models.NodeType, data models.NodeData) error {
	r.mu.RLock()
	e, ok := r.nodes[nodeType]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeTypeNotRegistered, nodeType)
	}

	document, err := models.NodeDataToMap(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s data: %w", nodeType, err)
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate %s data: %w", nodeType, err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			problems = append(problems, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidNodeData, strings.Join(problems, "; "))
	}

	for _, text := range templatedText(data) {
		if err := template.Validate(text); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidNodeData, err)
		}
	}

	return nil
}

// templatedText lists the fields of data rendered against run variables.
func templatedText(data models.NodeData) []string {
	switch d := data.(type) {
	case *models.MessageData:
		return []string{d.Content}
	case *models.DTMFData:
		return []string{d.Prompt}
	case *models.ChannelSendData:
		return []string{d.MessageTemplate}
	default:
		return nil
	}
}

// ValidateFlow checks every node of a flow against its schema.
func (r *Registry) ValidateFlow(flow *models.Flow) error {
	var errs []error

	for _, node := range flow.Nodes {
		if err := r.ValidateData(node.Type, node.Data); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", node.ID, err))
		}
	}

	return errors.Join(errs...)
}

// Catalog lists the registered node types in registration order.
func (r *Registry) Catalog() []NodeTypeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]NodeTypeInfo, 0, len(r.order))
	for _, nodeType := range r.order {
		factory := r.nodes[nodeType].factory
		infos = append(infos, NodeTypeInfo{
			Type:        factory.Type(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
			Defaults:    factory.Defaults(),
		})
	}

	return infos
}

// HealthCheck reports whether every built-in node type is registered.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	missing := make([]string, 0)

	for _, nodeType := range models.NodeTypes {
		if _, ok := r.nodes[nodeType]; !ok {
			missing = append(missing, string(nodeType))
		}
	}

	if len(missing) > 0 {
		return "Missing node types: " + strings.Join(missing, ", "), false
	}

	return "Registry is healthy", true
}
