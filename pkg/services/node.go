// Package services provides node and edge management functionality for flows.
package services

import (
	"context"

	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
	"github.com/dukex/convoflow/pkg/registry"
)

// AddNodeRequest represents the request to add a node to a flow.
type AddNodeRequest struct {
	Type     models.NodeType
	Position models.Position
	Name     string
	Data     map[string]any // merged over the type's defaults
}

// Node handles node-related business operations.
type Node struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

// NewNode creates a new node service.
func NewNode(persistence persistence.Persistence, registry *registry.Registry) *Node {
	return &Node{
		persistence: persistence,
		registry:    registry,
	}
}

// Add appends a node configured with its type's defaults.
func (n *Node) Add(ctx context.Context, flowID string, req *AddNodeRequest) (*models.Node, error) {
	var node *models.Node

	_, err := mutate(ctx, n.persistence, flowID, func(flow *models.Flow) error {
		var data models.NodeData

		if req.Type.Valid() && n.registry != nil {
			defaults, err := n.registry.Defaults(req.Type)
			if err != nil {
				return err
			}

			data = defaults
		}

		added, err := graph.AddNode(flow, req.Type, req.Position, data)
		if err != nil {
			return err
		}

		if req.Name != "" {
			added.Name = req.Name
		}

		if len(req.Data) > 0 {
			if added, err = n.updateData(flow, added.ID, req.Data); err != nil {
				return err
			}
		}

		node = added

		return nil
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// Duplicate copies a node next to the original. The start node cannot be duplicated.
func (n *Node) Duplicate(ctx context.Context, flowID, nodeID string) (*models.Node, error) {
	var node *models.Node

	_, err := mutate(ctx, n.persistence, flowID, func(flow *models.Flow) error {
		clone, err := graph.DuplicateNode(flow, nodeID)
		node = clone

		return err
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// UpdateData shallow-merges partial into the node's data and checks the result against the type's schema.
func (n *Node) UpdateData(ctx context.Context, flowID, nodeID string, partial map[string]any) (*models.Node, error) {
	var node *models.Node

	_, err := mutate(ctx, n.persistence, flowID, func(flow *models.Flow) error {
		updated, err := n.updateData(flow, nodeID, partial)
		node = updated

		return err
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// Delete removes a node together with its incident edges.
func (n *Node) Delete(ctx context.Context, flowID, nodeID string) error {
	_, err := mutate(ctx, n.persistence, flowID, func(flow *models.Flow) error {
		return graph.DeleteNode(flow, nodeID)
	})

	return err
}

// Move changes a node's canvas position.
func (n *Node) Move(ctx context.Context, flowID, nodeID string, position models.Position) (*models.Node, error) {
	flow, err := mutate(ctx, n.persistence, flowID, func(flow *models.Flow) error {
		return graph.MoveNode(flow, nodeID, position)
	})
	if err != nil {
		return nil, err
	}

	return flow.Node(nodeID), nil
}

// updateData checks the merged data against the schema before graph.UpdateNodeData applies it.
func (n *Node) updateData(flow *models.Flow, nodeID string, partial map[string]any) (*models.Node, error) {
	if node := flow.Node(nodeID); node != nil && n.registry != nil {
		if merged, err := graph.MergeNodeData(node, partial); err == nil {
			if err := n.registry.ValidateData(node.Type, merged); err != nil {
				return nil, NewValidationError("UpdateData", "INVALID_NODE_DATA", err.Error(), err)
			}
		}
	}

	return graph.UpdateNodeData(flow, nodeID, partial)
}
