package services

import (
	"context"

	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
)

// AddEdgeRequest connects two nodes. Handle picks the branch when the source is a condition node.
type AddEdgeRequest struct {
	Source string
	Target string
	Handle graph.Handle
}

// Edge handles edge-related business operations.
type Edge struct {
	persistence persistence.Persistence
}

// NewEdge creates a new edge service.
func NewEdge(persistence persistence.Persistence) *Edge {
	return &Edge{
		persistence: persistence,
	}
}

// Add creates an edge. Self loops, edges into start or out of end and duplicates are rejected.
func (e *Edge) Add(ctx context.Context, flowID string, req *AddEdgeRequest) (*models.Edge, error) {
	var edge *models.Edge

	_, err := mutate(ctx, e.persistence, flowID, func(flow *models.Flow) error {
		added, err := graph.AddEdge(flow, req.Source, req.Target, req.Handle)
		edge = added

		return err
	})
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// Delete removes an edge.
func (e *Edge) Delete(ctx context.Context, flowID, edgeID string) error {
	_, err := mutate(ctx, e.persistence, flowID, func(flow *models.Flow) error {
		return graph.DeleteEdge(flow, edgeID)
	})

	return err
}
