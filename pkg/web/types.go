// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/dukex/convoflow/pkg/models"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=200"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// PositionRequest is a canvas location.
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CreateNodeRequest represents the request body for adding a node. Data is merged over the type's defaults.
type CreateNodeRequest struct {
	Type     string          `json:"type"     validate:"required"`
	Name     string          `json:"name"`
	Position PositionRequest `json:"position"`
	Data     map[string]any  `json:"data"`
}

// UpdateNodeRequest carries a partial node configuration to merge into the existing one.
type UpdateNodeRequest struct {
	Data map[string]any `json:"data" validate:"required"`
}

// CreateEdgeRequest connects two nodes. Handle selects the branch of a condition node.
type CreateEdgeRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Handle string `json:"handle" validate:"omitempty,oneof=yes no"`
}

type PublishFlowRequest struct {
	Changelog string `json:"changelog" validate:"max=2000"`
	Author    string `json:"author"`
}

// StartRunRequest starts a simulated run of the stored flow.
type StartRunRequest struct {
	Channel string `json:"channel" validate:"required,oneof=chat voice"`
}

type SubmitInputRequest struct {
	Text string `json:"text" validate:"required"`
}

type SubmitDigitsRequest struct {
	Digits string `json:"digits" validate:"required,max=20"`
}

// FlowSummary is the list view of a flow, without its graph.
type FlowSummary struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Category       string            `json:"category"`
	Status         models.FlowStatus `json:"status"`
	CurrentVersion string            `json:"current_version"`
	NodeCount      int               `json:"node_count"`
	VersionCount   int               `json:"version_count"`
}

// TransformFlowSummary builds the list view of a flow.
func TransformFlowSummary(flow *models.Flow) FlowSummary {
	return FlowSummary{
		ID:             flow.ID,
		Name:           flow.Name,
		Description:    flow.Description,
		Category:       flow.Category,
		Status:         flow.Status,
		CurrentVersion: flow.CurrentVersion,
		NodeCount:      len(flow.Nodes),
		VersionCount:   len(flow.Versions),
	}
}
