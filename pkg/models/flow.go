// Package models defines the core domain models for conversation flow authoring and simulation
package models

import (
	"encoding/json"
	"time"
)

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusDraft     FlowStatus = "draft"     // Editable, has unpublished changes
	FlowStatusPublished FlowStatus = "published" // Matches the latest published version
)

// InitialVersion is the version label of a flow that was never published.
const InitialVersion = "v0.0"

// Flow represents an authored conversation graph with its version history.
type Flow struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"            validate:"required,min=1"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Status         FlowStatus `json:"status"          validate:"required,oneof=draft published"`
	CurrentVersion string     `json:"current_version"`
	Nodes          []*Node    `json:"nodes"`
	Edges          []*Edge    `json:"edges"`
	Versions       []*Version `json:"versions"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Version is an immutable snapshot of a flow taken when it is published.
type Version struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	CreatedAt time.Time  `json:"created_at"`
	Author    string     `json:"author"`
	Status    FlowStatus `json:"status"`
	Nodes     []*Node    `json:"nodes"`
	Edges     []*Edge    `json:"edges"`
	Changelog string     `json:"changelog"`
}

// Node returns the node with the given id, or nil.
func (f *Flow) Node(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// StartNode returns the first node of type start, or nil when the flow has none.
func (f *Flow) StartNode() *Node {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeStart {
			return node
		}
	}

	return nil
}

// Edge returns the edge with the given id, or nil.
func (f *Flow) Edge(id string) *Edge {
	for _, edge := range f.Edges {
		if edge.ID == id {
			return edge
		}
	}

	return nil
}

// OutgoingEdges returns the edges leaving nodeID in insertion order.
func (f *Flow) OutgoingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// IncomingEdges returns the edges entering nodeID in insertion order.
func (f *Flow) IncomingEdges(nodeID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range f.Edges {
		if edge.Target == nodeID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// Connections returns the ordered downstream node ids of nodeID.
// Connections are derived from the edge list, which is the single source of adjacency.
func (f *Flow) Connections(nodeID string) []string {
	targets := make([]string, 0)

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			targets = append(targets, edge.Target)
		}
	}

	return targets
}

// HasEdge reports whether an edge from source to target exists.
func (f *Flow) HasEdge(source, target string) bool {
	for _, edge := range f.Edges {
		if edge.Source == source && edge.Target == target {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the flow, including its version history.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}

	clone := *f
	clone.Nodes = CloneNodes(f.Nodes)
	clone.Edges = CloneEdges(f.Edges)

	clone.Versions = make([]*Version, 0, len(f.Versions))
	for _, version := range f.Versions {
		clone.Versions = append(clone.Versions, version.Clone())
	}

	return &clone
}

// Clone returns a deep copy of the version.
func (v *Version) Clone() *Version {
	clone := *v
	clone.Nodes = CloneNodes(v.Nodes)
	clone.Edges = CloneEdges(v.Edges)

	return &clone
}

// nodeView adds the derived connections list to the serialized node.
type nodeView struct {
	*Node

	Connections []string `json:"connections"`
}

// MarshalJSON serializes the flow, exposing each node's derived connections.
func (f *Flow) MarshalJSON() ([]byte, error) {
	type flowAlias Flow

	nodes := make([]nodeView, 0, len(f.Nodes))
	for _, node := range f.Nodes {
		nodes = append(nodes, nodeView{Node: node, Connections: f.Connections(node.ID)})
	}

	return json.Marshal(struct {
		*flowAlias

		Nodes []nodeView `json:"nodes"`
	}{
		flowAlias: (*flowAlias)(f),
		Nodes:     nodes,
	})
}
