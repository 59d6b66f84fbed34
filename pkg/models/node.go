// Package models defines the graph primitives of a conversation flow.
package models

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies what a node does when the flow runs.
type NodeType string

// Built-in node types.
const (
	NodeTypeStart     NodeType = "start"
	NodeTypeMessage   NodeType = "message"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAPICall   NodeType = "api_call"
	NodeTypeDTMF      NodeType = "dtmf"
	NodeTypeAssistant NodeType = "assistant"
	NodeTypeTransfer  NodeType = "transfer"
	NodeTypeEnd       NodeType = "end"

	// Channel-send nodes.
	NodeTypeWhatsApp NodeType = "whatsapp"
	NodeTypeSlack    NodeType = "slack"
	NodeTypeTelegram NodeType = "telegram"
	NodeTypeTeams    NodeType = "teams"

	// Ticket-action nodes.
	NodeTypeZendesk   NodeType = "zendesk"
	NodeTypeFreshdesk NodeType = "freshdesk"

	// CRM-action nodes.
	NodeTypeSalesforce NodeType = "salesforce"
	NodeTypeHubSpot    NodeType = "hubspot"
	NodeTypeZoho       NodeType = "zoho"
)

// NodeTypes lists every built-in node type in palette order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeMessage,
	NodeTypeCondition,
	NodeTypeAPICall,
	NodeTypeDTMF,
	NodeTypeAssistant,
	NodeTypeTransfer,
	NodeTypeWhatsApp,
	NodeTypeSlack,
	NodeTypeTelegram,
	NodeTypeTeams,
	NodeTypeZendesk,
	NodeTypeFreshdesk,
	NodeTypeSalesforce,
	NodeTypeHubSpot,
	NodeTypeZoho,
	NodeTypeEnd,
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}

	return false
}

// IsChannelSend reports whether t sends a message over an external channel.
func (t NodeType) IsChannelSend() bool {
	switch t {
	case NodeTypeWhatsApp, NodeTypeSlack, NodeTypeTelegram, NodeTypeTeams:
		return true
	default:
		return false
	}
}

// IsTicketAction reports whether t acts on a helpdesk ticket.
func (t NodeType) IsTicketAction() bool {
	return t == NodeTypeZendesk || t == NodeTypeFreshdesk
}

// IsCRMAction reports whether t acts on a CRM record.
func (t NodeType) IsCRMAction() bool {
	switch t {
	case NodeTypeSalesforce, NodeTypeHubSpot, NodeTypeZoho:
		return true
	default:
		return false
	}
}

// Position is the cosmetic canvas location of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Edge is a directed relation between two nodes.
type Edge struct {
	ID     string    `json:"id"`
	Source string    `json:"source"          validate:"required"`
	Target string    `json:"target"          validate:"required"`
	Label  EdgeLabel `json:"label,omitempty"`
}

// EdgeLabel marks which branch of a condition node an edge belongs to.
type EdgeLabel string

const (
	EdgeLabelNone EdgeLabel = ""
	EdgeLabelYes  EdgeLabel = "Yes"
	EdgeLabelNo   EdgeLabel = "No"
)

// Node is a typed step in a flow.
type Node struct {
	ID       string   `json:"id"       validate:"required"`
	Type     NodeType `json:"type"     validate:"required"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// UnmarshalJSON decodes the node, choosing the data variant from the node type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Type     NodeType        `json:"type"`
		Name     string          `json:"name"`
		Position Position        `json:"position"`
		Data     json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := DecodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("node %s: %w", raw.ID, err)
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Name = raw.Name
	n.Position = raw.Position
	n.Data = data

	return nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	clone := *n
	clone.Data = CloneNodeData(n.Data)

	return &clone
}

// CloneNodes deep copies a node slice.
func CloneNodes(nodes []*Node) []*Node {
	clones := make([]*Node, 0, len(nodes))
	for _, node := range nodes {
		clones = append(clones, node.Clone())
	}

	return clones
}

// CloneEdges deep copies an edge slice.
func CloneEdges(edges []*Edge) []*Edge {
	clones := make([]*Edge, 0, len(edges))

	for _, edge := range edges {
		clone := *edge
		clones = append(clones, &clone)
	}

	return clones
}
