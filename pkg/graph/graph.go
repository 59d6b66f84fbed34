package graph

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/google/uuid"
)

// DefaultStartPosition is where the start node of a new flow is placed.
var DefaultStartPosition = models.Position{X: 250, Y: 50}

// duplicateOffset shifts a duplicated node so it does not hide the original.
const duplicateOffset = 40

// NewFlow returns a draft flow holding a single start node.
func NewFlow(name, description, category string, now time.Time) *models.Flow {
	return &models.Flow{
		ID:             uuid.NewString(),
		Name:           name,
		Description:    description,
		Category:       category,
		Status:         models.FlowStatusDraft,
		CurrentVersion: models.InitialVersion,
		Nodes: []*models.Node{
			{
				ID:       uuid.NewString(),
				Type:     models.NodeTypeStart,
				Name:     "Start",
				Position: DefaultStartPosition,
				Data:     &models.StartData{},
			},
		},
		Edges:     []*models.Edge{},
		Versions:  []*models.Version{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DuplicateFlow deep copies a flow under a new id, back in draft and without version history.
func DuplicateFlow(flow *models.Flow, now time.Time) *models.Flow {
	clone := flow.Clone()
	clone.ID = uuid.NewString()
	clone.Name = flow.Name + " (Copy)"
	clone.Status = models.FlowStatusDraft
	clone.CurrentVersion = models.InitialVersion
	clone.Versions = []*models.Version{}
	clone.CreatedAt = now
	clone.UpdatedAt = now

	return clone
}

// AddNode appends a node of the given type carrying data.
func AddNode(flow *models.Flow, nodeType models.NodeType, position models.Position, data models.NodeData) (*models.Node, error) {
	if !nodeType.Valid() {
		return nil, newValidationError("AddNode", "INVALID_NODE_TYPE", ErrInvalidNodeType, "unknown node type %q", nodeType)
	}

	if data == nil {
		empty, err := models.NewNodeData(nodeType)
		if err != nil {
			return nil, newValidationError("AddNode", "INVALID_NODE_TYPE", ErrInvalidNodeType, "%v", err)
		}

		data = empty
	}

	node := &models.Node{
		ID:       uuid.NewString(),
		Type:     nodeType,
		Name:     defaultName(nodeType),
		Position: position,
		Data:     data,
	}

	flow.Nodes = append(flow.Nodes, node)
	markDraft(flow)

	return node, nil
}

// DuplicateNode copies a node's data next to it. The copy has no connections.
func DuplicateNode(flow *models.Flow, nodeID string) (*models.Node, error) {
	original := flow.Node(nodeID)
	if original == nil {
		return nil, newValidationError("DuplicateNode", "NODE_NOT_FOUND", ErrNodeNotFound, "node %s not found", nodeID)
	}

	if original.Type == models.NodeTypeStart {
		return nil, newValidationError("DuplicateNode", "CANNOT_DUPLICATE_START", ErrCannotDuplicateStart, "node %s is the start node", nodeID)
	}

	clone := original.Clone()
	clone.ID = uuid.NewString()
	clone.Name = original.Name + " (Copy)"
	clone.Position = models.Position{
		X: original.Position.X + duplicateOffset,
		Y: original.Position.Y + duplicateOffset,
	}

	flow.Nodes = append(flow.Nodes, clone)
	markDraft(flow)

	return clone, nil
}

// UpdateNodeData shallow-merges partial into the node's data.
// The merged object must still decode into the node type's variant.
func UpdateNodeData(flow *models.Flow, nodeID string, partial map[string]any) (*models.Node, error) {
	node := flow.Node(nodeID)
	if node == nil {
		return nil, newValidationError("UpdateNodeData", "NODE_NOT_FOUND", ErrNodeNotFound, "node %s not found", nodeID)
	}

	merged, err := MergeNodeData(node, partial)
	if err != nil {
		return nil, newValidationError("UpdateNodeData", "INVALID_NODE_DATA", ErrInvalidNodeData, "%v", err)
	}

	node.Data = merged
	markDraft(flow)

	return node, nil
}

// MergeNodeData returns the node's data with partial merged on top, without touching the node.
func MergeNodeData(node *models.Node, partial map[string]any) (models.NodeData, error) {
	current, err := models.NodeDataToMap(node.Data)
	if err != nil {
		return nil, err
	}

	maps.Copy(current, partial)

	raw, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}

	return models.DecodeNodeData(node.Type, raw)
}

// DeleteNode removes a node together with every edge touching it.
func DeleteNode(flow *models.Flow, nodeID string) error {
	node := flow.Node(nodeID)
	if node == nil {
		return newValidationError("DeleteNode", "NODE_NOT_FOUND", ErrNodeNotFound, "node %s not found", nodeID)
	}

	if node.Type == models.NodeTypeStart {
		return newValidationError("DeleteNode", "CANNOT_DELETE_START", ErrCannotDeleteStart, "node %s is the start node", nodeID)
	}

	nodes := make([]*models.Node, 0, len(flow.Nodes)-1)
	for _, n := range flow.Nodes {
		if n.ID != nodeID {
			nodes = append(nodes, n)
		}
	}

	edges := make([]*models.Edge, 0, len(flow.Edges))
	for _, edge := range flow.Edges {
		if edge.Source != nodeID && edge.Target != nodeID {
			edges = append(edges, edge)
		}
	}

	flow.Nodes = nodes
	flow.Edges = edges
	markDraft(flow)

	return nil
}

// MoveNode changes the cosmetic position of a node.
func MoveNode(flow *models.Flow, nodeID string, position models.Position) error {
	node := flow.Node(nodeID)
	if node == nil {
		return newValidationError("MoveNode", "NODE_NOT_FOUND", ErrNodeNotFound, "node %s not found", nodeID)
	}

	node.Position = position
	markDraft(flow)

	return nil
}

// AddEdge connects source to target. For condition sources the handle picks the "Yes" or "No" branch.
func AddEdge(flow *models.Flow, source, target string, handle Handle) (*models.Edge, error) {
	if source == target {
		return nil, newValidationError("AddEdge", "SELF_LOOP", ErrSelfLoop, "node %s cannot connect to itself", source)
	}

	sourceNode := flow.Node(source)
	if sourceNode == nil {
		return nil, newValidationError("AddEdge", "NODE_NOT_FOUND", ErrNodeNotFound, "source node %s not found", source)
	}

	targetNode := flow.Node(target)
	if targetNode == nil {
		return nil, newValidationError("AddEdge", "NODE_NOT_FOUND", ErrNodeNotFound, "target node %s not found", target)
	}

	if targetNode.Type == models.NodeTypeStart || sourceNode.Type == models.NodeTypeEnd {
		return nil, newValidationError("AddEdge", "INVALID_ENDPOINT", ErrInvalidEndpoint, "cannot connect %s to %s", sourceNode.Type, targetNode.Type)
	}

	if flow.HasEdge(source, target) {
		return nil, newValidationError("AddEdge", "DUPLICATE_EDGE", ErrDuplicateEdge, "edge %s -> %s already exists", source, target)
	}

	edge := &models.Edge{
		ID:     uuid.NewString(),
		Source: source,
		Target: target,
	}

	if sourceNode.Type == models.NodeTypeCondition {
		edge.Label = handle.Label()

		for _, existing := range flow.OutgoingEdges(source) {
			if existing.Label == edge.Label {
				return nil, newValidationError("AddEdge", "DUPLICATE_BRANCH", ErrDuplicateBranch, "branch %q of node %s is already connected", edge.Label, source)
			}
		}
	}

	flow.Edges = append(flow.Edges, edge)
	markDraft(flow)

	return edge, nil
}

// DeleteEdge removes an edge, and with it the matching entry of the source's connections.
func DeleteEdge(flow *models.Flow, edgeID string) error {
	edges := make([]*models.Edge, 0, len(flow.Edges))

	found := false

	for _, edge := range flow.Edges {
		if edge.ID == edgeID {
			found = true

			continue
		}

		edges = append(edges, edge)
	}

	if !found {
		return newValidationError("DeleteEdge", "EDGE_NOT_FOUND", ErrEdgeNotFound, "edge %s not found", edgeID)
	}

	flow.Edges = edges
	markDraft(flow)

	return nil
}

func markDraft(flow *models.Flow) {
	flow.Status = models.FlowStatusDraft
}

func defaultName(nodeType models.NodeType) string {
	switch nodeType {
	case models.NodeTypeStart:
		return "Start"
	case models.NodeTypeMessage:
		return "Message"
	case models.NodeTypeCondition:
		return "Condition"
	case models.NodeTypeAPICall:
		return "API Call"
	case models.NodeTypeDTMF:
		return "DTMF Menu"
	case models.NodeTypeAssistant:
		return "AI Assistant"
	case models.NodeTypeTransfer:
		return "Transfer"
	case models.NodeTypeEnd:
		return "End"
	case models.NodeTypeWhatsApp:
		return "WhatsApp"
	case models.NodeTypeSlack:
		return "Slack"
	case models.NodeTypeTelegram:
		return "Telegram"
	case models.NodeTypeTeams:
		return "Teams"
	case models.NodeTypeZendesk:
		return "Zendesk"
	case models.NodeTypeFreshdesk:
		return "Freshdesk"
	case models.NodeTypeSalesforce:
		return "Salesforce"
	case models.NodeTypeHubSpot:
		return "HubSpot"
	case models.NodeTypeZoho:
		return "Zoho"
	default:
		return string(nodeType)
	}
}
