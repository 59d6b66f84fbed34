package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownNodeType is returned when node data is decoded for a type that does not exist.
var ErrUnknownNodeType = errors.New("unknown node type")

// NodeData is the type-specific configuration of a node.
// Each node type has exactly one concrete variant, see DecodeNodeData.
type NodeData interface {
	nodeData()
}

// ConditionOperator is the comparison a condition node applies to user input.
type ConditionOperator string

const (
	OperatorEquals   ConditionOperator = "equals"
	OperatorContains ConditionOperator = "contains"
)

type StartData struct{}

type EndData struct{}

type MessageData struct {
	Content string `json:"content"`
}

type ConditionData struct {
	Variable      string            `json:"variable"`
	Operator      ConditionOperator `json:"operator"`
	Value         string            `json:"value"`
	YesConnection string            `json:"yesConnection,omitempty"`
	NoConnection  string            `json:"noConnection,omitempty"`
}

type APICallData struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// DTMFBranch describes one digit choice offered by a DTMF prompt.
type DTMFBranch struct {
	Digit string `json:"digit"`
	Label string `json:"label"`
}

type DTMFData struct {
	Prompt    string       `json:"prompt"`
	Timeout   int          `json:"timeout"` // seconds
	MaxDigits int          `json:"maxDigits"`
	Branches  []DTMFBranch `json:"branches,omitempty"`
}

type AssistantData struct {
	PersonaID        string `json:"personaId"`
	PersonaName      string `json:"personaName"`
	HandoffCondition string `json:"handoffCondition"`
}

type TransferData struct {
	TransferTo string `json:"transferTo"`
}

// ChannelSendData configures whatsapp, slack, telegram and teams nodes.
type ChannelSendData struct {
	MessageTemplate string `json:"messageTemplate"`
}

// TicketData configures zendesk and freshdesk nodes.
type TicketData struct {
	Action   string `json:"action"`
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
}

// CRMData configures salesforce, hubspot and zoho nodes.
type CRMData struct {
	Action     string `json:"action"`
	ObjectType string `json:"objectType"`
}

func (*StartData) nodeData()       {}
func (*EndData) nodeData()         {}
func (*MessageData) nodeData()     {}
func (*ConditionData) nodeData()   {}
func (*APICallData) nodeData()     {}
func (*DTMFData) nodeData()        {}
func (*AssistantData) nodeData()   {}
func (*TransferData) nodeData()    {}
func (*ChannelSendData) nodeData() {}
func (*TicketData) nodeData()      {}
func (*CRMData) nodeData()         {}

// NewNodeData returns an empty data variant for the node type.
func NewNodeData(nodeType NodeType) (NodeData, error) {
	switch {
	case nodeType == NodeTypeStart:
		return &StartData{}, nil
	case nodeType == NodeTypeEnd:
		return &EndData{}, nil
	case nodeType == NodeTypeMessage:
		return &MessageData{}, nil
	case nodeType == NodeTypeCondition:
		return &ConditionData{}, nil
	case nodeType == NodeTypeAPICall:
		return &APICallData{}, nil
	case nodeType == NodeTypeDTMF:
		return &DTMFData{}, nil
	case nodeType == NodeTypeAssistant:
		return &AssistantData{}, nil
	case nodeType == NodeTypeTransfer:
		return &TransferData{}, nil
	case nodeType.IsChannelSend():
		return &ChannelSendData{}, nil
	case nodeType.IsTicketAction():
		return &TicketData{}, nil
	case nodeType.IsCRMAction():
		return &CRMData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, nodeType)
	}
}

// DecodeNodeData decodes raw JSON into the data variant of the node type.
// Empty or null input yields the zero variant.
func DecodeNodeData(nodeType NodeType, raw []byte) (NodeData, error) {
	data, err := NewNodeData(nodeType)
	if err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return data, nil
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("invalid %s data: %w", nodeType, err)
	}

	return data, nil
}

// NodeDataToMap converts node data to its generic JSON object form.
func NodeDataToMap(data NodeData) (map[string]any, error) {
	result := make(map[string]any)
	if data == nil {
		return result, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// CloneNodeData returns a deep copy of node data.
func CloneNodeData(data NodeData) NodeData {
	switch d := data.(type) {
	case *StartData:
		return &StartData{}
	case *EndData:
		return &EndData{}
	case *MessageData:
		clone := *d

		return &clone
	case *ConditionData:
		clone := *d

		return &clone
	case *APICallData:
		clone := *d

		return &clone
	case *DTMFData:
		clone := *d
		clone.Branches = slices.Clone(d.Branches)

		return &clone
	case *AssistantData:
		clone := *d

		return &clone
	case *TransferData:
		clone := *d

		return &clone
	case *ChannelSendData:
		clone := *d

		return &clone
	case *TicketData:
		clone := *d

		return &clone
	case *CRMData:
		clone := *d

		return &clone
	default:
		return nil
	}
}
