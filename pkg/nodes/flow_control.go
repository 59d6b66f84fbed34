package nodes

import (
	"github.com/dukex/convoflow/pkg/models"
)

// StartFactory describes the entry point of every flow.
type StartFactory struct{ base }

func NewStartFactory() *StartFactory {
	return &StartFactory{base{models.NodeTypeStart, "Start", "Entry point of the conversation. Every flow has exactly one."}}
}

func (f *StartFactory) Schema() map[string]any {
	return objectSchema(map[string]any{})
}

func (f *StartFactory) Defaults() models.NodeData {
	return &models.StartData{}
}

// EndFactory describes a terminal node.
type EndFactory struct{ base }

func NewEndFactory() *EndFactory {
	return &EndFactory{base{models.NodeTypeEnd, "End", "Ends the conversation. Voice calls are hung up."}}
}

func (f *EndFactory) Schema() map[string]any {
	return objectSchema(map[string]any{})
}

func (f *EndFactory) Defaults() models.NodeData {
	return &models.EndData{}
}

// MessageFactory describes a bot utterance.
type MessageFactory struct{ base }

func NewMessageFactory() *MessageFactory {
	return &MessageFactory{base{models.NodeTypeMessage, "Message", "Sends a message in chat or speaks it on a call."}}
}

func (f *MessageFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"content": stringProperty("Text sent to the user"),
	}, "content")
}

func (f *MessageFactory) Defaults() models.NodeData {
	return &models.MessageData{Content: "Hello! How can I help you today?"}
}

// ConditionFactory describes a yes/no branch on user input.
type ConditionFactory struct{ base }

func NewConditionFactory() *ConditionFactory {
	return &ConditionFactory{base{models.NodeTypeCondition, "Condition", "Waits for user input and follows the Yes or No branch."}}
}

func (f *ConditionFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"variable": stringProperty("Name the user input is stored under"),
		"operator": map[string]any{
			"type":        "string",
			"description": "Comparison applied to the input, case-insensitively",
			"enum":        []string{string(models.OperatorEquals), string(models.OperatorContains)},
		},
		"value":         stringProperty("Value compared against the input"),
		"yesConnection": stringProperty("Fallback target when no Yes edge exists"),
		"noConnection":  stringProperty("Fallback target when no No edge exists"),
	}, "operator")
}

func (f *ConditionFactory) Defaults() models.NodeData {
	return &models.ConditionData{Variable: "", Operator: models.OperatorEquals, Value: ""}
}

// DTMFFactory describes a touch-tone menu.
type DTMFFactory struct{ base }

func NewDTMFFactory() *DTMFFactory {
	return &DTMFFactory{base{models.NodeTypeDTMF, "DTMF Menu", "Plays a prompt and collects keypad digits."}}
}

func (f *DTMFFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"prompt":    stringProperty("Prompt spoken or displayed to the caller"),
		"timeout":   map[string]any{"type": "integer", "minimum": 1, "description": "Seconds to wait for input"},
		"maxDigits": map[string]any{"type": "integer", "minimum": 1, "maximum": 20, "description": "Maximum digits collected"},
		"branches": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"digit": map[string]any{"type": "string", "pattern": "^[0-9*#]$"},
				"label": map[string]any{"type": "string"},
			}, "digit"),
		},
	}, "prompt", "timeout", "maxDigits")
}

func (f *DTMFFactory) Defaults() models.NodeData {
	return &models.DTMFData{
		Prompt:    "Press 1 for sales, 2 for support, or 0 for an operator.",
		Timeout:   10,
		MaxDigits: 1,
		Branches: []models.DTMFBranch{
			{Digit: "1", Label: "Sales"},
			{Digit: "2", Label: "Support"},
			{Digit: "0", Label: "Operator"},
		},
	}
}

// TransferFactory describes a handoff to a human or another queue.
type TransferFactory struct{ base }

func NewTransferFactory() *TransferFactory {
	return &TransferFactory{base{models.NodeTypeTransfer, "Transfer", "Transfers the conversation to an agent or queue."}}
}

func (f *TransferFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"transferTo": stringProperty("Agent, team or queue receiving the conversation"),
	}, "transferTo")
}

func (f *TransferFactory) Defaults() models.NodeData {
	return &models.TransferData{TransferTo: "Support queue"}
}
