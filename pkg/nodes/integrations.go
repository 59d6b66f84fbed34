package nodes

import (
	"github.com/dukex/convoflow/pkg/models"
)

// APICallFactory describes an outbound HTTP call.
type APICallFactory struct{ base }

func NewAPICallFactory() *APICallFactory {
	return &APICallFactory{base{models.NodeTypeAPICall, "API Call", "Calls an external HTTP endpoint."}}
}

func (f *APICallFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"method": map[string]any{
			"type": "string",
			"enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		},
		"url": map[string]any{"type": "string", "minLength": 1},
	}, "method", "url")
}

func (f *APICallFactory) Defaults() models.NodeData {
	return &models.APICallData{Method: "GET", URL: "https://api.example.com/endpoint"}
}

// AssistantFactory describes a handoff to an AI assistant persona.
type AssistantFactory struct{ base }

func NewAssistantFactory() *AssistantFactory {
	return &AssistantFactory{base{models.NodeTypeAssistant, "AI Assistant", "Lets an AI assistant persona answer the user."}}
}

func (f *AssistantFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"personaId":        stringProperty("Identifier of the assistant persona"),
		"personaName":      stringProperty("Display name of the assistant persona"),
		"handoffCondition": stringProperty("When the assistant hands the conversation back"),
	})
}

func (f *AssistantFactory) Defaults() models.NodeData {
	return &models.AssistantData{PersonaName: "Support Assistant", HandoffCondition: "on_request"}
}

// ChannelSendFactory describes sending a templated message over an external channel.
type ChannelSendFactory struct {
	base

	template string
}

func NewChannelSendFactory(nodeType models.NodeType, name, template string) *ChannelSendFactory {
	return &ChannelSendFactory{
		base:     base{nodeType, name, "Sends a templated message through " + name + "."},
		template: template,
	}
}

func (f *ChannelSendFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"messageTemplate": map[string]any{"type": "string", "minLength": 1},
	}, "messageTemplate")
}

func (f *ChannelSendFactory) Defaults() models.NodeData {
	return &models.ChannelSendData{MessageTemplate: f.template}
}

// TicketFactory describes a helpdesk ticket action.
type TicketFactory struct{ base }

func NewTicketFactory(nodeType models.NodeType, name string) *TicketFactory {
	return &TicketFactory{base{nodeType, name, "Creates or updates a " + name + " ticket."}}
}

func (f *TicketFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"action":   map[string]any{"type": "string", "enum": []string{"create", "update", "close"}},
		"subject":  stringProperty("Ticket subject"),
		"priority": map[string]any{"type": "string", "enum": []string{"low", "normal", "high", "urgent"}},
	}, "action")
}

func (f *TicketFactory) Defaults() models.NodeData {
	return &models.TicketData{Action: "create", Subject: "New support request", Priority: "normal"}
}

// CRMFactory describes a CRM record action.
type CRMFactory struct {
	base

	action     string
	objectType string
}

func NewCRMFactory(nodeType models.NodeType, name, action, objectType string) *CRMFactory {
	return &CRMFactory{
		base:       base{nodeType, name, "Creates or updates a record in " + name + "."},
		action:     action,
		objectType: objectType,
	}
}

func (f *CRMFactory) Schema() map[string]any {
	return objectSchema(map[string]any{
		"action":     map[string]any{"type": "string", "minLength": 1},
		"objectType": map[string]any{"type": "string", "minLength": 1},
	}, "action", "objectType")
}

func (f *CRMFactory) Defaults() models.NodeData {
	return &models.CRMData{Action: f.action, ObjectType: f.objectType}
}
