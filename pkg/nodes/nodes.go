// Package nodes provides the built-in node type catalogue: names, schemas and default configurations.
package nodes

import (
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/protocol"
)

// base carries the descriptive metadata shared by every factory.
type base struct {
	nodeType    models.NodeType
	name        string
	description string
}

func (b base) Type() models.NodeType {
	return b.nodeType
}

func (b base) Name() string {
	return b.name
}

func (b base) Description() string {
	return b.description
}

// Builtin returns a factory for every built-in node type, in palette order.
func Builtin() []protocol.NodeFactory {
	return []protocol.NodeFactory{
		NewStartFactory(),
		NewMessageFactory(),
		NewConditionFactory(),
		NewAPICallFactory(),
		NewDTMFFactory(),
		NewAssistantFactory(),
		NewTransferFactory(),
		NewChannelSendFactory(models.NodeTypeWhatsApp, "WhatsApp", "Hi {{ .name }}, thanks for reaching out on WhatsApp!"),
		NewChannelSendFactory(models.NodeTypeSlack, "Slack", "New conversation needs attention: {{ .summary }}"),
		NewChannelSendFactory(models.NodeTypeTelegram, "Telegram", "Hi {{ .name }}, here is your update."),
		NewChannelSendFactory(models.NodeTypeTeams, "Microsoft Teams", "Escalation: {{ .summary }}"),
		NewTicketFactory(models.NodeTypeZendesk, "Zendesk"),
		NewTicketFactory(models.NodeTypeFreshdesk, "Freshdesk"),
		NewCRMFactory(models.NodeTypeSalesforce, "Salesforce", "create_contact", "contact"),
		NewCRMFactory(models.NodeTypeHubSpot, "HubSpot", "create_contact", "contact"),
		NewCRMFactory(models.NodeTypeZoho, "Zoho CRM", "update_lead", "lead"),
		NewEndFactory(),
	}
}

func stringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}
