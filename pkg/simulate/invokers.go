package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/nodes"
	"github.com/dukex/convoflow/pkg/protocol"
)

// DefaultAPIFailureRate is the share of simulated API calls that fail.
const DefaultAPIFailureRate = 0.1

var successStatuses = []int{200, 201}

var failureStatuses = []int{500, 503}

var assistantReplies = []string{
	"I can help you with that. Could you share a few more details?",
	"Thanks for your patience. I've looked into your account and everything looks in order.",
	"Let me check that for you. One moment please.",
	"I understand. I'll make sure the right team follows up with you.",
}

// Source is a random source safe for concurrent use.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource wraps rng. A nil rng uses a randomly seeded generator.
func NewSource(rng *rand.Rand) *Source {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // simulation only
	}

	return &Source{rng: rng}
}

// NewSeededSource returns a deterministic source.
func NewSeededSource(seed uint64) *Source {
	return NewSource(rand.New(rand.NewPCG(seed, seed))) //nolint:gosec // simulation only
}

func (s *Source) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.Float64()
}

func (s *Source) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rng.IntN(n)
}

// Invokers returns a simulated invoker for every node type with an external effect.
func Invokers(source *Source, apiFailureRate float64) map[models.NodeType]protocol.Invoker {
	invokers := map[models.NodeType]protocol.Invoker{
		models.NodeTypeAPICall:   NewAPICall(source, apiFailureRate),
		models.NodeTypeAssistant: NewAssistant(source),
		models.NodeTypeTransfer:  Transfer{},
	}

	for _, nodeType := range models.NodeTypes {
		switch {
		case nodeType.IsChannelSend():
			invokers[nodeType] = ChannelSend{}
		case nodeType.IsTicketAction():
			invokers[nodeType] = Ticket{}
		case nodeType.IsCRMAction():
			invokers[nodeType] = CRM{}
		}
	}

	return invokers
}

// APICall fakes an HTTP request that fails at a configurable rate.
type APICall struct {
	source      *Source
	failureRate float64
}

func NewAPICall(source *Source, failureRate float64) *APICall {
	if source == nil {
		source = NewSource(nil)
	}

	return &APICall{source: source, failureRate: failureRate}
}

func (a *APICall) Invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Outcome{}, err
	}

	method, url := "GET", ""
	if data, ok := node.Data.(*models.APICallData); ok {
		if data.Method != "" {
			method = data.Method
		}

		url = data.URL
	}

	if a.source.float64() < a.failureRate {
		status := failureStatuses[a.source.intN(len(failureStatuses))]

		return protocol.Outcome{
			Success: false,
			Detail:  fmt.Sprintf("%s %s failed with status %d", method, url, status),
		}, nil
	}

	status := successStatuses[a.source.intN(len(successStatuses))]

	return protocol.Outcome{
		Success: true,
		Detail:  fmt.Sprintf("%s %s responded with status %d", method, url, status),
	}, nil
}

// Assistant answers with a canned reply in the voice of the configured persona.
type Assistant struct {
	source *Source
}

func NewAssistant(source *Source) *Assistant {
	if source == nil {
		source = NewSource(nil)
	}

	return &Assistant{source: source}
}

func (a *Assistant) Invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Outcome{}, err
	}

	reply := assistantReplies[a.source.intN(len(assistantReplies))]

	if data, ok := node.Data.(*models.AssistantData); ok && data.PersonaName != "" {
		reply = fmt.Sprintf("[%s] %s", data.PersonaName, reply)
	}

	return protocol.Outcome{Success: true, Detail: reply}, nil
}

// Transfer hands the conversation to the configured target.
type Transfer struct{}

func (Transfer) Invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Outcome{}, err
	}

	target := "an agent"
	if data, ok := node.Data.(*models.TransferData); ok && data.TransferTo != "" {
		target = data.TransferTo
	}

	return protocol.Outcome{Success: true, Detail: "Connected to " + target}, nil
}

// ChannelSend delivers the rendered template over WhatsApp, Slack, Telegram or Teams.
type ChannelSend struct{}

func (ChannelSend) Invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Outcome{}, err
	}

	detail := "Message sent via " + displayName(node.Type)
	if data, ok := node.Data.(*models.ChannelSendData); ok && data.MessageTemplate != "" {
		detail += ": " + data.MessageTemplate
	}

	return protocol.Outcome{Success: true, Detail: detail}, nil
}

// Ticket acts on a Zendesk or Freshdesk ticket.
type Ticket struct{}

func (Ticket) Invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Outcome{}, err
	}

	data, _ := node.Data.(*models.TicketData)
	if data == nil {
		data = &models.TicketData{}
	}

	action := data.Action
	if action == "" {
		action = "create"
	}

	detail := fmt.Sprintf("%s ticket %s", displayName(node.Type), pastTense(action))
	if data.Subject != "" {
		detail += fmt.Sprintf(": %q", data.Subject)
	}

	if data.Priority != "" {
		detail += fmt.Sprintf(" (priority %s)", data.Priority)
	}

	return protocol.Outcome{Success: true, Detail: detail}, nil
}

// CRM creates or updates a Salesforce, HubSpot or Zoho record.
type CRM struct{}

func (CRM) Invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Outcome{}, err
	}

	action, object := "sync", "record"
	if data, ok := node.Data.(*models.CRMData); ok {
		if data.Action != "" {
			action = data.Action
		}

		if data.ObjectType != "" {
			object = data.ObjectType
		}
	}

	return protocol.Outcome{
		Success: true,
		Detail:  fmt.Sprintf("%s %s completed for %s", displayName(node.Type), strings.ReplaceAll(action, "_", " "), object),
	}, nil
}

var displayNames = func() map[models.NodeType]string {
	names := make(map[models.NodeType]string)
	for _, factory := range nodes.Builtin() {
		names[factory.Type()] = factory.Name()
	}

	return names
}()

func displayName(nodeType models.NodeType) string {
	if name, ok := displayNames[nodeType]; ok {
		return name
	}

	return string(nodeType)
}

func pastTense(action string) string {
	switch action {
	case "create":
		return "created"
	case "update":
		return "updated"
	case "close":
		return "closed"
	default:
		return action
	}
}
