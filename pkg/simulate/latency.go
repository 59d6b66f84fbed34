// Package simulate provides stand-in capabilities for the external effects of a flow:
// fake API calls, channel sends, ticket and CRM actions, assistant replies and transfers.
package simulate

import (
	"context"
	"time"

	"github.com/dukex/convoflow/pkg/models"
)

// Latency is the artificial delay inserted before a node's effect so a simulated
// timeline stays legible. Zero values disable the pause.
type Latency struct {
	Message     time.Duration
	Assistant   time.Duration
	API         time.Duration
	Integration time.Duration
	Transfer    time.Duration // voice runs only
}

// DefaultLatency mirrors the pacing of a live conversation.
func DefaultLatency() Latency {
	return Latency{
		Message:     500 * time.Millisecond,
		Assistant:   1500 * time.Millisecond,
		API:         1 * time.Second,
		Integration: 800 * time.Millisecond,
		Transfer:    2 * time.Second,
	}
}

// NoLatency runs flows as fast as possible.
func NoLatency() Latency {
	return Latency{}
}

// For returns the delay applied before node runs on channel.
func (l Latency) For(node *models.Node, channel models.Channel) time.Duration {
	switch {
	case node.Type == models.NodeTypeMessage:
		return l.Message
	case node.Type == models.NodeTypeAssistant:
		return l.Assistant
	case node.Type == models.NodeTypeAPICall:
		return l.API
	case node.Type == models.NodeTypeTransfer:
		if channel != models.ChannelVoice {
			return 0
		}

		return l.Transfer
	case node.Type.IsChannelSend(), node.Type.IsTicketAction(), node.Type.IsCRMAction():
		return l.Integration
	default:
		return 0
	}
}

// Pause blocks for the node's delay or until ctx is done.
func (l Latency) Pause(ctx context.Context, node *models.Node, channel models.Channel) error {
	delay := l.For(node, channel)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
