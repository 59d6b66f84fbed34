// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"testing"
	"time"

	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/stretchr/testify/require"
)

// FlowBuilder assembles a flow through the graph mutations, failing the test on any rejected step.
type FlowBuilder struct {
	t    testing.TB
	Flow *models.Flow
}

// NewFlowBuilder starts a flow holding only its start node.
func NewFlowBuilder(t testing.TB, name string) *FlowBuilder {
	t.Helper()

	return &FlowBuilder{t: t, Flow: graph.NewFlow(name, "", "", time.Now().UTC())}
}

// Start returns the id of the start node.
func (b *FlowBuilder) Start() string {
	return b.Flow.StartNode().ID
}

// Node adds a node and returns its id. A nil data uses the type's empty configuration.
func (b *FlowBuilder) Node(nodeType models.NodeType, data models.NodeData) string {
	b.t.Helper()

	node, err := graph.AddNode(b.Flow, nodeType, models.Position{}, data)
	require.NoError(b.t, err)

	return node.ID
}

func (b *FlowBuilder) Message(content string) string {
	b.t.Helper()

	return b.Node(models.NodeTypeMessage, &models.MessageData{Content: content})
}

func (b *FlowBuilder) Condition(variable string, operator models.ConditionOperator, value string) string {
	b.t.Helper()

	return b.Node(models.NodeTypeCondition, &models.ConditionData{Variable: variable, Operator: operator, Value: value})
}

func (b *FlowBuilder) DTMF(prompt string, maxDigits int, branches ...models.DTMFBranch) string {
	b.t.Helper()

	return b.Node(models.NodeTypeDTMF, &models.DTMFData{Prompt: prompt, Timeout: 10, MaxDigits: maxDigits, Branches: branches})
}

func (b *FlowBuilder) End() string {
	b.t.Helper()

	return b.Node(models.NodeTypeEnd, nil)
}

// Edge connects source to target. handle only matters when source is a condition node.
func (b *FlowBuilder) Edge(source, target string, handle graph.Handle) {
	b.t.Helper()

	_, err := graph.AddEdge(b.Flow, source, target, handle)
	require.NoError(b.t, err)
}

// Chain connects each node to the next with unlabeled edges.
func (b *FlowBuilder) Chain(ids ...string) {
	b.t.Helper()

	for i := 1; i < len(ids); i++ {
		b.Edge(ids[i-1], ids[i], graph.HandleDefault)
	}
}

// Contents lists the content of every event of a run, in order.
func Contents(snapshot models.RunSnapshot) []string {
	result := make([]string, 0, len(snapshot.Events))
	for _, event := range snapshot.Events {
		result = append(result, event.Content)
	}

	return result
}
