package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlow() *Flow {
	return &Flow{
		ID:     "flow-1",
		Name:   "Support line",
		Status: FlowStatusDraft,
		Nodes: []*Node{
			{ID: "start", Type: NodeTypeStart, Data: &StartData{}},
			{ID: "ask", Type: NodeTypeCondition, Data: &ConditionData{Variable: "intent", Operator: OperatorEquals, Value: "sales"}},
			{ID: "menu", Type: NodeTypeDTMF, Data: &DTMFData{Prompt: "Press 1", Timeout: 10, MaxDigits: 1, Branches: []DTMFBranch{{Digit: "1", Label: "Sales"}}}},
			{ID: "end", Type: NodeTypeEnd, Data: &EndData{}},
		},
		Edges: []*Edge{
			{ID: "e1", Source: "start", Target: "ask"},
			{ID: "e2", Source: "ask", Target: "menu", Label: EdgeLabelYes},
			{ID: "e3", Source: "ask", Target: "end", Label: EdgeLabelNo},
		},
		Versions: []*Version{},
	}
}

func TestFlow_Connections_DerivedFromEdges(t *testing.T) {
	flow := testFlow()

	assert.Equal(t, []string{"ask"}, flow.Connections("start"))
	assert.Equal(t, []string{"menu", "end"}, flow.Connections("ask"))
	assert.Empty(t, flow.Connections("end"))
	assert.True(t, flow.HasEdge("ask", "end"))
	assert.False(t, flow.HasEdge("end", "ask"))
	assert.Len(t, flow.IncomingEdges("end"), 1)
}

func TestFlow_Clone_IsDeep(t *testing.T) {
	flow := testFlow()
	clone := flow.Clone()

	clone.Node("menu").Data.(*DTMFData).Branches[0].Digit = "9"
	clone.Node("ask").Data.(*ConditionData).Value = "support"
	clone.Edges[0].Target = "end"

	assert.Equal(t, "1", flow.Node("menu").Data.(*DTMFData).Branches[0].Digit)
	assert.Equal(t, "sales", flow.Node("ask").Data.(*ConditionData).Value)
	assert.Equal(t, "ask", flow.Edges[0].Target)
}

func TestFlow_JSONRoundTrip_KeepsTypedData(t *testing.T) {
	flow := testFlow()

	raw, err := json.Marshal(flow)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))

	nodes := generic["nodes"].([]any)
	ask := nodes[1].(map[string]any)
	assert.Equal(t, []any{"menu", "end"}, ask["connections"])

	var decoded Flow
	require.NoError(t, json.Unmarshal(raw, &decoded))

	condition, ok := decoded.Node("ask").Data.(*ConditionData)
	require.True(t, ok)
	assert.Equal(t, OperatorEquals, condition.Operator)

	menu, ok := decoded.Node("menu").Data.(*DTMFData)
	require.True(t, ok)
	assert.Equal(t, 1, menu.MaxDigits)
	assert.Equal(t, EdgeLabelYes, decoded.Edges[1].Label)
}

func TestDecodeNodeData(t *testing.T) {
	tests := []struct {
		name     string
		nodeType NodeType
		raw      string
		want     NodeData
		wantErr  bool
	}{
		{name: "message", nodeType: NodeTypeMessage, raw: `{"content":"hi"}`, want: &MessageData{Content: "hi"}},
		{name: "null data", nodeType: NodeTypeEnd, raw: `null`, want: &EndData{}},
		{name: "channel send shares variant", nodeType: NodeTypeSlack, raw: `{"messageTemplate":"x"}`, want: &ChannelSendData{MessageTemplate: "x"}},
		{name: "crm", nodeType: NodeTypeZoho, raw: `{"action":"create_contact","objectType":"contact"}`, want: &CRMData{Action: "create_contact", ObjectType: "contact"}},
		{name: "unknown type", nodeType: "fax", raw: `{}`, wantErr: true},
		{name: "wrong field type", nodeType: NodeTypeDTMF, raw: `{"timeout":"ten"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeNodeData(tt.nodeType, []byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeType_Families(t *testing.T) {
	assert.True(t, NodeTypeTeams.IsChannelSend())
	assert.True(t, NodeTypeFreshdesk.IsTicketAction())
	assert.True(t, NodeTypeHubSpot.IsCRMAction())
	assert.False(t, NodeTypeAPICall.IsChannelSend())
	assert.False(t, NodeType("fax").Valid())
	assert.Len(t, NodeTypes, 17)
}
