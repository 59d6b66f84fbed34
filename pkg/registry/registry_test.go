package registry

import (
	"log/slog"
	"testing"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	reg, err := NewDefaultRegistry(slog.Default())
	require.NoError(t, err)

	return reg
}

func TestRegistry_DefaultNodes(t *testing.T) {
	reg := newTestRegistry(t)

	catalog := reg.Catalog()
	require.Len(t, catalog, len(models.NodeTypes))

	for i, info := range catalog {
		assert.Equal(t, models.NodeTypes[i], info.Type)
		assert.NotEmpty(t, info.Name)
		assert.NotNil(t, info.Defaults)
	}

	message, ok := catalog[1].Defaults.(*models.MessageData)
	require.True(t, ok)
	assert.Equal(t, "Hello! How can I help you today?", message.Content)

	status, healthy := reg.HealthCheck()
	assert.True(t, healthy, status)
}

func TestRegistry_Defaults(t *testing.T) {
	reg := newTestRegistry(t)

	data, err := reg.Defaults(models.NodeTypeCondition)
	require.NoError(t, err)
	assert.Equal(t, &models.ConditionData{Operator: models.OperatorEquals}, data)

	data, err = reg.Defaults(models.NodeTypeDTMF)
	require.NoError(t, err)

	dtmf := data.(*models.DTMFData)
	assert.Equal(t, 1, dtmf.MaxDigits)
	assert.Equal(t, 10, dtmf.Timeout)
	assert.Equal(t, []string{"1", "2", "0"}, []string{dtmf.Branches[0].Digit, dtmf.Branches[1].Digit, dtmf.Branches[2].Digit})

	// Each call returns an independent value.
	dtmf.Branches[0].Digit = "9"
	again, err := reg.Defaults(models.NodeTypeDTMF)
	require.NoError(t, err)
	assert.Equal(t, "1", again.(*models.DTMFData).Branches[0].Digit)

	_, err = reg.Defaults("fax")
	require.ErrorIs(t, err, ErrNodeTypeNotRegistered)
}

func TestRegistry_DefaultsSatisfySchemas(t *testing.T) {
	reg := newTestRegistry(t)

	for _, nodeType := range models.NodeTypes {
		data, err := reg.Defaults(nodeType)
		require.NoError(t, err)
		assert.NoError(t, reg.ValidateData(nodeType, data), nodeType)
	}
}

func TestRegistry_ValidateData(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name     string
		nodeType models.NodeType
		data     models.NodeData
		valid    bool
	}{
		{name: "contains operator", nodeType: models.NodeTypeCondition, data: &models.ConditionData{Operator: models.OperatorContains}, valid: true},
		{name: "unknown operator", nodeType: models.NodeTypeCondition, data: &models.ConditionData{Operator: "regex"}, valid: false},
		{name: "zero digits", nodeType: models.NodeTypeDTMF, data: &models.DTMFData{Prompt: "p", Timeout: 5, MaxDigits: 0}, valid: false},
		{name: "bad branch digit", nodeType: models.NodeTypeDTMF, data: &models.DTMFData{Prompt: "p", Timeout: 5, MaxDigits: 1, Branches: []models.DTMFBranch{{Digit: "12"}}}, valid: false},
		{name: "bad method", nodeType: models.NodeTypeAPICall, data: &models.APICallData{Method: "FETCH", URL: "https://x"}, valid: false},
		{name: "ticket priority", nodeType: models.NodeTypeZendesk, data: &models.TicketData{Action: "create", Priority: "high"}, valid: true},
		{name: "empty template", nodeType: models.NodeTypeSlack, data: &models.ChannelSendData{}, valid: false},
		{name: "message with variable", nodeType: models.NodeTypeMessage, data: &models.MessageData{Content: "Hi {{ .name }}"}, valid: true},
		{name: "broken message template", nodeType: models.NodeTypeMessage, data: &models.MessageData{Content: "Hi {{ .name "}, valid: false},
		{name: "unknown template function", nodeType: models.NodeTypeTeams, data: &models.ChannelSendData{MessageTemplate: "{{ shout .summary }}"}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.ValidateData(tt.nodeType, tt.data)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidNodeData)
			}
		})
	}
}

func TestRegistry_ValidateFlow(t *testing.T) {
	reg := newTestRegistry(t)

	flow := &models.Flow{
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart, Data: &models.StartData{}},
			{ID: "api", Type: models.NodeTypeAPICall, Data: &models.APICallData{Method: "GET"}},
		},
	}

	err := reg.ValidateFlow(flow)
	require.ErrorIs(t, err, ErrInvalidNodeData)
	assert.Contains(t, err.Error(), "node api")
}

func TestRegistry_HealthCheck_Missing(t *testing.T) {
	reg := NewRegistry(slog.Default())

	status, healthy := reg.HealthCheck()

	assert.False(t, healthy)
	assert.Contains(t, status, "start")
}
