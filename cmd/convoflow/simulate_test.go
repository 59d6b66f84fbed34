package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supportFlow = `
name: Support
nodes:
  - id: start
    type: start
  - id: greet
    type: message
    data:
      content: Hi! How can I help?
  - id: intent
    type: condition
    data:
      variable: intent
      operator: contains
      value: refund
  - id: refund
    type: message
    data:
      content: Let me help with your refund
  - id: other
    type: message
    data:
      content: Connecting you with an agent
  - id: done
    type: end
edges:
  - source: start
    target: greet
  - source: greet
    target: intent
  - source: intent
    target: refund
    label: "Yes"
  - source: intent
    target: other
    label: "No"
  - source: refund
    target: done
  - source: other
    target: done
`

const ivrFlow = `
name: IVR
nodes:
  - id: start
    type: start
  - id: menu
    type: dtmf
    data:
      prompt: Press 1 for sales
      timeout: 10
      maxDigits: 1
      branches:
        - digit: "1"
          label: Sales
  - id: order
    type: api_call
    data:
      method: POST
      url: https://api.example.com/orders
  - id: done
    type: end
edges:
  - source: start
    target: menu
  - source: menu
    target: order
  - source: order
    target: done
`

func writeFlow(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer

	root := newRootCommand()
	root.Writer = &buf

	err := root.Run(context.Background(), append([]string{"convoflow"}, args...))

	return buf.String(), err
}

func TestSimulate_ChatFollowsAnswers(t *testing.T) {
	path := writeFlow(t, "support.yaml", supportFlow)

	out, err := runCommand(t, "simulate", "--input", "I want a refund", "--log-level", "error", path)
	require.NoError(t, err)

	assert.Contains(t, out, "[bot] Hi! How can I help?")
	assert.Contains(t, out, "[user] I want a refund")
	assert.Contains(t, out, "[bot] Let me help with your refund")
	assert.NotContains(t, out, "Connecting you with an agent")
	assert.Contains(t, out, "state: ended")
	assert.Contains(t, out, "outcome: passed")
}

func TestSimulate_ChatStopsWhenAnswersRunOut(t *testing.T) {
	path := writeFlow(t, "support.yaml", supportFlow)

	out, err := runCommand(t, "simulate", "--log-level", "error", path)
	require.NoError(t, err)

	assert.Contains(t, out, "state: waiting_for_input")
}

func TestSimulate_VoiceJSON(t *testing.T) {
	path := writeFlow(t, "ivr.yaml", ivrFlow)

	out, err := runCommand(t, "simulate",
		"--channel", "voice", "--digits", "1", "--api-failure-rate", "0", "--seed", "7", "--json", "--log-level", "error", path)
	require.NoError(t, err)

	var snapshot models.RunSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))

	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.ChannelVoice, snapshot.Channel)
	assert.Equal(t, 1, snapshot.Stats.APICalls)
	assert.Equal(t, models.OutcomePassed, snapshot.Stats.Outcome)
	require.NotNil(t, snapshot.Call)
	assert.False(t, snapshot.Call.Active)

	var pressed bool
	for _, event := range snapshot.Events {
		if event.Category == models.EventCategoryDTMF && event.Content == "Pressed 1 (Sales)" {
			pressed = true
		}
	}
	assert.True(t, pressed)
}

func TestSimulate_VoiceHangsUpWithoutDigits(t *testing.T) {
	path := writeFlow(t, "ivr.yaml", ivrFlow)

	out, err := runCommand(t, "simulate", "--channel", "voice", "--log-level", "error", path)
	require.NoError(t, err)

	assert.Contains(t, out, "state: ended")
	assert.NotContains(t, out, "api calls: 1")
}

func TestSimulate_CompletedWithErrors(t *testing.T) {
	path := writeFlow(t, "ivr.yaml", ivrFlow)

	out, err := runCommand(t, "simulate",
		"--channel", "voice", "--digits", "1", "--api-failure-rate", "1", "--log-level", "error", path)
	require.ErrorIs(t, err, ErrCompletedWithErrors)

	assert.Contains(t, out, "errors: 1")
	assert.Contains(t, out, "outcome: completed_with_errors")
}

func TestSimulate_Errors(t *testing.T) {
	_, err := runCommand(t, "simulate")
	require.ErrorIs(t, err, errMissingFlowFile)

	_, err = runCommand(t, "simulate", "--log-level", "error", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	path := writeFlow(t, "support.yaml", supportFlow)
	_, err = runCommand(t, "simulate", "--channel", "fax", "--log-level", "error", path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeFlow(t, "support.yaml", supportFlow)

	out, err := runCommand(t, "validate", "--log-level", "error", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (6 nodes, 6 edges)")

	broken := writeFlow(t, "broken.yaml", `
name: Broken
nodes:
  - id: start
    type: start
  - id: menu
    type: dtmf
    data:
      prompt: Press a key
      timeout: 10
      maxDigits: 0
edges:
  - source: menu
    target: start
`)

	out, err = runCommand(t, "validate", "--log-level", "error", broken)
	require.ErrorIs(t, err, ErrInvalidFlow)
	assert.Contains(t, out, "invalid")
}
