package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/convoflow/pkg/eventbus"
	"github.com/dukex/convoflow/pkg/events"
	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/otelhelper"
	"github.com/dukex/convoflow/pkg/protocol"
	"github.com/dukex/convoflow/pkg/simulate"
	"github.com/dukex/convoflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newFlowBuilder(t *testing.T) *testutil.FlowBuilder {
	t.Helper()

	return testutil.NewFlowBuilder(t, "Test")
}

func TestRun_StartMessageEnd(t *testing.T) {
	b := newFlowBuilder(t)
	message := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "Welcome!"})
	end := b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), message, graph.HandleDefault)
	b.Edge(message, end, graph.HandleDefault)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultSuccess, snapshot.Result)
	assert.Equal(t, 3, snapshot.Stats.NodesVisited)
	assert.Equal(t, 3, snapshot.Stats.TotalNodes)
	assert.Equal(t, 0, snapshot.Stats.Errors)
	assert.Equal(t, models.OutcomePassed, snapshot.Stats.Outcome)
	assert.Nil(t, snapshot.Call)
	require.NotNil(t, snapshot.EndedAt)

	welcome := findEvent(t, snapshot, "Welcome!")
	assert.Equal(t, models.EventCategoryBot, welcome.Category)
	assert.Equal(t, message, welcome.NodeID)

	ids := make(map[string]bool)
	for _, event := range snapshot.Events {
		assert.NotEmpty(t, event.ID)
		assert.False(t, ids[event.ID], "duplicate event id")
		ids[event.ID] = true
	}
}

func findEvent(t *testing.T, snapshot models.RunSnapshot, content string) models.LogEvent {
	t.Helper()

	for _, event := range snapshot.Events {
		if event.Content == content {
			return event
		}
	}

	require.Failf(t, "event not found", "no event with content %q", content)

	return models.LogEvent{}
}

func TestRun_ConditionRouting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		skip  string
	}{
		{name: "yes branch", input: "sales", want: "Sales team", skip: "Support team"},
		{name: "case insensitive", input: "Sales", want: "Sales team", skip: "Support team"},
		{name: "no branch", input: "other", want: "Support team", skip: "Sales team"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFlowBuilder(t)
			condition := b.Node(models.NodeTypeCondition, &models.ConditionData{Variable: "intent", Operator: models.OperatorEquals, Value: "sales"})
			msgA := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "Sales team"})
			msgB := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "Support team"})
			end := b.Node(models.NodeTypeEnd, nil)
			b.Edge(b.Start(), condition, graph.HandleDefault)
			b.Edge(condition, msgA, graph.HandleYes)
			b.Edge(condition, msgB, graph.HandleNo)
			b.Edge(msgA, end, graph.HandleDefault)
			b.Edge(msgB, end, graph.HandleDefault)

			run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
			require.NoError(t, err)

			snapshot := run.Snapshot()
			assert.Equal(t, models.RunStateWaitingForInput, snapshot.State)
			assert.Equal(t, condition, snapshot.CurrentNodeID)

			require.NoError(t, run.SubmitText(context.Background(), tt.input))

			snapshot = run.Snapshot()
			assert.Equal(t, models.RunStateEnded, snapshot.State)
			assert.Contains(t, testutil.Contents(snapshot), tt.want)
			assert.NotContains(t, testutil.Contents(snapshot), tt.skip)
			assert.Equal(t, tt.input, snapshot.Variables["intent"])
			assert.Equal(t, 4, snapshot.Stats.NodesVisited)
		})
	}
}

func TestRun_ConditionFallsBackToConfiguredConnection(t *testing.T) {
	b := newFlowBuilder(t)
	yes := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "configured yes"})
	condition := b.Node(models.NodeTypeCondition, &models.ConditionData{
		Variable:      "topic",
		Operator:      models.OperatorContains,
		Value:         "bill",
		YesConnection: yes,
	})
	b.Edge(b.Start(), condition, graph.HandleDefault)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)
	require.NoError(t, run.SubmitText(context.Background(), "I have a billing question"))

	snapshot := run.Snapshot()
	assert.Contains(t, testutil.Contents(snapshot), "configured yes")
	assert.Equal(t, models.RunResultSuccess, snapshot.Result)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		operator models.ConditionOperator
		value    string
		input    string
		want     bool
	}{
		{name: "equals ignores case", operator: models.OperatorEquals, value: "sales", input: "Sales", want: true},
		{name: "equals is exact", operator: models.OperatorEquals, value: "sales", input: "sales team", want: false},
		{name: "equals mismatch", operator: models.OperatorEquals, value: "sales", input: "support", want: false},
		{name: "contains substring", operator: models.OperatorContains, value: "bill", input: "I have a billing question", want: true},
		{name: "contains ignores case", operator: models.OperatorContains, value: "BILL", input: "billing", want: true},
		{name: "contains mismatch", operator: models.OperatorContains, value: "refund", input: "billing", want: false},
		{name: "unknown operator", operator: "startsWith", value: "bill", input: "billing", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(tt.operator, tt.value, tt.input))
		})
	}
}

func TestRun_DeadEndEndsSuccessfully(t *testing.T) {
	b := newFlowBuilder(t)
	message := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "Nowhere to go"})
	b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), message, graph.HandleDefault)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultSuccess, snapshot.Result)
	assert.Equal(t, 2, snapshot.Stats.NodesVisited)
	assert.Less(t, snapshot.Stats.NodesVisited, snapshot.Stats.TotalNodes)
}

func TestRun_APIFailureIsCountedAndNonFatal(t *testing.T) {
	b := newFlowBuilder(t)
	api := b.Node(models.NodeTypeAPICall, &models.APICallData{Method: "GET", URL: "https://api.example.com/orders"})
	slack := b.Node(models.NodeTypeSlack, &models.ChannelSendData{MessageTemplate: "Order lookup failed"})
	end := b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), api, graph.HandleDefault)
	b.Edge(api, slack, graph.HandleDefault)
	b.Edge(slack, end, graph.HandleDefault)

	engine := New(WithInvokers(simulate.Invokers(simulate.NewSeededSource(1), 1)))

	run, err := engine.Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultSuccess, snapshot.Result)
	assert.Equal(t, 2, snapshot.Stats.APICalls)
	assert.Equal(t, models.OutcomeCompletedWithErrors, snapshot.Stats.Outcome)
	assert.Equal(t, 4, snapshot.Stats.NodesVisited)

	var failures []models.LogEvent
	for _, event := range snapshot.Events {
		if event.Category == models.EventCategoryError {
			failures = append(failures, event)
		}
	}

	require.Len(t, failures, 1)
	assert.Equal(t, api, failures[0].NodeID)
	assert.Equal(t, models.EventStatusError, failures[0].Status)
}

func TestRun_InvokerErrorCountsAsFailure(t *testing.T) {
	b := newFlowBuilder(t)
	ticket := b.Node(models.NodeTypeZendesk, nil)
	b.Edge(b.Start(), ticket, graph.HandleDefault)

	broken := protocol.InvokerFunc(func(context.Context, *models.Node) (protocol.Outcome, error) {
		return protocol.Outcome{}, errors.New("zendesk unavailable")
	})

	run, err := New(WithInvokers(map[models.NodeType]protocol.Invoker{models.NodeTypeZendesk: broken})).
		Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	snapshot := run.Snapshot()
	assert.Contains(t, testutil.Contents(snapshot), "zendesk unavailable")
}

func TestRun_DTMFVoice(t *testing.T) {
	b := newFlowBuilder(t)
	dtmf := b.DTMF("Press 1 for sales", 1, models.DTMFBranch{Digit: "1", Label: "Sales"})
	end := b.End()
	b.Edge(b.Start(), dtmf, graph.HandleDefault)
	b.Edge(dtmf, end, graph.HandleDefault)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelVoice)
	require.NoError(t, err)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateWaitingForDTMF, snapshot.State)
	require.NotNil(t, snapshot.Call)
	assert.True(t, snapshot.Call.Active)
	assert.Equal(t, models.EventCategoryVoice, findEvent(t, snapshot, "Press 1 for sales").Category)

	require.ErrorIs(t, run.SubmitText(context.Background(), "hello"), ErrNotWaitingForInput)
	require.ErrorIs(t, run.SubmitDigits(context.Background(), "1a"), ErrInvalidDigits)

	require.NoError(t, run.SubmitDigits(context.Background(), "1#9"))

	snapshot = run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, "1", snapshot.Variables["dtmf_"+dtmf])
	assert.Equal(t, models.EventCategoryDTMF, findEvent(t, snapshot, "Pressed 1 (Sales)").Category)
	require.NotNil(t, snapshot.Call)
	assert.False(t, snapshot.Call.Active)

	require.ErrorIs(t, run.SubmitDigits(context.Background(), "1"), ErrRunEnded)
}

func TestRun_DTMFChatDisplaysPrompt(t *testing.T) {
	b := newFlowBuilder(t)
	dtmf := b.Node(models.NodeTypeDTMF, &models.DTMFData{Prompt: "Choose an option", MaxDigits: 2})
	b.Edge(b.Start(), dtmf, graph.HandleDefault)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	assert.Equal(t, models.EventCategoryBot, findEvent(t, run.Snapshot(), "Choose an option").Category)
	require.NoError(t, run.SubmitDigits(context.Background(), "42"))
	assert.Equal(t, models.RunStateEnded, run.State())
}

func TestRun_EndCallRequiresVoice(t *testing.T) {
	b := newFlowBuilder(t)
	condition := b.Node(models.NodeTypeCondition, &models.ConditionData{Operator: models.OperatorEquals})
	b.Edge(b.Start(), condition, graph.HandleDefault)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	require.ErrorIs(t, run.EndCall(context.Background()), ErrNotVoiceRun)
	assert.Equal(t, models.RunStateWaitingForInput, run.State())
}

// blockingPacer parks every pause until the run is cancelled.
type blockingPacer struct {
	entered chan struct{}
}

func (p *blockingPacer) Pause(ctx context.Context, _ *models.Node, _ models.Channel) error {
	p.entered <- struct{}{}
	<-ctx.Done()

	return ctx.Err()
}

func newBlockedRun(t *testing.T, channel models.Channel) (*Run, *blockingPacer, <-chan error) {
	t.Helper()

	b := newFlowBuilder(t)
	message := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "never spoken"})
	end := b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), message, graph.HandleDefault)
	b.Edge(message, end, graph.HandleDefault)

	pacer := &blockingPacer{entered: make(chan struct{}, 1)}

	run, err := New(WithPacer(pacer)).NewRun(b.Flow, channel)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- run.Start(context.Background())
	}()

	select {
	case <-pacer.entered:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "run never reached the message pause")
	}

	return run, pacer, done
}

func TestRun_HangUpMidRun(t *testing.T) {
	run, _, done := newBlockedRun(t, models.ChannelVoice)

	require.NoError(t, run.EndCall(context.Background()))
	require.NoError(t, <-done)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultSuccess, snapshot.Result)
	assert.NotContains(t, testutil.Contents(snapshot), "never spoken")
	require.NotNil(t, snapshot.Call)
	assert.False(t, snapshot.Call.Active)

	last := snapshot.Events[len(snapshot.Events)-1]
	assert.Equal(t, models.EventCategoryVoice, last.Category)
	assert.Contains(t, last.Content, "Call ended by caller")

	require.ErrorIs(t, run.EndCall(context.Background()), ErrRunEnded)
}

func TestRun_ResetMidRun(t *testing.T) {
	run, pacer, done := newBlockedRun(t, models.ChannelChat)

	run.Reset(context.Background())
	require.NoError(t, <-done)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateIdle, snapshot.State)
	assert.Empty(t, snapshot.Events)
	assert.Empty(t, snapshot.Variables)
	assert.Equal(t, 0, snapshot.Stats.NodesVisited)
	assert.Empty(t, snapshot.CurrentNodeID)

	// The run can be started again after a reset.
	restarted := make(chan error, 1)
	go func() {
		restarted <- run.Start(context.Background())
	}()

	<-pacer.entered
	run.Reset(context.Background())
	require.NoError(t, <-restarted)
}

func TestRun_CallerCancellationEndsWithError(t *testing.T) {
	b := newFlowBuilder(t)
	message := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "slow"})
	b.Edge(b.Start(), message, graph.HandleDefault)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := New(WithPacer(simulate.Latency{Message: time.Hour})).NewRun(b.Flow, models.ChannelChat)
	require.NoError(t, err)

	err = run.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultError, snapshot.Result)
	require.ErrorIs(t, run.Start(context.Background()), ErrRunStarted)
}

func TestRun_SnapshotWhilePaused(t *testing.T) {
	run, _, done := newBlockedRun(t, models.ChannelChat)

	read := make(chan models.RunSnapshot, 1)
	go func() {
		read <- run.Snapshot()
	}()

	select {
	case snapshot := <-read:
		assert.Equal(t, models.RunStateRunning, snapshot.State)
		assert.NotEmpty(t, snapshot.CurrentNodeID)
		assert.NotContains(t, testutil.Contents(snapshot), "never spoken")
	case <-time.After(5 * time.Second):
		require.FailNow(t, "snapshot blocked behind the paused step")
	}

	run.Reset(context.Background())
	require.NoError(t, <-done)
}

// countingPublisher closes reached once it has seen after events.
type countingPublisher struct {
	after   int64
	count   atomic.Int64
	reached chan struct{}
}

func (p *countingPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	if p.count.Add(1) == p.after {
		close(p.reached)
	}

	return nil
}

func newLoopFlow(t *testing.T) *models.Flow {
	t.Helper()

	b := newFlowBuilder(t)
	ping := b.Message("Ping")
	pong := b.Message("Pong")
	b.Chain(b.Start(), ping, pong, ping)

	return b.Flow
}

func TestRun_HangUpEndsLoopingFlow(t *testing.T) {
	publisher := &countingPublisher{after: 100, reached: make(chan struct{})}

	run, err := New(WithPublisher(publisher), WithMaxSteps(0)).NewRun(newLoopFlow(t), models.ChannelVoice)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- run.Start(context.Background())
	}()

	select {
	case <-publisher.reached:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "run never started looping")
	}

	ended := make(chan error, 1)
	go func() {
		ended <- run.EndCall(context.Background())
	}()

	select {
	case err := <-ended:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "hang up blocked behind the looping run")
	}

	require.NoError(t, <-done)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultSuccess, snapshot.Result)
	assert.False(t, snapshot.Call.Active)
	assert.Contains(t, snapshot.Events[len(snapshot.Events)-1].Content, "Call ended by caller")
}

func TestRun_DeadlineEndsLoopingFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	run, err := New(WithMaxSteps(0)).NewRun(newLoopFlow(t), models.ChannelVoice)
	require.NoError(t, err)

	err = run.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultError, snapshot.Result)
}

func TestRun_StepLimit(t *testing.T) {
	run, err := New(WithMaxSteps(25)).NewRun(newLoopFlow(t), models.ChannelChat)
	require.NoError(t, err)

	err = run.Start(context.Background())
	require.ErrorIs(t, err, ErrStepLimit)

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	assert.Equal(t, models.RunResultError, snapshot.Result)
	assert.Equal(t, 25, snapshot.Stats.NodesVisited)
	assert.Contains(t, snapshot.Events[len(snapshot.Events)-1].Content, "stopped after 25 steps")
}

func TestEngine_StartErrors(t *testing.T) {
	flow := graph.NewFlow("Broken", "", "", time.Now().UTC())

	_, err := New().Start(context.Background(), flow, "fax")
	require.ErrorIs(t, err, ErrInvalidChannel)

	flow.Nodes = nil

	_, err = New().Start(context.Background(), flow, models.ChannelChat)
	require.ErrorIs(t, err, ErrNoStartNode)
}

func TestEngine_RunIsolatedFromLaterEdits(t *testing.T) {
	b := newFlowBuilder(t)
	condition := b.Node(models.NodeTypeCondition, &models.ConditionData{Operator: models.OperatorEquals, Value: "yes"})
	message := b.Node(models.NodeTypeMessage, &models.MessageData{Content: "original"})
	b.Edge(b.Start(), condition, graph.HandleDefault)
	b.Edge(condition, message, graph.HandleYes)

	run, err := New().Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	_, err = graph.UpdateNodeData(b.Flow, message, map[string]any{"content": "edited"})
	require.NoError(t, err)
	require.NoError(t, graph.DeleteNode(b.Flow, condition))

	require.NoError(t, run.SubmitText(context.Background(), "yes"))

	assert.Contains(t, testutil.Contents(run.Snapshot()), "original")
}

func TestEngine_TransferAndAssistant(t *testing.T) {
	b := newFlowBuilder(t)
	assistant := b.Node(models.NodeTypeAssistant, &models.AssistantData{PersonaName: "Ava"})
	transfer := b.Node(models.NodeTypeTransfer, &models.TransferData{TransferTo: "Tier 2"})
	end := b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), assistant, graph.HandleDefault)
	b.Edge(assistant, transfer, graph.HandleDefault)
	b.Edge(transfer, end, graph.HandleDefault)

	engine := New(
		WithInvokers(simulate.Invokers(simulate.NewSeededSource(9), 0)),
		WithPacer(simulate.NoLatency()),
	)

	run, err := engine.Start(context.Background(), b.Flow, models.ChannelVoice)
	require.NoError(t, err)

	snapshot := run.Snapshot()
	assert.Contains(t, testutil.Contents(snapshot), "Transfer initiated to Tier 2")
	assert.Contains(t, testutil.Contents(snapshot), "Transfer complete: Connected to Tier 2")
	assert.Equal(t, 0, snapshot.Stats.APICalls)

	var spoken bool
	for _, event := range snapshot.Events {
		if event.NodeID == assistant && event.Category == models.EventCategoryVoice {
			spoken = true

			assert.Contains(t, event.Content, "[Ava]")
		}
	}

	assert.True(t, spoken)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func TestEngine_PublishesRunEvents(t *testing.T) {
	b := newFlowBuilder(t)
	end := b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), end, graph.HandleDefault)

	publisher := &recordingPublisher{}

	run, err := New(WithPublisher(publisher)).Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	require.NotEmpty(t, publisher.events)
	assert.Equal(t, events.RunStartedEvent, publisher.events[0].GetType())

	ended, ok := publisher.events[len(publisher.events)-1].(events.RunEnded)
	require.True(t, ok)
	assert.Equal(t, run.ID(), ended.RunID)
	assert.Equal(t, models.OutcomePassed, ended.Stats.Outcome)

	logged := 0
	for _, event := range publisher.events {
		if event.GetType() == events.RunLoggedEvent {
			logged++
		}
	}

	assert.Equal(t, len(run.Snapshot().Events), logged)
}

func TestEngine_TracesEveryDispatch(t *testing.T) {
	b := newFlowBuilder(t)
	end := b.Node(models.NodeTypeEnd, nil)
	b.Edge(b.Start(), end, graph.HandleDefault)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	run, err := New(WithTracer(provider.Tracer("test"))).Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelhelper.NodeTypeKey, string(models.NodeTypeStart)))
	assert.Contains(t, spans[1].Attributes(), attribute.String(otelhelper.NodeIDKey, end))
	assert.Contains(t, spans[1].Attributes(), attribute.String(otelhelper.RunIDKey, run.ID()))
}

func TestEngine_ClockDrivesElapsedTime(t *testing.T) {
	b := newFlowBuilder(t)
	condition := b.Node(models.NodeTypeCondition, &models.ConditionData{Operator: models.OperatorEquals})
	b.Edge(b.Start(), condition, graph.HandleDefault)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	run, err := New(WithClock(clock)).Start(context.Background(), b.Flow, models.ChannelVoice)
	require.NoError(t, err)

	now = now.Add(42 * time.Second)

	snapshot := run.Snapshot()
	assert.Equal(t, 42*time.Second, snapshot.Stats.ElapsedTime)
	assert.Equal(t, 42*time.Second, snapshot.Call.Duration)

	require.NoError(t, run.EndCall(context.Background()))
	assert.Contains(t, testutil.Contents(run.Snapshot()), "Call ended by caller (duration 42s)")
}

func TestRun_RendersVariablesIntoText(t *testing.T) {
	b := newFlowBuilder(t)
	condition := b.Condition("intent", models.OperatorContains, "refund")
	reply := b.Message("Sure, let me look into your {{ .intent }} request")
	whatsapp := b.Node(models.NodeTypeWhatsApp, &models.ChannelSendData{MessageTemplate: "Ticket opened: {{ upper .intent }}"})
	end := b.End()
	b.Edge(b.Start(), condition, graph.HandleDefault)
	b.Edge(condition, reply, graph.HandleYes)
	b.Chain(reply, whatsapp, end)

	run, err := New(WithInvokers(simulate.Invokers(simulate.NewSeededSource(3), 0))).Start(context.Background(), b.Flow, models.ChannelChat)
	require.NoError(t, err)
	require.NoError(t, run.SubmitText(context.Background(), "refund"))

	snapshot := run.Snapshot()
	assert.Equal(t, models.RunStateEnded, snapshot.State)
	findEvent(t, snapshot, "Sure, let me look into your refund request")
	findEvent(t, snapshot, "Message sent via WhatsApp: Ticket opened: REFUND")

	stored, ok := b.Flow.Node(whatsapp).Data.(*models.ChannelSendData)
	require.True(t, ok)
	assert.Equal(t, "Ticket opened: {{ upper .intent }}", stored.MessageTemplate)
}
