package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/convoflow/pkg/events"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/otelhelper"
	"github.com/dukex/convoflow/pkg/protocol"
	"github.com/dukex/convoflow/pkg/template"
	"go.opentelemetry.io/otel/attribute"
)

var digitsPattern = regexp.MustCompile(`^[0-9*#]+$`)

// Run is one simulated conversation over a snapshot of a flow.
// All methods are safe for concurrent use; transitions are serialised.
type Run struct {
	engine  *Engine
	id      string
	flow    *models.Flow
	channel models.Channel
	logger  *slog.Logger

	// lifetime is cancelled by EndCall and Reset to interrupt in-flight steps.
	lifeMu   sync.Mutex
	lifetime context.Context
	cancel   context.CancelFunc

	mu sync.Mutex

	// epoch changes on every Reset so a paused step can tell its run was replaced.
	epoch     uint64
	state     models.RunState
	result    models.RunResult
	current   *models.Node
	events    []models.LogEvent
	stats     models.RunStats
	variables map[string]any
	call      *models.CallStatus
	startedAt time.Time
	endedAt   *time.Time
}

func newRun(e *Engine, id string, flow *models.Flow, channel models.Channel) *Run {
	lifetime, cancel := context.WithCancel(context.Background())

	return &Run{
		engine:    e,
		id:        id,
		flow:      flow,
		channel:   channel,
		logger:    e.logger.With("flow_id", flow.ID, "run_id", id),
		lifetime:  lifetime,
		cancel:    cancel,
		state:     models.RunStateIdle,
		stats:     models.RunStats{TotalNodes: len(flow.Nodes)},
		variables: make(map[string]any),
	}
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) FlowID() string {
	return r.flow.ID
}

func (r *Run) Channel() models.Channel {
	return r.channel
}

func (r *Run) State() models.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// EndedAt reports when the run ended, if it has.
func (r *Run) EndedAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endedAt == nil {
		return time.Time{}, false
	}

	return *r.endedAt, true
}

// SubmitText resumes a run suspended on a condition node.
func (r *Run) SubmitText(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.expect(models.RunStateWaitingForInput, ErrNotWaitingForInput); err != nil {
		return err
	}

	node := r.current

	data, _ := node.Data.(*models.ConditionData)
	if data == nil {
		data = &models.ConditionData{}
	}

	r.emit(ctx, models.EventCategoryUser, text, node.ID, "")

	if data.Variable != "" {
		r.variables[data.Variable] = text
	}

	matched := evaluate(data.Operator, data.Value, text)

	branch := models.EdgeLabelNo
	if matched {
		branch = models.EdgeLabelYes
	}

	r.emit(ctx, models.EventCategorySystem,
		fmt.Sprintf("Condition %s %s %q evaluated to %s", data.Variable, data.Operator, data.Value, branch),
		node.ID, models.EventStatusSuccess)

	r.state = models.RunStateRunning

	return r.moveTo(ctx, r.branch(node, data, matched))
}

// SubmitDigits resumes a run suspended on a DTMF node. Digits beyond the node's maximum are dropped.
func (r *Run) SubmitDigits(ctx context.Context, digits string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.expect(models.RunStateWaitingForDTMF, ErrNotWaitingForDigits); err != nil {
		return err
	}

	if !digitsPattern.MatchString(digits) {
		return fmt.Errorf("%w: %q", ErrInvalidDigits, digits)
	}

	node := r.current

	data, _ := node.Data.(*models.DTMFData)
	if data == nil {
		data = &models.DTMFData{}
	}

	if data.MaxDigits > 0 && len(digits) > data.MaxDigits {
		digits = digits[:data.MaxDigits]
	}

	r.variables["dtmf_"+node.ID] = digits

	confirmation := "Pressed " + digits
	for _, branch := range data.Branches {
		if branch.Digit == digits && branch.Label != "" {
			confirmation += " (" + branch.Label + ")"

			break
		}
	}

	r.emit(ctx, models.EventCategoryDTMF, confirmation, node.ID, models.EventStatusSuccess)

	r.state = models.RunStateRunning

	return r.moveTo(ctx, r.nextNode(node))
}

// EndCall hangs up a voice run at any point, interrupting any in-flight step.
func (r *Run) EndCall(ctx context.Context) error {
	if r.channel != models.ChannelVoice {
		return ErrNotVoiceRun
	}

	r.interruptSteps()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == models.RunStateEnded || r.state == models.RunStateIdle {
		return ErrRunEnded
	}

	nodeID := ""
	if r.current != nil {
		nodeID = r.current.ID
	}

	r.hangUp(ctx, "Call ended by caller", nodeID)
	r.finish(ctx, models.RunResultSuccess)

	return nil
}

// Reset interrupts the run and clears all of its state back to idle. The run can be started again.
func (r *Run) Reset(ctx context.Context) {
	r.interruptSteps()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.epoch++
	r.state = models.RunStateIdle
	r.result = ""
	r.current = nil
	r.events = nil
	r.stats = models.RunStats{TotalNodes: len(r.flow.Nodes)}
	r.variables = make(map[string]any)
	r.call = nil
	r.startedAt = time.Time{}
	r.endedAt = nil

	r.lifeMu.Lock()
	r.lifetime, r.cancel = context.WithCancel(context.Background())
	r.lifeMu.Unlock()

	r.logger.InfoContext(ctx, "Run reset")
}

// Snapshot returns a copy of the run's current state.
func (r *Run) Snapshot() models.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := models.RunSnapshot{
		ID:        r.id,
		FlowID:    r.flow.ID,
		Channel:   r.channel,
		State:     r.state,
		Result:    r.result,
		Events:    slices.Clone(r.events),
		Stats:     r.currentStats(),
		Call:      r.currentCall(),
		Variables: maps.Clone(r.variables),
		StartedAt: r.startedAt,
	}

	if snapshot.Events == nil {
		snapshot.Events = []models.LogEvent{}
	}

	if r.current != nil {
		snapshot.CurrentNodeID = r.current.ID
	}

	if r.endedAt != nil {
		endedAt := *r.endedAt
		snapshot.EndedAt = &endedAt
	}

	return snapshot
}

// Start drives an idle run from its start node until the first suspension or termination.
func (r *Run) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != models.RunStateIdle {
		return ErrRunStarted
	}

	r.logger.InfoContext(ctx, "Starting run", "channel", r.channel)

	r.state = models.RunStateRunning
	r.startedAt = r.engine.now()
	r.current = r.flow.StartNode()

	r.engine.publish(ctx, r.flow.ID, events.RunStarted{
		BaseEvent: r.engine.baseEvent(events.RunStartedEvent, r.flow.ID),
		RunID:     r.id,
		Channel:   r.channel,
	})

	r.emit(ctx, models.EventCategorySystem, fmt.Sprintf("Simulation started on %s", r.channel), "", models.EventStatusSuccess)

	if r.channel == models.ChannelVoice {
		connectedAt := r.startedAt
		r.call = &models.CallStatus{Active: true, StartedAt: &connectedAt}
		r.emit(ctx, models.EventCategoryVoice, "Call connected", "", models.EventStatusSuccess)
	}

	return r.advance(ctx)
}

func (r *Run) expect(state models.RunState, wrongState error) error {
	switch r.state {
	case state:
		return nil
	case models.RunStateEnded:
		return ErrRunEnded
	default:
		return wrongState
	}
}

func (r *Run) moveTo(ctx context.Context, next *models.Node) error {
	if next == nil {
		r.finish(ctx, models.RunResultSuccess)

		return nil
	}

	r.current = next

	return r.advance(ctx)
}

// advance dispatches nodes until the run suspends or ends.
func (r *Run) advance(ctx context.Context) error {
	for steps := 0; r.state == models.RunStateRunning; steps++ {
		if err := r.cancelled(ctx); err != nil {
			return r.interrupt(ctx, err)
		}

		if r.engine.maxSteps > 0 && steps >= r.engine.maxSteps {
			return r.stepLimit(ctx)
		}

		next, err := r.dispatch(ctx, r.current)
		if errors.Is(err, errStepAbandoned) {
			return nil
		}

		if err != nil {
			return r.interrupt(ctx, err)
		}

		if r.state != models.RunStateRunning {
			return nil
		}

		// A node with nowhere to go ends the run like an end node would.
		if next == nil {
			r.finish(ctx, models.RunResultSuccess)

			return nil
		}

		r.current = next
	}

	return nil
}

func (r *Run) cancelled(ctx context.Context) error {
	if err := r.life().Err(); err != nil {
		return err
	}

	return ctx.Err()
}

// stepLimit ends a run that kept moving without ever suspending.
func (r *Run) stepLimit(ctx context.Context) error {
	r.logger.WarnContext(ctx, "Run exceeded step limit", "node_id", r.current.ID, "max_steps", r.engine.maxSteps)
	r.emit(ctx, models.EventCategoryError,
		fmt.Sprintf("Simulation stopped after %d steps without waiting for input", r.engine.maxSteps),
		r.current.ID, models.EventStatusError)
	r.finish(ctx, models.RunResultError)

	return fmt.Errorf("run %s: %w", r.id, ErrStepLimit)
}

// interrupt handles a step cancelled mid-flight. EndCall and Reset finish the run themselves.
func (r *Run) interrupt(ctx context.Context, err error) error {
	if r.life().Err() != nil {
		return nil
	}

	r.logger.WarnContext(ctx, "Run interrupted", "node_id", r.current.ID, "error", err)
	r.emit(ctx, models.EventCategoryError, "Simulation interrupted: "+err.Error(), r.current.ID, models.EventStatusError)
	r.finish(ctx, models.RunResultError)

	return fmt.Errorf("run %s interrupted: %w", r.id, err)
}

func (r *Run) dispatch(ctx context.Context, node *models.Node) (*models.Node, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.engine.tracer, "engine.dispatch",
		attribute.String(otelhelper.FlowIDKey, r.flow.ID),
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.ChannelKey, string(r.channel)),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	r.stats.NodesVisited++
	r.logger.DebugContext(ctx, "Dispatching node", "node_id", node.ID, "node_type", node.Type)
	r.emit(ctx, models.EventCategorySystem, describe(node), node.ID, models.EventStatusProcessing)

	next, err := r.execute(ctx, node)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.NodeIDKey, node.ID))
	}

	return next, err
}

func (r *Run) execute(ctx context.Context, node *models.Node) (*models.Node, error) {
	switch {
	case node.Type == models.NodeTypeStart:
		return r.nextNode(node), nil

	case node.Type == models.NodeTypeMessage:
		if err := r.pause(ctx, node); err != nil {
			return nil, err
		}

		content := ""
		if data, ok := node.Data.(*models.MessageData); ok {
			content = r.render(ctx, node, data.Content)
		}

		r.emit(ctx, r.speaker(), content, node.ID, "")

		return r.nextNode(node), nil

	case node.Type == models.NodeTypeCondition:
		data, _ := node.Data.(*models.ConditionData)
		if data == nil {
			data = &models.ConditionData{}
		}

		r.emit(ctx, models.EventCategorySystem,
			fmt.Sprintf("Waiting for input: %s %s %q", data.Variable, data.Operator, data.Value),
			node.ID, models.EventStatusPending)
		r.state = models.RunStateWaitingForInput

		return nil, nil

	case node.Type == models.NodeTypeDTMF:
		data, _ := node.Data.(*models.DTMFData)
		if data == nil {
			data = &models.DTMFData{}
		}

		r.emit(ctx, r.speaker(), r.render(ctx, node, data.Prompt), node.ID, "")
		r.emit(ctx, models.EventCategoryDTMF,
			fmt.Sprintf("Waiting for up to %d digit(s), timeout %ds", data.MaxDigits, data.Timeout),
			node.ID, models.EventStatusPending)
		r.state = models.RunStateWaitingForDTMF

		return nil, nil

	case node.Type == models.NodeTypeAPICall, node.Type.IsChannelSend(), node.Type.IsTicketAction(), node.Type.IsCRMAction():
		r.stats.APICalls++

		if err := r.pause(ctx, node); err != nil {
			return nil, err
		}

		outcome, err := r.invoke(ctx, r.rendered(ctx, node))
		if err != nil {
			return nil, err
		}

		r.record(ctx, node, outcome, models.EventCategorySystem)

		return r.nextNode(node), nil

	case node.Type == models.NodeTypeAssistant:
		if err := r.pause(ctx, node); err != nil {
			return nil, err
		}

		outcome, err := r.invoke(ctx, node)
		if err != nil {
			return nil, err
		}

		r.record(ctx, node, outcome, r.speaker())

		return r.nextNode(node), nil

	case node.Type == models.NodeTypeTransfer:
		target := ""
		if data, ok := node.Data.(*models.TransferData); ok {
			target = data.TransferTo
		}

		r.emit(ctx, models.EventCategorySystem, "Transfer initiated to "+target, node.ID, models.EventStatusPending)

		if err := r.pause(ctx, node); err != nil {
			return nil, err
		}

		outcome, err := r.invoke(ctx, node)
		if err != nil {
			return nil, err
		}

		if outcome.Success {
			outcome.Detail = "Transfer complete: " + outcome.Detail
		}

		r.record(ctx, node, outcome, models.EventCategorySystem)

		return r.nextNode(node), nil

	case node.Type == models.NodeTypeEnd:
		r.hangUp(ctx, "Call ended", node.ID)
		r.emit(ctx, models.EventCategorySystem, "Conversation ended", node.ID, models.EventStatusSuccess)
		r.finish(ctx, models.RunResultSuccess)

		return nil, nil

	default:
		return r.nextNode(node), nil
	}
}

func (r *Run) pause(ctx context.Context, node *models.Node) error {
	if r.engine.pacer == nil {
		return nil
	}

	ctx, stop := r.stepContext(ctx)
	defer stop()

	// The run stays readable and interruptible while the pacer sleeps.
	epoch := r.epoch
	r.mu.Unlock()
	err := r.engine.pacer.Pause(ctx, node, r.channel)
	r.mu.Lock()

	if r.epoch != epoch || r.state != models.RunStateRunning {
		return errStepAbandoned
	}

	return err
}

// render interpolates run variables into text. A broken template is logged and sent as written.
func (r *Run) render(ctx context.Context, node *models.Node, text string) string {
	rendered, err := template.Render(text, r.variables)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to render node text", "node_id", node.ID, "error", err)
	}

	return rendered
}

// rendered returns node with its outgoing message template interpolated.
func (r *Run) rendered(ctx context.Context, node *models.Node) *models.Node {
	data, ok := node.Data.(*models.ChannelSendData)
	if !ok || !template.NeedsTemplating(data.MessageTemplate) {
		return node
	}

	copied := *node
	copied.Data = &models.ChannelSendData{MessageTemplate: r.render(ctx, node, data.MessageTemplate)}

	return &copied
}

func (r *Run) invoke(ctx context.Context, node *models.Node) (protocol.Outcome, error) {
	invoker, ok := r.engine.invokers[node.Type]
	if !ok {
		return protocol.Outcome{Success: true, Detail: displayName(node) + " completed"}, nil
	}

	ctx, stop := r.stepContext(ctx)
	defer stop()

	outcome, err := invoker.Invoke(ctx, node)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return protocol.Outcome{}, err
		}

		return protocol.Outcome{Success: false, Detail: err.Error()}, nil
	}

	return outcome, nil
}

// record logs an invocation outcome. Failures are non-fatal and only counted.
func (r *Run) record(ctx context.Context, node *models.Node, outcome protocol.Outcome, category models.EventCategory) {
	if outcome.Success {
		r.emit(ctx, category, outcome.Detail, node.ID, models.EventStatusSuccess)

		return
	}

	r.stats.Errors++
	r.logger.WarnContext(ctx, "Simulated call failed", "node_id", node.ID, "node_type", node.Type, "detail", outcome.Detail)
	r.emit(ctx, models.EventCategoryError, outcome.Detail, node.ID, models.EventStatusError)
}

// stepContext is cancelled when either ctx or the run's lifetime is.
func (r *Run) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.life(), cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// nextNode prefers the single unlabeled outgoing edge, then the first connection.
func (r *Run) nextNode(node *models.Node) *models.Node {
	var unlabeled []*models.Edge

	for _, edge := range r.flow.OutgoingEdges(node.ID) {
		if edge.Label == models.EdgeLabelNone {
			unlabeled = append(unlabeled, edge)
		}
	}

	if len(unlabeled) == 1 {
		return r.flow.Node(unlabeled[0].Target)
	}

	if connections := r.flow.Connections(node.ID); len(connections) > 0 {
		return r.flow.Node(connections[0])
	}

	return nil
}

// branch follows the labeled edge of a condition, falling back to the configured connection.
func (r *Run) branch(node *models.Node, data *models.ConditionData, matched bool) *models.Node {
	label, fallback := models.EdgeLabelNo, data.NoConnection
	if matched {
		label, fallback = models.EdgeLabelYes, data.YesConnection
	}

	for _, edge := range r.flow.OutgoingEdges(node.ID) {
		if edge.Label == label {
			return r.flow.Node(edge.Target)
		}
	}

	if fallback != "" {
		return r.flow.Node(fallback)
	}

	return nil
}

func (r *Run) life() context.Context {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	return r.lifetime
}

func (r *Run) interruptSteps() {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	r.cancel()
}

func (r *Run) hangUp(ctx context.Context, reason, nodeID string) {
	if r.call == nil || !r.call.Active {
		return
	}

	r.call.Active = false
	r.call.Duration = r.engine.now().Sub(*r.call.StartedAt)

	r.emit(ctx, models.EventCategoryVoice,
		fmt.Sprintf("%s (duration %s)", reason, r.call.Duration.Round(time.Second)),
		nodeID, models.EventStatusSuccess)
}

func (r *Run) finish(ctx context.Context, result models.RunResult) {
	r.hangUp(ctx, "Call ended", "")

	endedAt := r.engine.now()
	r.state = models.RunStateEnded
	r.result = result
	r.endedAt = &endedAt

	stats := r.currentStats()

	r.engine.publish(ctx, r.flow.ID, events.RunEnded{
		BaseEvent: r.engine.baseEvent(events.RunEndedEvent, r.flow.ID),
		RunID:     r.id,
		Result:    result,
		Stats:     stats,
	})

	r.logger.InfoContext(ctx, "Run ended",
		"result", result,
		"nodes_visited", stats.NodesVisited,
		"total_nodes", stats.TotalNodes,
		"errors", stats.Errors,
		"outcome", stats.Outcome,
	)
}

func (r *Run) emit(ctx context.Context, category models.EventCategory, content, nodeID string, status models.EventStatus) {
	event := models.LogEvent{
		ID:        watermill.NewULID(),
		Category:  category,
		Content:   content,
		NodeID:    nodeID,
		Timestamp: r.engine.now().UTC(),
		Status:    status,
	}

	r.events = append(r.events, event)

	r.engine.publish(ctx, r.flow.ID, events.RunLogged{
		BaseEvent: r.engine.baseEvent(events.RunLoggedEvent, r.flow.ID),
		RunID:     r.id,
		Entry:     event,
	})
}

func (r *Run) currentStats() models.RunStats {
	stats := r.stats

	if !r.startedAt.IsZero() {
		end := r.engine.now()
		if r.endedAt != nil {
			end = *r.endedAt
		}

		stats.ElapsedTime = end.Sub(r.startedAt)
	}

	stats.Outcome = models.OutcomePassed
	if stats.Errors > 0 {
		stats.Outcome = models.OutcomeCompletedWithErrors
	}

	return stats
}

func (r *Run) currentCall() *models.CallStatus {
	if r.call == nil {
		return nil
	}

	call := *r.call
	if call.Active {
		call.Duration = r.engine.now().Sub(*call.StartedAt)
	}

	return &call
}

func (r *Run) speaker() models.EventCategory {
	if r.channel == models.ChannelVoice {
		return models.EventCategoryVoice
	}

	return models.EventCategoryBot
}

// evaluate compares user input case-insensitively. Unknown operators never match.
func evaluate(operator models.ConditionOperator, value, input string) bool {
	switch operator {
	case models.OperatorEquals:
		return strings.EqualFold(input, value)
	case models.OperatorContains:
		return strings.Contains(strings.ToLower(input), strings.ToLower(value))
	default:
		return false
	}
}

func describe(node *models.Node) string {
	name := displayName(node)

	switch {
	case node.Type == models.NodeTypeStart:
		return "Starting conversation"
	case node.Type == models.NodeTypeAPICall:
		if data, ok := node.Data.(*models.APICallData); ok && data.URL != "" {
			return fmt.Sprintf("Calling %s %s", data.Method, data.URL)
		}

		return "Calling " + name
	case node.Type == models.NodeTypeCondition:
		return "Evaluating " + name
	case node.Type == models.NodeTypeDTMF:
		return "Collecting digits for " + name
	case node.Type.IsChannelSend():
		return "Sending message through " + name
	case node.Type.IsTicketAction():
		return "Updating ticket in " + name
	case node.Type.IsCRMAction():
		return "Syncing record with " + name
	case node.Type == models.NodeTypeEnd:
		return "Ending conversation"
	default:
		return "Executing " + name
	}
}

func displayName(node *models.Node) string {
	if node.Name != "" {
		return node.Name
	}

	return string(node.Type)
}
