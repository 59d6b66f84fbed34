// Package studio is the editing session of a single operator: the selected flow,
// its unsaved edits, the pending connection gesture and the active simulated run.
package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/convoflow/pkg/engine"
	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/registry"
	"github.com/dukex/convoflow/pkg/services"
)

var (
	ErrNoFlowSelected = errors.New("no flow selected")
	ErrNoActiveRun    = errors.New("no active run")
)

// Session holds the live copy of the selected flow. Edits stay in memory until SaveDraft or PublishFlow.
type Session struct {
	logger     *slog.Logger
	flows      *services.Flow
	publishing *services.Publishing
	registry   *registry.Registry
	engine     *engine.Engine

	connector graph.Connector

	mu           sync.Mutex
	flow         *models.Flow
	baseline     []byte
	selectedNode string
	run          *engine.Run
}

func NewSession(
	flows *services.Flow,
	publishing *services.Publishing,
	registry *registry.Registry,
	engine *engine.Engine,
	logger *slog.Logger,
) *Session {
	return &Session{
		logger:     logger.With("module", "studio"),
		flows:      flows,
		publishing: publishing,
		registry:   registry,
		engine:     engine,
	}
}

// SelectFlow loads a flow, makes it the live flow and baselines it. Any active run is discarded.
func (s *Session) SelectFlow(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := s.flows.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectLocked(ctx, flow)

	return flow.Clone(), nil
}

// CreateFlow stores a new flow and selects it.
func (s *Session) CreateFlow(ctx context.Context, req services.CreateFlowRequest) (*models.Flow, error) {
	flow, err := s.flows.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectLocked(ctx, flow)

	return flow.Clone(), nil
}

// DuplicateFlow stores a copy of a flow and selects the copy.
func (s *Session) DuplicateFlow(ctx context.Context, id string) (*models.Flow, error) {
	clone, err := s.flows.Duplicate(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectLocked(ctx, clone)

	return clone.Clone(), nil
}

// DeleteFlow removes a flow. Deleting the selected flow clears the selection.
func (s *Session) DeleteFlow(ctx context.Context, id string) error {
	if err := s.flows.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow != nil && s.flow.ID == id {
		s.resetRunLocked(ctx)
		s.flow = nil
		s.baseline = nil
		s.selectedNode = ""
		s.connector.Cancel()
	}

	return nil
}

// Flow returns a copy of the live flow.
func (s *Session) Flow() (*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return nil, ErrNoFlowSelected
	}

	return s.flow.Clone(), nil
}

// HasUnsavedChanges reports whether the live nodes or edges differ from the last baseline.
func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return false
	}

	return !bytes.Equal(s.baseline, canonical(s.flow))
}

func (s *Session) AddNode(nodeType models.NodeType, position models.Position) (*models.Node, error) {
	var node *models.Node

	err := s.edit(func(flow *models.Flow) error {
		var data models.NodeData

		if nodeType.Valid() {
			defaults, err := s.registry.Defaults(nodeType)
			if err != nil {
				return err
			}

			data = defaults
		}

		added, err := graph.AddNode(flow, nodeType, position, data)
		node = added

		return err
	})

	return cloneNode(node), err
}

func (s *Session) DuplicateNode(nodeID string) (*models.Node, error) {
	var node *models.Node

	err := s.edit(func(flow *models.Flow) error {
		clone, err := graph.DuplicateNode(flow, nodeID)
		node = clone

		return err
	})

	return cloneNode(node), err
}

// UpdateNodeData merges partial into a node's data. The merged data must satisfy the node type's schema.
func (s *Session) UpdateNodeData(nodeID string, partial map[string]any) (*models.Node, error) {
	var node *models.Node

	err := s.edit(func(flow *models.Flow) error {
		if existing := flow.Node(nodeID); existing != nil {
			if merged, err := graph.MergeNodeData(existing, partial); err == nil {
				if err := s.registry.ValidateData(existing.Type, merged); err != nil {
					return services.NewValidationError("UpdateNodeData", "INVALID_NODE_DATA", err.Error(), err)
				}
			}
		}

		updated, err := graph.UpdateNodeData(flow, nodeID, partial)
		node = updated

		return err
	})

	return cloneNode(node), err
}

func (s *Session) DeleteNode(nodeID string) error {
	return s.edit(func(flow *models.Flow) error {
		if err := graph.DeleteNode(flow, nodeID); err != nil {
			return err
		}

		if s.selectedNode == nodeID {
			s.selectedNode = ""
		}

		return nil
	})
}

func (s *Session) MoveNode(nodeID string, position models.Position) error {
	return s.edit(func(flow *models.Flow) error {
		return graph.MoveNode(flow, nodeID, position)
	})
}

// AddEdge connects source to target. A pending connection started at source supplies the branch handle
// and is completed by the call.
func (s *Session) AddEdge(source, target string) (*models.Edge, error) {
	var edge *models.Edge

	err := s.edit(func(flow *models.Flow) error {
		added, err := graph.AddEdge(flow, source, target, s.connector.HandleFor(source))
		if err != nil {
			return err
		}

		if pending, ok := s.connector.Pending(); ok && pending.From == source {
			s.connector.Complete()
		}

		edge = added

		return nil
	})
	if err != nil {
		return nil, err
	}

	clone := *edge

	return &clone, nil
}

func (s *Session) DeleteEdge(edgeID string) error {
	return s.edit(func(flow *models.Flow) error {
		return graph.DeleteEdge(flow, edgeID)
	})
}

// StartConnect begins a connection gesture from a node's output handle.
func (s *Session) StartConnect(nodeID string, handle graph.Handle) {
	s.connector.Start(nodeID, handle)
}

func (s *Session) CancelConnect() {
	s.connector.Cancel()
}

// PendingConnection returns the connection gesture in progress, if any.
func (s *Session) PendingConnection() (graph.Pending, bool) {
	return s.connector.Pending()
}

// SelectNode marks a node as selected in the editor. An empty id clears the selection.
func (s *Session) SelectNode(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return ErrNoFlowSelected
	}

	if nodeID != "" && s.flow.Node(nodeID) == nil {
		return fmt.Errorf("select node %s: %w", nodeID, graph.ErrNodeNotFound)
	}

	s.selectedNode = nodeID

	return nil
}

func (s *Session) SelectedNode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selectedNode
}

// SaveDraft persists the live flow and re-baselines it. No version is created.
func (s *Session) SaveDraft(ctx context.Context) (*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return nil, ErrNoFlowSelected
	}

	draft := s.flow.Clone()
	if err := s.flows.Save(ctx, draft); err != nil {
		return nil, err
	}

	s.flow = draft
	s.baseline = canonical(draft)

	return draft.Clone(), nil
}

// PublishFlow freezes the live flow into a new version and re-baselines it.
func (s *Session) PublishFlow(ctx context.Context, changelog, author string) (*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return nil, ErrNoFlowSelected
	}

	version, err := s.publishing.PublishFlow(ctx, s.flow, services.PublishRequest{Changelog: changelog, Author: author})
	if err != nil {
		return nil, err
	}

	s.baseline = canonical(s.flow)

	return version, nil
}

// RollbackToVersion sets the live flow back to draft at a previous version label.
// The graph is not restored; see RestoreVersion.
func (s *Session) RollbackToVersion(ctx context.Context, versionID string) (*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return nil, ErrNoFlowSelected
	}

	if _, err := s.publishing.RollbackFlow(ctx, s.flow, versionID); err != nil {
		return nil, err
	}

	s.baseline = canonical(s.flow)

	return s.flow.Clone(), nil
}

// RestoreVersion replaces the live graph with a version's graph and saves it as a draft.
func (s *Session) RestoreVersion(ctx context.Context, versionID string) (*models.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return nil, ErrNoFlowSelected
	}

	if _, err := s.publishing.RestoreFlow(ctx, s.flow, versionID); err != nil {
		return nil, err
	}

	s.baseline = canonical(s.flow)
	s.selectedNode = ""

	return s.flow.Clone(), nil
}

// ListVersions returns the versions of the live flow, oldest first.
func (s *Session) ListVersions() ([]*models.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return nil, ErrNoFlowSelected
	}

	versions := make([]*models.Version, 0, len(s.flow.Versions))
	for _, version := range s.flow.Versions {
		versions = append(versions, version.Clone())
	}

	return versions, nil
}

// StartRun discards any previous run and simulates the live flow, including unsaved edits.
// It returns once the run suspends or ends.
func (s *Session) StartRun(ctx context.Context, channel models.Channel) (models.RunSnapshot, error) {
	s.mu.Lock()

	if s.flow == nil {
		s.mu.Unlock()

		return models.RunSnapshot{}, ErrNoFlowSelected
	}

	s.resetRunLocked(ctx)

	run, err := s.engine.NewRun(s.flow, channel)
	if err != nil {
		s.mu.Unlock()

		return models.RunSnapshot{}, err
	}

	s.run = run
	s.mu.Unlock()

	if err := run.Start(ctx); err != nil {
		return run.Snapshot(), err
	}

	return run.Snapshot(), nil
}

// ResetRun interrupts the active run and clears it back to idle.
func (s *Session) ResetRun(ctx context.Context) error {
	run, err := s.activeRun()
	if err != nil {
		return err
	}

	run.Reset(ctx)

	return nil
}

func (s *Session) SubmitTextInput(ctx context.Context, text string) (models.RunSnapshot, error) {
	run, err := s.activeRun()
	if err != nil {
		return models.RunSnapshot{}, err
	}

	err = run.SubmitText(ctx, text)

	return run.Snapshot(), err
}

func (s *Session) SubmitDigits(ctx context.Context, digits string) (models.RunSnapshot, error) {
	run, err := s.activeRun()
	if err != nil {
		return models.RunSnapshot{}, err
	}

	err = run.SubmitDigits(ctx, digits)

	return run.Snapshot(), err
}

// EndCall hangs up the active voice run.
func (s *Session) EndCall(ctx context.Context) (models.RunSnapshot, error) {
	run, err := s.activeRun()
	if err != nil {
		return models.RunSnapshot{}, err
	}

	err = run.EndCall(ctx)

	return run.Snapshot(), err
}

// Run returns the state of the active run.
func (s *Session) Run() (models.RunSnapshot, error) {
	run, err := s.activeRun()
	if err != nil {
		return models.RunSnapshot{}, err
	}

	return run.Snapshot(), nil
}

// edit applies a graph mutation to the live flow. Mutations are all-or-nothing.
func (s *Session) edit(fn func(flow *models.Flow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return ErrNoFlowSelected
	}

	return fn(s.flow)
}

func (s *Session) activeRun() (*engine.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return nil, ErrNoActiveRun
	}

	return s.run, nil
}

func (s *Session) selectLocked(ctx context.Context, flow *models.Flow) {
	s.resetRunLocked(ctx)

	s.flow = flow.Clone()
	s.baseline = canonical(s.flow)
	s.selectedNode = ""
	s.connector.Cancel()

	s.logger.DebugContext(ctx, "Flow selected", "flow_id", flow.ID)
}

func (s *Session) resetRunLocked(ctx context.Context) {
	if s.run == nil {
		return
	}

	s.run.Reset(ctx)
	s.run = nil
}

// canonical is the JSON form of a flow's graph used for dirty tracking.
func canonical(flow *models.Flow) []byte {
	raw, err := json.Marshal(struct {
		Nodes []*models.Node `json:"nodes"`
		Edges []*models.Edge `json:"edges"`
	}{flow.Nodes, flow.Edges})
	if err != nil {
		return nil
	}

	return raw
}

func cloneNode(node *models.Node) *models.Node {
	if node == nil {
		return nil
	}

	return node.Clone()
}
