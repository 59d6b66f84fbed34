package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/convoflow/pkg/eventbus"
	"github.com/dukex/convoflow/pkg/events"
	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
)

var (
	// ErrFlowNotFound is returned when a flow is not found.
	ErrFlowNotFound = persistence.ErrFlowNotFound
)

type Flow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewFlow creates a new flow service. publisher may be nil.
func NewFlow(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Flow {
	return &Flow{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "flow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateFlowRequest contains the metadata of a new flow.
type CreateFlowRequest struct {
	Name        string
	Description string
	Category    string
}

// Create stores a new draft flow holding a single start node.
func (f *Flow) Create(ctx context.Context, req CreateFlowRequest) (*models.Flow, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("Create", "FLOW_NAME_REQUIRED", "flow name is required", ErrFlowNameRequired)
	}

	flow := graph.NewFlow(name, req.Description, req.Category, time.Now().UTC())

	if err := f.persistence.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	f.publishCreated(ctx, flow)

	return flow, nil
}

// Duplicate stores a draft copy of a flow without its version history.
func (f *Flow) Duplicate(ctx context.Context, id string) (*models.Flow, error) {
	original, err := f.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := graph.DuplicateFlow(original, time.Now().UTC())

	if err := f.persistence.SaveFlow(ctx, clone); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	f.publishCreated(ctx, clone)

	return clone, nil
}

// Delete removes a flow.
func (f *Flow) Delete(ctx context.Context, id string) error {
	if err := f.persistence.DeleteFlow(ctx, id); err != nil {
		return err
	}

	publish(ctx, f.logger, f.publisher, id, events.FlowDeleted{
		BaseEvent: events.NewBaseEvent(events.FlowDeletedEvent, id),
	})

	return nil
}

// ListFlowsRequest contains options for listing flows.
type ListFlowsRequest struct {
	// Filtering
	Status   *models.FlowStatus
	Category string
}

// List retrieves flows, oldest first, optionally filtered by status and category.
func (f *Flow) List(ctx context.Context, req ListFlowsRequest) ([]*models.Flow, error) {
	if req.Status != nil && *req.Status != models.FlowStatusDraft && *req.Status != models.FlowStatusPublished {
		return nil, NewValidationError("List", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	flows, err := f.persistence.Flows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	filtered := make([]*models.Flow, 0, len(flows))

	for _, flow := range flows {
		if req.Status != nil && flow.Status != *req.Status {
			continue
		}

		if req.Category != "" && !strings.EqualFold(flow.Category, req.Category) {
			continue
		}

		filtered = append(filtered, flow)
	}

	return filtered, nil
}

// FetchByID retrieves a flow by its ID.
func (f *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	flow, err := f.persistence.FlowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, persistence.NewFlowError("FetchByID", id, ErrFlowNotFound)
	}

	return flow, nil
}

// Save persists flow as a draft save: timestamps are refreshed and no version is created.
func (f *Flow) Save(ctx context.Context, flow *models.Flow) error {
	if flow == nil {
		return ErrFlowNil
	}

	flow.UpdatedAt = time.Now().UTC()

	if err := f.persistence.SaveFlow(ctx, flow); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	return nil
}

func (f *Flow) publishCreated(ctx context.Context, flow *models.Flow) {
	publish(ctx, f.logger, f.publisher, flow.ID, events.FlowCreated{
		BaseEvent: events.NewBaseEvent(events.FlowCreatedEvent, flow.ID),
		Name:      flow.Name,
		Category:  flow.Category,
	})
}

// mutate loads a flow, applies fn and saves the result. Nothing is saved when fn fails.
func mutate(ctx context.Context, store persistence.Persistence, flowID string, fn func(flow *models.Flow) error) (*models.Flow, error) {
	flow, err := store.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, persistence.NewFlowError("FlowByID", flowID, ErrFlowNotFound)
	}

	if err := fn(flow); err != nil {
		return nil, err
	}

	flow.UpdatedAt = time.Now().UTC()

	if err := store.SaveFlow(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return flow, nil
}

// publish is best effort: a failing event bus never fails the operation.
func publish(ctx context.Context, logger *slog.Logger, publisher eventbus.EventPublisher, key string, event eventbus.Event) {
	if publisher == nil {
		return
	}

	if err := publisher.Publish(ctx, key, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "flow_id", key, "error", err)
	}
}
