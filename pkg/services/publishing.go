// Package services provides flow publishing functionality with immutable versions.
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
	"github.com/dukex/convoflow/pkg/registry"
)

// PublishRequest describes a new version.
type PublishRequest struct {
	Changelog string
	Author    string
}

// Publishing handles flow publishing operations.
type Publishing struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewPublishing creates a new flow publishing service. publisher may be nil.
func NewPublishing(persistence persistence.Persistence, registry *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger) *Publishing {
	return &Publishing{
		persistence: persistence,
		registry:    registry,
		publisher:   publisher,
		logger:      logger.With("module", "publishing_service"),
	}
}

// Publish freezes the stored flow into a new version.
func (p *Publishing) Publish(ctx context.Context, flowID string, req PublishRequest) (*models.Flow, *models.Version, error) {
	flow, err := p.fetch(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	version, err := p.PublishFlow(ctx, flow, req)
	if err != nil {
		return nil, nil, err
	}

	return flow, version, nil
}

// PublishFlow validates flow, appends an immutable version with the next major label and saves it.
// flow is updated in place.
func (p *Publishing) PublishFlow(ctx context.Context, flow *models.Flow, req PublishRequest) (*models.Version, error) {
	if err := p.validateForPublishing(flow); err != nil {
		return nil, fmt.Errorf("flow validation failed: %w", err)
	}

	candidate := flow.Clone()

	version, err := graph.Publish(candidate, req.Changelog, req.Author, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("flow validation failed: %w", err)
	}

	if err := p.persistence.SaveFlow(ctx, candidate); err != nil {
		return nil, fmt.Errorf("failed to publish flow: %w", err)
	}

	*flow = *candidate

	p.logger.InfoContext(ctx, "Flow published", "flow_id", flow.ID, "version", version.Label)

	publish(ctx, p.logger, p.publisher, flow.ID, events.FlowPublished{
		BaseEvent: events.NewBaseEvent(events.FlowPublishedEvent, flow.ID),
		VersionID: version.ID,
		Label:     version.Label,
		Author:    version.Author,
		Changelog: version.Changelog,
	})

	return version, nil
}

// Versions lists the published versions of a flow, oldest first.
func (p *Publishing) Versions(ctx context.Context, flowID string) ([]*models.Version, error) {
	flow, err := p.fetch(ctx, flowID)
	if err != nil {
		return nil, err
	}

	return flow.Versions, nil
}

// Rollback points the stored flow's current version label at versionID and marks it draft.
func (p *Publishing) Rollback(ctx context.Context, flowID, versionID string) (*models.Flow, error) {
	flow, err := p.fetch(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if _, err := p.RollbackFlow(ctx, flow, versionID); err != nil {
		return nil, err
	}

	return flow, nil
}

// RollbackFlow moves flow's version label back and saves it. Nodes and edges keep their current content.
func (p *Publishing) RollbackFlow(ctx context.Context, flow *models.Flow, versionID string) (*models.Version, error) {
	candidate := flow.Clone()

	version, err := graph.Rollback(candidate, versionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := p.persistence.SaveFlow(ctx, candidate); err != nil {
		return nil, fmt.Errorf("failed to roll back flow: %w", err)
	}

	*flow = *candidate

	p.logger.WarnContext(ctx, "Flow rolled back without restoring content; use restore to bring back the version's graph",
		"flow_id", flow.ID, "version", version.Label)

	publish(ctx, p.logger, p.publisher, flow.ID, events.FlowRolledBack{
		BaseEvent: events.NewBaseEvent(events.FlowRolledBackEvent, flow.ID),
		VersionID: version.ID,
		Label:     version.Label,
	})

	return version, nil
}

// Restore replaces the stored flow's graph with the content of versionID, as a draft.
func (p *Publishing) Restore(ctx context.Context, flowID, versionID string) (*models.Flow, error) {
	flow, err := p.fetch(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if _, err := p.RestoreFlow(ctx, flow, versionID); err != nil {
		return nil, err
	}

	return flow, nil
}

// RestoreFlow replaces flow's nodes and edges with a version's and saves it.
func (p *Publishing) RestoreFlow(ctx context.Context, flow *models.Flow, versionID string) (*models.Version, error) {
	candidate := flow.Clone()

	version, err := graph.Restore(candidate, versionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := p.persistence.SaveFlow(ctx, candidate); err != nil {
		return nil, fmt.Errorf("failed to restore flow: %w", err)
	}

	*flow = *candidate

	p.logger.InfoContext(ctx, "Flow restored", "flow_id", flow.ID, "version", version.Label)

	publish(ctx, p.logger, p.publisher, flow.ID, events.FlowRestored{
		BaseEvent: events.NewBaseEvent(events.FlowRestoredEvent, flow.ID),
		VersionID: version.ID,
		Label:     version.Label,
	})

	return version, nil
}

func (p *Publishing) fetch(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := p.persistence.FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow == nil {
		return nil, persistence.NewFlowError("FlowByID", flowID, ErrFlowNotFound)
	}

	return flow, nil
}

// validateForPublishing ensures a flow is ready to be published.
func (p *Publishing) validateForPublishing(flow *models.Flow) error {
	if flow == nil {
		return ErrFlowNil
	}

	if strings.TrimSpace(flow.Name) == "" {
		return ErrFlowNameRequired
	}

	if p.registry != nil {
		if err := p.registry.ValidateFlow(flow); err != nil {
			return err
		}
	}

	return nil
}
