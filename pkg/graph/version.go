package graph

import (
	"fmt"
	"time"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/google/uuid"
)

// NextVersionLabel increments the major number of a "vMAJOR.MINOR" label and resets the minor.
func NextVersionLabel(current string) (string, error) {
	if current == "" {
		current = models.InitialVersion
	}

	var major, minor int

	_, err := fmt.Sscanf(current, "v%d.%d", &major, &minor)
	if err != nil || major < 0 || minor < 0 || fmt.Sprintf("v%d.%d", major, minor) != current {
		return "", newValidationError("NextVersionLabel", "INVALID_VERSION_LABEL", ErrInvalidVersionLabel, "cannot parse version label %q", current)
	}

	return fmt.Sprintf("v%d.0", major+1), nil
}

// Publish checks the flow's invariants and appends an immutable version holding a copy of its graph.
// The flow becomes published at the new version label.
func Publish(flow *models.Flow, changelog, author string, now time.Time) (*models.Version, error) {
	if err := Validate(flow); err != nil {
		return nil, err
	}

	label, err := NextVersionLabel(flow.CurrentVersion)
	if err != nil {
		return nil, err
	}

	version := &models.Version{
		ID:        uuid.NewString(),
		Label:     label,
		CreatedAt: now,
		Author:    author,
		Status:    models.FlowStatusPublished,
		Nodes:     models.CloneNodes(flow.Nodes),
		Edges:     models.CloneEdges(flow.Edges),
		Changelog: changelog,
	}

	flow.Versions = append(flow.Versions, version)
	flow.Status = models.FlowStatusPublished
	flow.CurrentVersion = label
	flow.UpdatedAt = now

	return version, nil
}

// FindVersion returns the version with the given id.
func FindVersion(flow *models.Flow, versionID string) (*models.Version, error) {
	for _, version := range flow.Versions {
		if version.ID == versionID {
			return version, nil
		}
	}

	return nil, newValidationError("FindVersion", "VERSION_NOT_FOUND", ErrVersionNotFound, "version %s not found", versionID)
}

// Rollback points the flow's current version label at a previous version and marks it draft.
// Nodes and edges are left as they are; use Restore to bring back a version's graph.
func Rollback(flow *models.Flow, versionID string, now time.Time) (*models.Version, error) {
	version, err := FindVersion(flow, versionID)
	if err != nil {
		return nil, err
	}

	flow.Status = models.FlowStatusDraft
	flow.CurrentVersion = version.Label
	flow.UpdatedAt = now

	return version, nil
}

// Restore replaces the flow's nodes and edges with a copy of a version's graph and marks it draft.
func Restore(flow *models.Flow, versionID string, now time.Time) (*models.Version, error) {
	version, err := FindVersion(flow, versionID)
	if err != nil {
		return nil, err
	}

	flow.Nodes = models.CloneNodes(version.Nodes)
	flow.Edges = models.CloneEdges(version.Edges)
	flow.Status = models.FlowStatusDraft
	flow.CurrentVersion = version.Label
	flow.UpdatedAt = now

	return version, nil
}
