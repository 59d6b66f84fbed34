// Package flowfile reads and writes flows as JSON or YAML documents.
package flowfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dukex/convoflow/pkg/graph"
	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/registry"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown flow file format")

// DetectFormat picks the format from the file extension, falling back to the first non-blank byte.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}

	return FormatYAML
}

// Load reads a flow document from disk.
func Load(path string) (*models.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
	}

	flow, err := Decode(data, DetectFormat(path, data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode flow file %s: %w", path, err)
	}

	return flow, nil
}

// Decode parses a flow document and fills in ids, status and timestamps a hand-written file may omit.
func Decode(data []byte, format Format) (*models.Flow, error) {
	raw := data

	switch format {
	case FormatJSON:
	case FormatYAML:
		var document map[string]any
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, err
		}

		converted, err := json.Marshal(document)
		if err != nil {
			return nil, err
		}

		raw = converted
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	var flow models.Flow
	if err := json.Unmarshal(raw, &flow); err != nil {
		return nil, err
	}

	normalize(&flow, time.Now().UTC())

	return &flow, nil
}

// Encode writes a flow in the given format.
func Encode(flow *models.Flow, format Format) ([]byte, error) {
	raw, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return raw, nil
	case FormatYAML:
		var document map[string]any
		if err := json.Unmarshal(raw, &document); err != nil {
			return nil, err
		}

		return yaml.Marshal(document)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Validate checks the graph invariants and every node's data against its schema.
func Validate(flow *models.Flow, reg *registry.Registry) error {
	return errors.Join(graph.Validate(flow), reg.ValidateFlow(flow))
}

func normalize(flow *models.Flow, now time.Time) {
	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}

	if flow.Status == "" {
		flow.Status = models.FlowStatusDraft
	}

	if flow.CurrentVersion == "" {
		flow.CurrentVersion = models.InitialVersion
	}

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	if flow.UpdatedAt.IsZero() {
		flow.UpdatedAt = flow.CreatedAt
	}

	if flow.Nodes == nil {
		flow.Nodes = []*models.Node{}
	}

	if flow.Edges == nil {
		flow.Edges = []*models.Edge{}
	}

	if flow.Versions == nil {
		flow.Versions = []*models.Version{}
	}

	for _, edge := range flow.Edges {
		if edge.ID == "" {
			edge.ID = uuid.NewString()
		}
	}
}
