// Package persistence provides the data storage abstraction layer for flows.
package persistence

import (
	"context"
	"slices"
	"strings"

	"github.com/dukex/convoflow/pkg/models"
)

// Persistence stores flows together with their nodes, edges and versions.
// Implementations hand out copies: mutating a returned flow never changes stored state.
type Persistence interface {
	Flows(ctx context.Context) ([]*models.Flow, error)
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	SaveFlow(ctx context.Context, flow *models.Flow) error
	DeleteFlow(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// SortFlows orders flows by creation time, oldest first, breaking ties by id.
func SortFlows(flows []*models.Flow) {
	slices.SortFunc(flows, func(a, b *models.Flow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})
}
