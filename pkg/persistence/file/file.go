// Package file provides file-based persistence implementation for flows.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root     string
	flowRepo *FlowRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:     cleanRoot,
		flowRepo: NewFlowRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	return fp.flowRepo.List(ctx)
}

func (fp *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return fp.flowRepo.GetByID(ctx, id)
}

func (fp *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	return fp.flowRepo.Save(ctx, flow)
}

func (fp *Persistence) DeleteFlow(ctx context.Context, id string) error {
	return fp.flowRepo.Delete(ctx, id)
}
