// Package memory provides an in-process persistence implementation for flows.
package memory

import (
	"context"
	"sync"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface in memory.
// Flows are deep-copied on the way in and out.
type Persistence struct {
	mu    sync.RWMutex
	flows map[string]*models.Flow
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{flows: make(map[string]*models.Flow)}
}

func (p *Persistence) Flows(_ context.Context) ([]*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flows := make([]*models.Flow, 0, len(p.flows))
	for _, flow := range p.flows {
		flows = append(flows, flow.Clone())
	}

	persistence.SortFlows(flows)

	return flows, nil
}

func (p *Persistence) FlowByID(_ context.Context, id string) (*models.Flow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flow, ok := p.flows[id]
	if !ok {
		return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
	}

	return flow.Clone(), nil
}

func (p *Persistence) SaveFlow(_ context.Context, flow *models.Flow) error {
	if flow == nil || flow.ID == "" {
		return persistence.NewFlowError("SaveFlow", "", persistence.ErrInvalidFlow)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.flows[flow.ID] = flow.Clone()

	return nil
}

func (p *Persistence) DeleteFlow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.flows[id]; !ok {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	delete(p.flows, id)

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}
