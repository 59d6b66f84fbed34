package persistence_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		flowErr := persistence.NewFlowError("FlowByID", "flow-123", persistence.ErrFlowNotFound)
		versionErr := fmt.Errorf("rollback: %w", persistence.ErrVersionNotFound)

		assert.True(t, persistence.IsFlowNotFound(flowErr))
		assert.True(t, persistence.IsVersionNotFound(versionErr))
		assert.True(t, persistence.IsNotFound(flowErr))
		assert.True(t, persistence.IsNotFound(persistence.ErrEdgeNotFound))
		assert.False(t, persistence.IsNotFound(persistence.ErrInvalidFlow))

		assert.True(t, errors.Is(flowErr, persistence.ErrFlowNotFound))
	})

	t.Run("flow error contains context", func(t *testing.T) {
		err := persistence.NewFlowError("DeleteFlow", "flow-123", persistence.ErrFlowNotFound)

		assert.Contains(t, err.Error(), "DeleteFlow")
		assert.Contains(t, err.Error(), "flow-123")
		assert.Contains(t, err.Error(), "flow not found")
	})
}

func TestSortFlows(t *testing.T) {
	t.Parallel()

	now := time.Now()
	flows := []*models.Flow{
		{ID: "c", CreatedAt: now.Add(time.Minute)},
		{ID: "b", CreatedAt: now},
		{ID: "a", CreatedAt: now},
	}

	persistence.SortFlows(flows)

	assert.Equal(t, []string{"a", "b", "c"}, []string{flows[0].ID, flows[1].ID, flows[2].ID})
}
