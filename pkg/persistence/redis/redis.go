// Package redis provides Redis persistence implementation for flows.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/convoflow/pkg/models"
	"github.com/dukex/convoflow/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "convoflow:flow:"
	indexKey  = "convoflow:flows"
)

// Persistence stores each flow as a JSON value under convoflow:flow:<id>
// and keeps the set of ids under convoflow:flows.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewPersistence connects to the Redis server described by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	p := NewPersistenceWithClient(logger, redis.NewClient(options))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.HealthCheck(pingCtx)
	if err != nil {
		_ = p.client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return p, nil
}

// NewPersistenceWithClient wraps an existing client.
func NewPersistenceWithClient(logger *slog.Logger, client redis.UniversalClient) *Persistence {
	return &Persistence{client: client, logger: logger}
}

func flowKey(id string) string {
	return keyPrefix + id
}

func (p *Persistence) Flows(ctx context.Context) ([]*models.Flow, error) {
	ids, err := p.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list flow ids: %w", err)
	}

	flows := make([]*models.Flow, 0, len(ids))
	if len(ids) == 0 {
		return flows, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, flowKey(id))
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch flows: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Flow listed in index but missing", "flow_id", ids[i])

			continue
		}

		flow, err := decodeFlow(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode flow %s: %w", ids[i], err)
		}

		flows = append(flows, flow)
	}

	persistence.SortFlows(flows)

	return flows, nil
}

func (p *Persistence) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	raw, err := p.client.Get(ctx, flowKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewFlowError("FlowByID", id, persistence.ErrFlowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch flow %s: %w", id, err)
	}

	flow, err := decodeFlow(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", id, err)
	}

	return flow, nil
}

func (p *Persistence) SaveFlow(ctx context.Context, flow *models.Flow) error {
	if flow == nil || flow.ID == "" {
		return persistence.NewFlowError("SaveFlow", "", persistence.ErrInvalidFlow)
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal flow %s: %w", flow.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, flowKey(flow.ID), data, 0)
		pipe.SAdd(ctx, indexKey, flow.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save flow %s: %w", flow.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteFlow(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, flowKey(id))
		pipe.SRem(ctx, indexKey, id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewFlowError("DeleteFlow", id, persistence.ErrFlowNotFound)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func decodeFlow(raw string) (*models.Flow, error) {
	var flow models.Flow

	err := json.Unmarshal([]byte(raw), &flow)
	if err != nil {
		return nil, err
	}

	return &flow, nil
}
