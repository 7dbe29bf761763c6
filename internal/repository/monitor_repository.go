package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/redis/go-redis/v9"
)

// MonitorRepository carries attempt lifecycle events over Redis PubSub so that
// a live view served by any instance sees joins and submissions from all of them.
type MonitorRepository struct {
	rdb *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{rdb: rdb}
}

// Publish sends ev on its session's channel.
func (r *MonitorRepository) Publish(ctx context.Context, ev model.MonitorEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.rdb.Publish(ctx, config.CacheKey.SessionMonitorChannel(ev.SessionID.String()), body).Err()
}

// Subscribe opens a subscription to a session's channel. The caller must Close it.
func (r *MonitorRepository) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return r.rdb.Subscribe(ctx, config.CacheKey.SessionMonitorChannel(sessionID.String()))
}
