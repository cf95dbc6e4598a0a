package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/infra"
)

// HealthCache хранит HealthSummary в Redis с коротким TTL.
// Это производное представление: потеря кэша означает лишь «unknown»
// до следующего раунда опроса, поэтому ошибки здесь не фатальны.
type HealthCache struct {
	rdb *redis.Client
}

func NewHealthCache(rdb *redis.Client) *HealthCache {
	return &HealthCache{rdb: rdb}
}

func (c *HealthCache) Put(ctx context.Context, endpointID string, summary *domain.HealthSummary, ttl time.Duration) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("rediscache: failed to marshal health summary: %w", err)
	}
	if err := c.rdb.Set(ctx, infra.GetHealthKey(endpointID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("rediscache: failed to store health summary: %w", err)
	}
	return nil
}

// Get возвращает nil без ошибки, если ключ истек или его еще не было.
func (c *HealthCache) Get(ctx context.Context, endpointID string) (*domain.HealthSummary, error) {
	payload, err := c.rdb.Get(ctx, infra.GetHealthKey(endpointID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("rediscache: failed to load health summary: %w", err)
	}

	var summary domain.HealthSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("rediscache: failed to unmarshal health summary: %w", err)
	}
	return &summary, nil
}
