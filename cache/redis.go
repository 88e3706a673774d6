package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/runforge/execengine/telemetry"
)

// redisStore is a Store backed by Redis, suitable for multi-process
// deployments where the artifact and result caches must be shared.
type redisStore struct {
	client  *redis.Client
	metrics telemetry.Metrics
}

// NewRedisStore returns a Store backed by client. metrics may be nil, in
// which case hit/miss counters are not recorded.
func NewRedisStore(client *redis.Client, metrics telemetry.Metrics) Store {
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &redisStore{client: client, metrics: metrics}
}

func (s *redisStore) GetByKey(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.IncCounter("cache_miss", map[string]string{"backend": "redis"})
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.metrics.IncCounter("cache_hit", map[string]string{"backend": "redis"})
	return data, true, nil
}

func (s *redisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
