package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
)

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is the deployment cache backend.
type Redis struct {
	client *redis.Client
}

// NewRedis connects and verifies the backend with a ping.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, faults.Wrap(faults.KindNetwork, "cache.connect", err)
	}

	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (domain.Evaluation, error) {
	var eval domain.Evaluation

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return eval, ErrMiss
	}
	if err != nil {
		return eval, faults.Wrap(faults.KindNetwork, "cache.get", err)
	}

	if err := json.Unmarshal(data, &eval); err != nil {
		// A corrupt entry is indistinguishable from a miss for callers.
		return eval, ErrMiss
	}
	return eval, nil
}

func (r *Redis) Set(ctx context.Context, key string, value domain.Evaluation, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return faults.Wrap(faults.KindNetwork, "cache.set", err)
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, faults.Wrap(faults.KindNetwork, "cache.exists", err)
	}
	return n > 0, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
