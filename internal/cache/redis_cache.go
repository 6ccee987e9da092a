package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"kasapos/backend/internal/domain"
)

const keyPrefix = "kasapos:advice:"

// RedisAdvisoryCache keeps generated advice as JSON under keyPrefix with a
// per-entry TTL. Fallback answers are never stored, so a recovered generator
// is asked again on the next request.
type RedisAdvisoryCache struct {
	client *redis.Client
}

func NewRedisAdvisoryCache(addr string, password string, db int) *RedisAdvisoryCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return NewRedisAdvisoryCacheFromClient(client)
}

func NewRedisAdvisoryCacheFromClient(client *redis.Client) *RedisAdvisoryCache {
	return &RedisAdvisoryCache{client: client}
}

func (c *RedisAdvisoryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisAdvisoryCache) Close() error {
	return c.client.Close()
}

func (c *RedisAdvisoryCache) Get(ctx context.Context, key string) (*domain.Advice, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var advice domain.Advice
	if err := json.Unmarshal([]byte(val), &advice); err != nil {
		return nil, false, err
	}
	return &advice, true, nil
}

func (c *RedisAdvisoryCache) Set(ctx context.Context, key string, value *domain.Advice, ttl time.Duration) error {
	if value == nil || value.Fallback {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+key, payload, ttl).Err()
}
