package cache

import (
	"context"
	"time"

	"kasapos/backend/internal/domain"
)

// AdvisoryCache stores successful advisory completions. Fallback answers
// are never cached.
type AdvisoryCache interface {
	Get(ctx context.Context, key string) (*domain.Advice, bool, error)
	Set(ctx context.Context, key string, value *domain.Advice, ttl time.Duration) error
}

type NoopAdvisoryCache struct{}

func (NoopAdvisoryCache) Get(_ context.Context, _ string) (*domain.Advice, bool, error) {
	return nil, false, nil
}

func (NoopAdvisoryCache) Set(_ context.Context, _ string, _ *domain.Advice, _ time.Duration) error {
	return nil
}
