package cache

import (
	"context"
	"time"
)

// BytesCache — кэш сериализованных снимков. ok=false означает промах, а не ошибку.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Limiter ограничивает частоту операций по ключу в окне.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

func TrackingKey(deliveryID string) string {
	return "tracking:" + deliveryID
}

func RateKey(scope, id string) string {
	return "rl:" + scope + ":" + id
}
