package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache is the blob cache used on the instance retrieval path.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// InstanceKey builds the cache key for one stored instance blob.
func InstanceKey(sopInstanceUID string) string {
	return "instance:" + sopInstanceUID + ":blob"
}
