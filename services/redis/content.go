package redis

import (
	"context"
	"errors"
	"fmt"

	redis_utils "Mobius/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

// GetContent returns the cached content blob, or nil if it is not cached.
// Key format: "content:{variant}:{part}"
func (rc *RedisClient) GetContent(ctx context.Context, variant int, part string) ([]byte, error) {
	data, err := rc.client.Get(ctx, redis_utils.FormatContentKey(variant, part)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting content: %w", err)
	}
	return data, nil
}

// SetContent caches a content blob.
// TTL: 6 hours
func (rc *RedisClient) SetContent(ctx context.Context, variant int, part string, data []byte) error {
	if err := rc.client.Set(ctx, redis_utils.FormatContentKey(variant, part), data, contentTTL).Err(); err != nil {
		return fmt.Errorf("error setting content: %w", err)
	}
	return nil
}
