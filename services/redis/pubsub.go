package redis

import (
	"context"
	"fmt"

	redis_utils "Mobius/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

// PublishRoom fires payload on the room channel.
func (rc *RedisClient) PublishRoom(ctx context.Context, roomCode string, payload []byte) error {
	if err := rc.client.Publish(ctx, redis_utils.FormatRoomChannel(roomCode), payload).Err(); err != nil {
		return fmt.Errorf("error publishing to room %s: %w", roomCode, err)
	}
	return nil
}

// SubscribeRoom subscribes to one room channel. Callers close the PubSub.
func (rc *RedisClient) SubscribeRoom(ctx context.Context, roomCode string) *redis.PubSub {
	return rc.client.Subscribe(ctx, redis_utils.FormatRoomChannel(roomCode))
}

// SubscribeAllRooms pattern-subscribes to every room channel.
func (rc *RedisClient) SubscribeAllRooms(ctx context.Context) *redis.PubSub {
	return rc.client.PSubscribe(ctx, redis_utils.RoomChannelPattern)
}
