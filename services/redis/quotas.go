package redis

import (
	"context"
	"fmt"

	redis_utils "Mobius/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

// SpendWhisper consumes one whisper of identity for the round. Returns false
// when the quota was already used up.
func (rc *RedisClient) SpendWhisper(ctx context.Context, roomCode string, epoch, round int, identity string, limit int) (bool, error) {
	key := redis_utils.FormatWhisperKey(roomCode, epoch, round, identity)
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, roundTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("error spending whisper: %w", err)
	}
	return incr.Val() <= int64(limit), nil
}

var openPlaceScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	return 1
end
if redis.call('SCARD', KEYS[1]) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

// OpenPlace takes a viewer slot on a place. Returns false when capacity
// viewers already hold it. Re-opening by a current viewer succeeds.
func (rc *RedisClient) OpenPlace(ctx context.Context, roomCode string, epoch, round int, placeID uint, identity string, capacity int) (bool, error) {
	key := redis_utils.FormatPlaceViewersKey(roomCode, epoch, round, placeID)
	ok, err := openPlaceScript.Run(ctx, rc.client, []string{key}, identity, capacity, int(roundTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("error opening place: %w", err)
	}
	return ok == 1, nil
}

func (rc *RedisClient) ClosePlace(ctx context.Context, roomCode string, epoch, round int, placeID uint, identity string) error {
	key := redis_utils.FormatPlaceViewersKey(roomCode, epoch, round, placeID)
	if err := rc.client.SRem(ctx, key, identity).Err(); err != nil {
		return fmt.Errorf("error closing place: %w", err)
	}
	return nil
}

func (rc *RedisClient) PlaceViewers(ctx context.Context, roomCode string, epoch, round int, placeID uint) ([]string, error) {
	key := redis_utils.FormatPlaceViewersKey(roomCode, epoch, round, placeID)
	viewers, err := rc.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading place viewers: %w", err)
	}
	return viewers, nil
}
