package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis_models "Mobius/models/redis"
	redis_utils "Mobius/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

// TouchPresence records a heartbeat: identity -> last seen (ms) in a sorted
// set, identity -> declared name in a hash.
func (rc *RedisClient) TouchPresence(ctx context.Context, roomCode, identity, name string, at time.Time) error {
	seenKey := redis_utils.FormatPresenceKey(roomCode)
	namesKey := redis_utils.FormatPresenceNamesKey(roomCode)

	pipe := rc.client.TxPipeline()
	pipe.ZAdd(ctx, seenKey, redis.Z{Score: float64(at.UnixMilli()), Member: identity})
	pipe.HSet(ctx, namesKey, identity, name)
	pipe.Expire(ctx, seenKey, presenceTTL)
	pipe.Expire(ctx, namesKey, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error touching presence: %w", err)
	}
	return nil
}

// ListPresence returns every identity seen at or after since, oldest first,
// and prunes the older ones.
func (rc *RedisClient) ListPresence(ctx context.Context, roomCode string, since time.Time) ([]redis_models.PresenceEntry, error) {
	seenKey := redis_utils.FormatPresenceKey(roomCode)
	namesKey := redis_utils.FormatPresenceNamesKey(roomCode)
	floor := strconv.FormatInt(since.UnixMilli(), 10)

	stale, err := rc.client.ZRangeByScore(ctx, seenKey, &redis.ZRangeBy{Min: "-inf", Max: "(" + floor}).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading stale presence: %w", err)
	}
	if len(stale) > 0 {
		pipe := rc.client.TxPipeline()
		pipe.ZRem(ctx, seenKey, toInterfaces(stale)...)
		pipe.HDel(ctx, namesKey, stale...)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("error pruning presence: %w", err)
		}
	}

	live, err := rc.client.ZRangeByScoreWithScores(ctx, seenKey, &redis.ZRangeBy{Min: floor, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading presence: %w", err)
	}
	if len(live) == 0 {
		return []redis_models.PresenceEntry{}, nil
	}

	ids := make([]string, len(live))
	for i, z := range live {
		ids[i] = z.Member.(string)
	}
	names, err := rc.client.HMGet(ctx, namesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading presence names: %w", err)
	}

	entries := make([]redis_models.PresenceEntry, len(live))
	for i, z := range live {
		name, _ := names[i].(string)
		entries[i] = redis_models.PresenceEntry{
			Identity:    ids[i],
			DisplayName: name,
			LastSeen:    time.UnixMilli(int64(z.Score)),
		}
	}
	return entries, nil
}

// DropPresence removes identity right away instead of waiting for timeout.
func (rc *RedisClient) DropPresence(ctx context.Context, roomCode, identity string) error {
	pipe := rc.client.TxPipeline()
	pipe.ZRem(ctx, redis_utils.FormatPresenceKey(roomCode), identity)
	pipe.HDel(ctx, redis_utils.FormatPresenceNamesKey(roomCode), identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error dropping presence: %w", err)
	}
	return nil
}

func toInterfaces(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
