package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis_models "Mobius/models/redis"
	redis_utils "Mobius/services/redis/utils"

	"github.com/redis/go-redis/v9"
)

// Last-known-good snapshots, written through on every successful store
// mutation and read back when the store is unreachable.

// SaveRosterSnapshot stores a roster snapshot unless a newer one is cached.
// Key format: "room:{code}:roster"
// TTL: 24 hours
func (rc *RedisClient) SaveRosterSnapshot(ctx context.Context, snap *redis_models.RosterSnapshot) error {
	key := redis_utils.FormatRosterSnapshotKey(snap.Room)
	return rc.saveVersioned(ctx, key, snap.Version, snap)
}

// GetRosterSnapshot returns nil, nil when nothing is cached.
func (rc *RedisClient) GetRosterSnapshot(ctx context.Context, roomCode string) (*redis_models.RosterSnapshot, error) {
	var snap redis_models.RosterSnapshot
	found, err := rc.getJSON(ctx, redis_utils.FormatRosterSnapshotKey(roomCode), &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// SaveStateSnapshot stores any versioned state value.
// Key format: "room:{code}:state"
func (rc *RedisClient) SaveStateSnapshot(ctx context.Context, roomCode string, version int64, state interface{}) error {
	return rc.saveVersioned(ctx, redis_utils.FormatStateSnapshotKey(roomCode), version, state)
}

// GetStateSnapshot decodes the cached state into dst. Returns false when
// nothing is cached.
func (rc *RedisClient) GetStateSnapshot(ctx context.Context, roomCode string, dst interface{}) (bool, error) {
	return rc.getJSON(ctx, redis_utils.FormatStateSnapshotKey(roomCode), dst)
}

// Only overwrite when the incoming version is newer than the cached one, so a
// slow writer cannot put an older snapshot back.
var saveVersionedScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (rc *RedisClient) saveVersioned(ctx context.Context, key string, version int64, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshaling snapshot: %w", err)
	}
	err = saveVersionedScript.Run(ctx, rc.client, []string{key}, version, data, int(snapshotTTL.Seconds())).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("error saving snapshot %s: %w", key, err)
	}
	return nil
}

func (rc *RedisClient) getJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := rc.client.HGet(ctx, key, "data").Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error getting snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("error unmarshaling snapshot %s: %w", key, err)
	}
	return true, nil
}
