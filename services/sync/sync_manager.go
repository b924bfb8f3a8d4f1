package sync

import (
	"context"
	"errors"
	"fmt"

	"Mobius/services/distribution"
	"Mobius/services/redis"
	redis_utils "Mobius/services/redis/utils"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/rs/zerolog/log"
)

// SyncManager keeps Redis in line with the relational store: it reads the
// current snapshots of each room for the polling adapter and copies them
// into the snapshot caches.
type SyncManager struct {
	redisClient *redis.RedisClient
	rooms       *rooms.Service
	stages      *stages.Service
}

// NewSyncManager creates a new instance of the synchronization manager
func NewSyncManager(redisClient *redis.RedisClient, roomSvc *rooms.Service, stageSvc *stages.Service) *SyncManager {
	return &SyncManager{
		redisClient: redisClient,
		rooms:       roomSvc,
		stages:      stageSvc,
	}
}

// Rooms lists the rooms with seated players.
func (sm *SyncManager) Rooms(ctx context.Context) ([]string, error) {
	return sm.rooms.ActiveRooms(ctx)
}

// Snapshots returns the roster and (once started) the state of a room as
// distribution events, read from the store.
func (sm *SyncManager) Snapshots(ctx context.Context, code string) ([]distribution.Event, error) {
	roster, stale, err := sm.rooms.Roster(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("error reading roster of %s: %w", code, err)
	}
	if stale {
		// the cache is not news for anybody
		return nil, nil
	}
	rosterEv, err := distribution.NewEvent(distribution.KindRoster, roster.Room, roster.Version, roster)
	if err != nil {
		return nil, err
	}
	events := []distribution.Event{rosterEv}

	stateEv, err := sm.stages.Snapshot(ctx, roster.Room)
	if err != nil {
		return events, fmt.Errorf("error reading state of %s: %w", code, err)
	}
	if stateEv != nil {
		events = append(events, *stateEv)
	}
	return events, nil
}

// SyncRoomState copies the current roster and state of a room from the
// store into the Redis snapshot caches.
func (sm *SyncManager) SyncRoomState(ctx context.Context, code string) error {
	roster, stale, err := sm.rooms.Roster(ctx, code)
	if err != nil {
		return fmt.Errorf("error getting roster from store: %w", err)
	}
	if stale {
		return fmt.Errorf("%w: roster of %s only cached", rooms.ErrStoreUnavailable, code)
	}
	if err := sm.redisClient.SaveRosterSnapshot(ctx, roster); err != nil {
		return fmt.Errorf("error caching roster in Redis: %w", err)
	}

	st, _, err := sm.stages.State(ctx, roster.Room)
	if err != nil {
		return fmt.Errorf("error getting state from store: %w", err)
	}
	if !st.Started {
		return nil
	}
	if err := sm.redisClient.SaveStateSnapshot(ctx, st.Room, st.Version, st); err != nil {
		return fmt.Errorf("error caching state in Redis: %w", err)
	}
	return nil
}

// WarmCache syncs every active room. Failing rooms are logged and skipped.
func (sm *SyncManager) WarmCache(ctx context.Context) (int, error) {
	codes, err := sm.Rooms(ctx)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, code := range codes {
		if err := sm.SyncRoomState(ctx, code); err != nil {
			log.Warn().Err(err).Msgf("[SYNC] Warming cache of %s failed", code)
			continue
		}
		synced++
	}
	log.Info().Msgf("[SYNC] Warmed cache of %d/%d rooms", synced, len(codes))
	return synced, nil
}

// CleanupRoom drops the cached snapshots and presence of a room nobody sits
// in anymore. Per-round keys expire on their own.
func (sm *SyncManager) CleanupRoom(ctx context.Context, code string) error {
	roster, _, err := sm.rooms.Roster(ctx, code)
	if err != nil && !errors.Is(err, rooms.ErrRoomNotFound) {
		return err
	}
	if roster != nil && len(roster.Players) > 0 {
		return nil
	}
	code, err = rooms.NormalizeCode(code)
	if err != nil {
		return err
	}
	return sm.redisClient.CleanupKeys(ctx, []string{
		redis_utils.FormatRosterSnapshotKey(code),
		redis_utils.FormatStateSnapshotKey(code),
		redis_utils.FormatPresenceKey(code),
		redis_utils.FormatPresenceNamesKey(code),
	})
}
