// Package rooms owns the durable room state: the room directory and the
// membership ledger of each room.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Mobius/models/postgres"
	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxMutationAttempts = 5

// SnapshotCache holds the last-known-good roster of each room.
type SnapshotCache interface {
	SaveRosterSnapshot(ctx context.Context, snap *redis_models.RosterSnapshot) error
	GetRosterSnapshot(ctx context.Context, roomCode string) (*redis_models.RosterSnapshot, error)
}

type Service struct {
	db    *gorm.DB
	bus   distribution.Publisher
	cache SnapshotCache
	now   func() time.Time
	codes func() string
}

// NewService wires the directory and ledger. cache may be nil.
func NewService(db *gorm.DB, bus distribution.Publisher, cache SnapshotCache) *Service {
	if bus == nil {
		bus = distribution.Discard{}
	}
	return &Service{
		db:    db,
		bus:   bus,
		cache: cache,
		now:   time.Now,
		codes: newCodeGenerator(),
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// mutation runs inside a transaction with the room row loaded. It reports
// whether it changed anything; unchanged mutations do not bump the version.
type mutation func(tx *gorm.DB, room *postgres.Room) (changed bool, err error)

// mutate applies fn and bumps the roster version with compare-and-set,
// retrying when another writer got there first. Every change is followed by a
// full roster snapshot on the bus.
func (s *Service) mutate(ctx context.Context, code string, fn mutation) (*redis_models.RosterSnapshot, bool, error) {
	for attempt := 1; attempt <= maxMutationAttempts; attempt++ {
		var changed bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var room postgres.Room
			if err := tx.Where("code = ?", code).First(&room).Error; err != nil {
				return err
			}

			var err error
			changed, err = fn(tx, &room)
			if err != nil || !changed {
				return err
			}

			res := tx.Model(&postgres.Room{}).
				Where("code = ? AND roster_version = ?", code, room.RosterVersion).
				Updates(map[string]interface{}{
					"roster_version": room.RosterVersion + 1,
					"host_identity":  room.HostIdentity,
					"variant":        room.Variant,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}
			return nil
		})

		if errors.Is(err, errVersionConflict) || isDuplicate(err) {
			log.Debug().Msgf("[ROSTER] Conflict on room %s (attempt %d): %v", code, attempt, err)
			continue
		}
		if err != nil {
			return nil, false, classify(err)
		}

		snap, err := s.readRoster(ctx, code)
		if err != nil {
			return nil, false, classify(err)
		}
		if changed {
			s.distribute(ctx, snap)
		}
		return snap, changed, nil
	}
	return nil, false, fmt.Errorf("%w: too many concurrent updates on room %s", ErrStoreUnavailable, code)
}

func (s *Service) readRoster(ctx context.Context, code string) (*redis_models.RosterSnapshot, error) {
	var room postgres.Room
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&room).Error; err != nil {
		return nil, err
	}
	var players []postgres.Player
	if err := s.db.WithContext(ctx).Where("room_code = ?", code).Order("join_seq ASC").Find(&players).Error; err != nil {
		return nil, err
	}
	return buildSnapshot(&room, players, s.now()), nil
}

func buildSnapshot(room *postgres.Room, players []postgres.Player, at time.Time) *redis_models.RosterSnapshot {
	snap := &redis_models.RosterSnapshot{
		Room:    room.Code,
		Version: room.RosterVersion,
		Variant: room.Variant,
		Players: make([]redis_models.PlayerView, 0, len(players)),
		TakenAt: at.UTC(),
	}
	if room.HostIdentity != nil {
		snap.HostIdentity = *room.HostIdentity
	}
	for _, p := range players {
		snap.Players = append(snap.Players, redis_models.PlayerView{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			Ready:       p.Ready,
			IsHost:      p.IsHost,
			JoinSeq:     p.JoinSeq,
			JoinedAt:    p.JoinedAt.UTC(),
		})
	}
	return snap
}

// distribute caches and publishes a roster snapshot. The store already holds
// the truth at this point, so failures here are only logged.
func (s *Service) distribute(ctx context.Context, snap *redis_models.RosterSnapshot) {
	if s.cache != nil {
		if err := s.cache.SaveRosterSnapshot(ctx, snap); err != nil {
			log.Warn().Err(err).Msgf("[ROSTER-ERROR] Caching roster v%d of %s failed", snap.Version, snap.Room)
		}
	}
	ev, err := distribution.NewEvent(distribution.KindRoster, snap.Room, snap.Version, snap)
	if err != nil {
		log.Error().Err(err).Msg("[ROSTER-ERROR] Encoding roster event failed")
		return
	}
	if err := s.bus.Publish(ctx, snap.Room, ev); err != nil {
		log.Warn().Err(err).Msgf("[ROSTER-ERROR] Publishing roster v%d of %s failed", snap.Version, snap.Room)
	}
}

// Roster returns the current roster. When the store is unreachable it falls
// back to the last cached snapshot and reports stale=true.
func (s *Service) Roster(ctx context.Context, rawCode string) (snap *redis_models.RosterSnapshot, stale bool, err error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, false, err
	}
	snap, err = s.readRoster(ctx, code)
	if err == nil {
		return snap, false, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, ErrRoomNotFound
	}

	log.Warn().Err(err).Msgf("[ROSTER] Store read failed for %s, trying cache", code)
	if s.cache != nil {
		cached, cerr := s.cache.GetRosterSnapshot(ctx, code)
		if cerr == nil && cached != nil {
			return cached, true, nil
		}
	}
	return nil, false, classify(err)
}

// ActiveRooms lists the codes of rooms with at least one seated player.
func (s *Service) ActiveRooms(ctx context.Context) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&postgres.Player{}).Distinct("room_code").Pluck("room_code", &codes).Error
	if err != nil {
		return nil, classify(err)
	}
	return codes, nil
}
