package rooms

import (
	"context"
	"errors"

	"Mobius/models/postgres"
	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Join seats identity in the room under name. A name held by another identity
// fails with ErrNameTaken. Otherwise a returning identity gets its existing
// seat back untouched, whatever name it asks for now. The first player of an
// empty room becomes host.
func (s *Service) Join(ctx context.Context, rawCode, identity, rawName string) (*redis_models.PlayerView, *redis_models.RosterSnapshot, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, nil, err
	}
	if !validIdentity(identity) {
		return nil, nil, ErrInvalidIdentity
	}
	name, err := NormalizeName(rawName)
	if err != nil {
		return nil, nil, err
	}

	snap, changed, err := s.mutate(ctx, code, func(tx *gorm.DB, room *postgres.Room) (bool, error) {
		// a name held by someone else is refused even to a returning identity
		var holders int64
		if err := tx.Model(&postgres.Player{}).
			Where("room_code = ? AND display_name = ? AND identity <> ?", code, name, identity).
			Count(&holders).Error; err != nil {
			return false, err
		}
		if holders > 0 {
			return false, ErrNameTaken
		}

		_, err := seat(tx, code, identity)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, ErrNotMember) {
			return false, err
		}

		var seated int64
		if err := tx.Model(&postgres.Player{}).Where("room_code = ?", code).Count(&seated).Error; err != nil {
			return false, err
		}

		player := postgres.Player{
			RoomCode:    code,
			Identity:    identity,
			DisplayName: name,
			IsHost:      seated == 0,
			JoinedAt:    s.now(),
			JoinSeq:     room.RosterVersion + 1,
		}
		if err := tx.Create(&player).Error; err != nil {
			return false, err
		}
		if player.IsHost {
			host := identity
			room.HostIdentity = &host
		}
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	for i := range snap.Players {
		if snap.Players[i].Identity == identity {
			p := snap.Players[i]
			if changed {
				log.Info().Msgf("[JOIN] %s joined %s as %q (host=%v)", identity, code, p.DisplayName, p.IsHost)
			}
			return &p, snap, nil
		}
	}
	// seated and removed again between commit and read
	return nil, snap, ErrNotMember
}

// SetReady flips the caller's own ready flag.
func (s *Service) SetReady(ctx context.Context, rawCode, identity string, ready bool) (*redis_models.RosterSnapshot, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	snap, _, err := s.mutate(ctx, code, func(tx *gorm.DB, room *postgres.Room) (bool, error) {
		player, err := seat(tx, code, identity)
		if err != nil {
			return false, err
		}
		if player.Ready == ready {
			return false, nil
		}
		return true, tx.Model(&postgres.Player{}).
			Where("room_code = ? AND identity = ?", code, identity).
			Update("ready", ready).Error
	})
	return snap, err
}

// Kick removes target from the room. Host only, and never the host itself.
func (s *Service) Kick(ctx context.Context, rawCode, requester, target string) (*redis_models.RosterSnapshot, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	if requester == target {
		return nil, ErrNotAuthorized
	}

	var removed postgres.Player
	snap, _, err := s.mutate(ctx, code, func(tx *gorm.DB, room *postgres.Room) (bool, error) {
		if err := requireHost(tx, room, requester); err != nil {
			return false, err
		}
		victim, err := seat(tx, code, target)
		if err != nil {
			return false, err
		}
		removed = *victim
		return true, s.removeSeat(tx, room, victim)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("[KICK] %s kicked %s (%q) from %s", requester, target, removed.DisplayName, code)
	notice := redis_models.KickNotice{
		Room:        code,
		Identity:    removed.Identity,
		DisplayName: removed.DisplayName,
		By:          requester,
		Version:     snap.Version,
	}
	ev, err := distribution.NewEvent(distribution.KindKick, code, snap.Version, notice)
	if err == nil {
		err = s.bus.Publish(ctx, code, ev)
	}
	if err != nil {
		log.Warn().Err(err).Msgf("[KICK-ERROR] Kick notice for %s in %s not published", target, code)
	}
	return snap, nil
}

// Leave removes the caller's own seat. Leaving a room one is not seated in is
// a no-op.
func (s *Service) Leave(ctx context.Context, rawCode, identity string) (*redis_models.RosterSnapshot, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	snap, _, err := s.mutate(ctx, code, func(tx *gorm.DB, room *postgres.Room) (bool, error) {
		player, err := seat(tx, code, identity)
		if errors.Is(err, ErrNotMember) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		log.Info().Msgf("[LEAVE] %s (%q) left %s", identity, player.DisplayName, code)
		return true, s.removeSeat(tx, room, player)
	})
	return snap, err
}

// AllReady is true when the room has players and every non-host is ready.
func (s *Service) AllReady(ctx context.Context, rawCode string) (bool, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return false, err
	}
	var players []postgres.Player
	if err := s.db.WithContext(ctx).Where("room_code = ?", code).Find(&players).Error; err != nil {
		return false, classify(err)
	}
	return allReady(players), nil
}

func allReady(players []postgres.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.IsHost && !p.Ready {
			return false
		}
	}
	return true
}

// Member returns the seat of identity, or ErrNotMember.
func (s *Service) Member(ctx context.Context, rawCode, identity string) (*postgres.Player, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	p, err := seat(s.db.WithContext(ctx), code, identity)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

func seat(tx *gorm.DB, code, identity string) (*postgres.Player, error) {
	var p postgres.Player
	err := tx.Where("room_code = ? AND identity = ?", code, identity).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotMember
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// removeSeat deletes a seat and, if it was the host's, hands the host flag to
// the oldest remaining seat within the same transaction.
func (s *Service) removeSeat(tx *gorm.DB, room *postgres.Room, p *postgres.Player) error {
	if err := tx.Where("room_code = ? AND identity = ?", p.RoomCode, p.Identity).Delete(&postgres.Player{}).Error; err != nil {
		return err
	}
	if !p.IsHost {
		return nil
	}

	var heir postgres.Player
	err := tx.Where("room_code = ?", p.RoomCode).Order("join_seq ASC").First(&heir).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		room.HostIdentity = nil
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Model(&postgres.Player{}).
		Where("room_code = ? AND identity = ?", heir.RoomCode, heir.Identity).
		Update("is_host", true).Error; err != nil {
		return err
	}
	host := heir.Identity
	room.HostIdentity = &host
	log.Info().Msgf("[HOST] Host of %s passed from %s to %s", room.Code, p.Identity, heir.Identity)
	return nil
}
