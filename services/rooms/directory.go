package rooms

import (
	"context"
	"errors"
	"fmt"

	game_constants "Mobius/constants/game"
	"Mobius/models/postgres"
	redis_models "Mobius/models/redis"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolveRoom returns the room for code, creating it when unseen. Creation is
// an insert-if-absent on the code, so two first resolvers end up with the same
// room: the loser simply reads the winner's row.
func (s *Service) ResolveRoom(ctx context.Context, rawCode, requester string) (*postgres.Room, bool, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, false, err
	}
	if !validIdentity(requester) {
		return nil, false, ErrInvalidIdentity
	}

	host := requester
	room := postgres.Room{
		Code:         code,
		HostIdentity: &host,
		Variant:      game_constants.DEFAULT_VARIANT,
		CreatedAt:    s.now(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&room)
	if res.Error != nil {
		return nil, false, classify(res.Error)
	}
	if res.RowsAffected == 1 {
		log.Info().Msgf("[ROOM] Room %s created by %s", code, requester)
		return &room, true, nil
	}

	log.Debug().Msgf("[ROOM] %v: %s already exists, re-reading", ErrRoomCreateRace, code)
	existing, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Lookup reads a room without creating it.
func (s *Service) Lookup(ctx context.Context, rawCode string) (*postgres.Room, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	var room postgres.Room
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&room).Error; err != nil {
		return nil, classify(err)
	}
	return &room, nil
}

// NewCode returns a random code no room uses yet.
func (s *Service) NewCode(ctx context.Context) (string, error) {
	for i := 0; i < 10; i++ {
		code := s.codes()
		_, err := s.Lookup(ctx, code)
		if errors.Is(err, ErrRoomNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: could not find a free room code", ErrStoreUnavailable)
}

// SetVariant changes the selected case file. Host only.
func (s *Service) SetVariant(ctx context.Context, rawCode, requester string, variant int) (*redis_models.RosterSnapshot, bool, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, false, err
	}
	if !game_constants.ValidVariant(variant) {
		return nil, false, ErrInvalidVariant
	}

	return s.mutate(ctx, code, func(tx *gorm.DB, room *postgres.Room) (bool, error) {
		if err := requireHost(tx, room, requester); err != nil {
			return false, err
		}
		if room.Variant == variant {
			return false, nil
		}
		log.Info().Msgf("[VARIANT] Room %s: %d -> %d by %s", room.Code, room.Variant, variant, requester)
		room.Variant = variant
		return true, nil
	})
}

// requireHost checks requester holds the host seat of room.
func requireHost(tx *gorm.DB, room *postgres.Room, requester string) error {
	var count int64
	err := tx.Model(&postgres.Player{}).
		Where("room_code = ? AND identity = ? AND is_host = ?", room.Code, requester, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotAuthorized
	}
	return nil
}

func validIdentity(id string) bool {
	return id != "" && len(id) <= 64
}
