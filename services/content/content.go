// Package content serves the read-only case material of each variant: the
// story, its places and the secret handed to each seat. Reads go through a
// Redis cache-aside layer.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	game_constants "Mobius/constants/game"
	"Mobius/models/postgres"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNoContent     = errors.New("no content for this variant")
	ErrPlaceNotFound = errors.New("place not found")
	ErrPlaceBusy     = errors.New("place already has the maximum number of viewers")
)

// Cache stores encoded content blobs. Implemented by the Redis client.
type Cache interface {
	GetContent(ctx context.Context, variant int, part string) ([]byte, error)
	SetContent(ctx context.Context, variant int, part string, data []byte) error
}

// Viewers tracks who has a place open. Implemented by the Redis client.
type Viewers interface {
	OpenPlace(ctx context.Context, roomCode string, epoch, round int, placeID uint, identity string, capacity int) (bool, error)
	ClosePlace(ctx context.Context, roomCode string, epoch, round int, placeID uint, identity string) error
	PlaceViewers(ctx context.Context, roomCode string, epoch, round int, placeID uint) ([]string, error)
}

type CaseView struct {
	Variant int    `json:"variant"`
	Title   string `json:"title"`
	Story   string `json:"story"`
}

type PlaceView struct {
	ID      uint           `json:"id"`
	Name    string         `json:"name"`
	IsCrime bool           `json:"is_crime"`
	Details datatypes.JSON `json:"details,omitempty"`
}

type SecretView struct {
	Variant int    `json:"variant"`
	Seat    int    `json:"seat"`
	Role    string `json:"role"`
	Secret  string `json:"secret"`
}

type Service struct {
	db      *gorm.DB
	cache   Cache
	viewers Viewers
	rooms   *rooms.Service
	stages  *stages.Service
	group   singleflight.Group
}

// NewService wires content lookups. cache may be nil.
func NewService(db *gorm.DB, cache Cache, viewers Viewers, roomSvc *rooms.Service, stageSvc *stages.Service) *Service {
	return &Service{
		db:      db,
		cache:   cache,
		viewers: viewers,
		rooms:   roomSvc,
		stages:  stageSvc,
	}
}

// Case returns the story of variant.
func (s *Service) Case(ctx context.Context, variant int) (*CaseView, error) {
	var view CaseView
	err := s.cached(ctx, variant, "case", &view, func() (interface{}, error) {
		var row postgres.CaseFile
		if err := s.db.WithContext(ctx).Where("variant = ?", variant).First(&row).Error; err != nil {
			return nil, err
		}
		return CaseView{Variant: row.Variant, Title: row.Title, Story: row.Story}, nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Places returns the places of variant in display order.
func (s *Service) Places(ctx context.Context, variant int) ([]PlaceView, error) {
	var views []PlaceView
	err := s.cached(ctx, variant, "places", &views, func() (interface{}, error) {
		var rows []postgres.Place
		if err := s.db.WithContext(ctx).Where("variant = ?", variant).Order("sort_order ASC, id ASC").Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, ErrNoContent
		}
		out := make([]PlaceView, 0, len(rows))
		for _, p := range rows {
			out = append(out, PlaceView{ID: p.ID, Name: p.Name, IsCrime: p.IsCrime, Details: p.Details})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Secret returns the character secret of identity in room. The seat is the
// join position in the roster and the variant the one being played (or the
// selected one before the match starts).
func (s *Service) Secret(ctx context.Context, room, identity string) (*SecretView, error) {
	roster, _, err := s.rooms.Roster(ctx, room)
	if err != nil {
		return nil, err
	}
	seat := roster.Seat(identity)
	if seat == 0 {
		return nil, rooms.ErrNotMember
	}

	variant := roster.Variant
	if st, _, err := s.stages.State(ctx, room); err == nil && st.Started {
		variant = st.Variant
	}

	var view SecretView
	err = s.cached(ctx, variant, "secret:"+strconv.Itoa(seat), &view, func() (interface{}, error) {
		var row postgres.CharacterSecret
		if err := s.db.WithContext(ctx).Where("variant = ? AND seat = ?", variant, seat).First(&row).Error; err != nil {
			return nil, err
		}
		return SecretView{Variant: row.Variant, Seat: row.Seat, Role: row.Role, Secret: row.Secret}, nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// OpenPlace lets identity look at a place during the clue stage. At most
// MAX_PLACE_VIEWERS identities hold a place at once; slots belong to the
// current round and expire with it.
func (s *Service) OpenPlace(ctx context.Context, room, identity string, placeID uint) ([]string, error) {
	st, err := s.clueStage(ctx, room, identity)
	if err != nil {
		return nil, err
	}
	if err := s.placeInVariant(ctx, st.Variant, placeID); err != nil {
		return nil, err
	}

	ok, err := s.viewers.OpenPlace(ctx, st.Room, st.Epoch, st.Round, placeID, identity, game_constants.MAX_PLACE_VIEWERS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrPlaceBusy
	}
	log.Debug().Msgf("[CLUE] %s opened place %d in %s", identity, placeID, st.Room)
	return s.viewers.PlaceViewers(ctx, st.Room, st.Epoch, st.Round, placeID)
}

// ClosePlace frees identity's slot on a place.
func (s *Service) ClosePlace(ctx context.Context, room, identity string, placeID uint) error {
	st, _, err := s.stages.State(ctx, room)
	if err != nil {
		return err
	}
	if !st.Started {
		return nil
	}
	if err := s.viewers.ClosePlace(ctx, st.Room, st.Epoch, st.Round, placeID, identity); err != nil {
		return fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Service) clueStage(ctx context.Context, room, identity string) (*stages.State, error) {
	if _, err := s.rooms.Member(ctx, room, identity); err != nil {
		return nil, err
	}
	st, _, err := s.stages.State(ctx, room)
	if err != nil {
		return nil, err
	}
	if !st.Running() || st.Stage != game_constants.STAGE_CLUE {
		return nil, stages.ErrWrongStage
	}
	return st, nil
}

func (s *Service) placeInVariant(ctx context.Context, variant int, placeID uint) error {
	places, err := s.Places(ctx, variant)
	if err != nil {
		return err
	}
	for _, p := range places {
		if p.ID == placeID {
			return nil
		}
	}
	return ErrPlaceNotFound
}

// cached reads part of variant from the cache, or loads it once (concurrent
// callers share the load) and fills the cache. Cache failures fall through to
// the store.
func (s *Service) cached(ctx context.Context, variant int, part string, dst interface{}, load func() (interface{}, error)) error {
	if s.cache != nil {
		raw, err := s.cache.GetContent(ctx, variant, part)
		if err != nil {
			log.Warn().Err(err).Msgf("[CONTENT] Cache read of %d/%s failed", variant, part)
		} else if raw != nil {
			if err := json.Unmarshal(raw, dst); err == nil {
				return nil
			}
		}
	}

	key := strconv.Itoa(variant) + ":" + part
	raw, err, _ := s.group.Do(key, func() (interface{}, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetContent(ctx, variant, part, data); err != nil {
				log.Warn().Err(err).Msgf("[CONTENT] Cache write of %d/%s failed", variant, part)
			}
		}
		return data, nil
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNoContent):
		return ErrNoContent
	case err != nil:
		return fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	return json.Unmarshal(raw.([]byte), dst)
}
