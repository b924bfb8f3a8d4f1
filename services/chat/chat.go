// Package chat relays room chat and whispers while a match is running.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	game_constants "Mobius/constants/game"
	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const MaxMessageLength = 500

var (
	ErrChatClosed     = errors.New("chat is only open while a match is running")
	ErrWhisperSpent   = errors.New("whisper already used this round")
	ErrEmptyMessage   = errors.New("empty message")
	ErrMessageTooLong = errors.New("message too long")
	ErrSelfWhisper    = errors.New("cannot whisper to yourself")
)

// Quota counts whispers per round. Implemented by the Redis client.
type Quota interface {
	SpendWhisper(ctx context.Context, roomCode string, epoch, round int, identity string, limit int) (bool, error)
}

type Service struct {
	rooms  *rooms.Service
	stages *stages.Service
	quota  Quota
	bus    distribution.Publisher
	now    func() time.Time
}

func NewService(roomSvc *rooms.Service, stageSvc *stages.Service, quota Quota, bus distribution.Publisher) *Service {
	if bus == nil {
		bus = distribution.Discard{}
	}
	return &Service{
		rooms:  roomSvc,
		stages: stageSvc,
		quota:  quota,
		bus:    bus,
		now:    time.Now,
	}
}

// NewLimiter is the per-connection chat throttle: one message a second with
// bursts of five.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(1), 5)
}

// Send broadcasts a message to the whole room.
func (s *Service) Send(ctx context.Context, room, identity, message string) (*redis_models.ChatMessage, error) {
	return s.relay(ctx, room, identity, "", message)
}

// Whisper sends a private message to one member. Each player has
// WHISPERS_PER_ROUND of them per round.
func (s *Service) Whisper(ctx context.Context, room, identity, to, message string) (*redis_models.ChatMessage, error) {
	if to == identity {
		return nil, ErrSelfWhisper
	}
	if to == "" {
		return nil, rooms.ErrNotMember
	}
	return s.relay(ctx, room, identity, to, message)
}

func (s *Service) relay(ctx context.Context, room, identity, to, message string) (*redis_models.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	sender, err := s.rooms.Member(ctx, room, identity)
	if err != nil {
		return nil, err
	}
	if to != "" {
		if _, err := s.rooms.Member(ctx, room, to); err != nil {
			return nil, err
		}
	}

	st, _, err := s.stages.State(ctx, room)
	if err != nil {
		return nil, err
	}
	if !st.Running() {
		return nil, ErrChatClosed
	}

	if to != "" {
		ok, err := s.quota.SpendWhisper(ctx, st.Room, st.Epoch, st.Round, identity, game_constants.WHISPERS_PER_ROUND)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
		}
		if !ok {
			return nil, ErrWhisperSpent
		}
	}

	msg := &redis_models.ChatMessage{
		Room:      st.Room,
		Message:   message,
		From:      identity,
		FromName:  sender.DisplayName,
		To:        to,
		Round:     st.Round,
		Timestamp: s.now().UTC(),
	}
	ev, err := distribution.NewEvent(distribution.KindChat, st.Room, msg.Timestamp.UnixNano(), msg)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, st.Room, ev); err != nil {
		log.Warn().Err(err).Msgf("[CHAT] Publishing message of %s in %s failed", identity, st.Room)
		return nil, fmt.Errorf("%w: %v", rooms.ErrStoreUnavailable, err)
	}
	return msg, nil
}
