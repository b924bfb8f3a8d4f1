package distribution

import (
	"context"
	"encoding/json"
	"fmt"

	"Mobius/services/redis"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus distributes events over Redis pub/sub, one channel per room.
type RedisBus struct {
	rc *redis.RedisClient
}

func NewRedisBus(rc *redis.RedisClient) *RedisBus {
	return &RedisBus{rc: rc}
}

func (b *RedisBus) Publish(ctx context.Context, room string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}
	return b.rc.PublishRoom(ctx, room, data)
}

func (b *RedisBus) Subscribe(ctx context.Context, room string) (<-chan Event, error) {
	return b.stream(ctx, b.rc.SubscribeRoom(ctx, room))
}

func (b *RedisBus) SubscribeAll(ctx context.Context) (<-chan Event, error) {
	return b.stream(ctx, b.rc.SubscribeAllRooms(ctx))
}

func (b *RedisBus) stream(ctx context.Context, ps *goredis.PubSub) (<-chan Event, error) {
	// Wait for the subscription confirmation so callers know nothing published
	// after this point is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("error subscribing: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Msgf("[BUS-ERROR] Undecodable message on %s", msg.Channel)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// The Redis client is owned by main.
func (b *RedisBus) Close() error { return nil }
