// Package presence tracks who is online in a room. It is advisory only and
// never touches the membership ledger.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"

	"github.com/rs/zerolog/log"
)

var ErrPresenceDegraded = errors.New("presence unavailable")

// Beacon stores heartbeats. Implemented by the Redis client.
type Beacon interface {
	TouchPresence(ctx context.Context, roomCode, identity, name string, at time.Time) error
	ListPresence(ctx context.Context, roomCode string, since time.Time) ([]redis_models.PresenceEntry, error)
	DropPresence(ctx context.Context, roomCode, identity string) error
}

type Tracker struct {
	beacon   Beacon
	bus      distribution.Publisher
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func NewTracker(beacon Beacon, bus distribution.Publisher, interval, timeout time.Duration) *Tracker {
	if bus == nil {
		bus = distribution.Discard{}
	}
	return &Tracker{
		beacon:   beacon,
		bus:      bus,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// Beat records one heartbeat for identity.
func (t *Tracker) Beat(ctx context.Context, room, identity, name string) error {
	if err := t.beacon.TouchPresence(ctx, room, identity, name, t.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrPresenceDegraded, err)
	}
	return nil
}

// Announce beats once right away and then every interval until ctx is done.
// The returned error is the one of the first beat; later failures are logged
// and retried on the next tick.
func (t *Tracker) Announce(ctx context.Context, room, identity, name string) error {
	first := t.Beat(ctx, room, identity, name)
	if first == nil {
		t.publish(ctx, room)
	}

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Beat(ctx, room, identity, name); err != nil {
					log.Debug().Err(err).Msgf("[PRESENCE] Heartbeat of %s in %s failed", identity, room)
				}
			}
		}
	}()
	return first
}

// Observe returns who signalled within the timeout window. On failure the
// snapshot is empty and flagged degraded, together with ErrPresenceDegraded.
func (t *Tracker) Observe(ctx context.Context, room string) (*redis_models.PresenceSnapshot, error) {
	now := t.now()
	snap := &redis_models.PresenceSnapshot{Room: room, ObservedAt: now.UTC()}

	entries, err := t.beacon.ListPresence(ctx, room, now.Add(-t.timeout))
	if err != nil {
		snap.Online = []redis_models.PresenceEntry{}
		snap.Degraded = true
		return snap, fmt.Errorf("%w: %v", ErrPresenceDegraded, err)
	}
	snap.Online = entries
	return snap, nil
}

// Withdraw drops identity right away. Best-effort: a failure is only logged,
// the timeout takes care of it.
func (t *Tracker) Withdraw(ctx context.Context, room, identity string) {
	if err := t.beacon.DropPresence(ctx, room, identity); err != nil {
		log.Debug().Err(err).Msgf("[PRESENCE] Withdraw of %s from %s failed", identity, room)
		return
	}
	t.publish(ctx, room)
}

// publish pushes the current online set to the room.
func (t *Tracker) publish(ctx context.Context, room string) {
	snap, err := t.Observe(ctx, room)
	if err != nil {
		return
	}
	ev, err := distribution.NewEvent(distribution.KindPresence, room, snap.ObservedAt.UnixNano(), snap)
	if err != nil {
		return
	}
	if err := t.bus.Publish(ctx, room, ev); err != nil {
		log.Debug().Err(err).Msgf("[PRESENCE] Publishing presence of %s failed", room)
	}
}
