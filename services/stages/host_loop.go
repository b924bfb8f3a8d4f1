package stages

import (
	"context"
	"errors"
	"time"

	"Mobius/services/rooms"

	"github.com/rs/zerolog/log"
)

// Ticker is what the host loop drives.
type Ticker interface {
	Tick(ctx context.Context, rawCode, requester string) (*State, bool, error)
}

// RunHostLoop evaluates timeouts for room on behalf of its host every
// interval until ctx is done or identity stops being the host. Store errors
// are logged and retried on the next tick.
func RunHostLoop(ctx context.Context, t Ticker, room, identity string, interval time.Duration) {
	log.Debug().Msgf("[HOST-LOOP] %s drives %s every %s", identity, room, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, _, err := t.Tick(ctx, room, identity)
		switch {
		case err == nil, errors.Is(err, ErrNotStarted):
		case errors.Is(err, rooms.ErrNotAuthorized),
			errors.Is(err, rooms.ErrRoomNotFound),
			errors.Is(err, rooms.ErrInvalidCode):
			log.Info().Msgf("[HOST-LOOP] %s no longer drives %s: %v", identity, room, err)
			return
		default:
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Msgf("[HOST-LOOP] Tick of %s failed", room)
		}
	}
}
