package distribution

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// SnapshotSource reads current snapshots straight from the backing store.
type SnapshotSource interface {
	Rooms(ctx context.Context) ([]string, error)
	Snapshots(ctx context.Context, room string) ([]Event, error)
}

// Poller is the store-polling adapter. Roster and state snapshots are found
// by polling the store, so publishing them is a no-op. Events that live
// nowhere in the store (kicks, presence, chat) go through an in-process bus.
type Poller struct {
	src      SnapshotSource
	interval time.Duration
	local    *LocalBus
}

func NewPoller(src SnapshotSource, interval time.Duration) *Poller {
	return &Poller{src: src, interval: interval, local: NewLocalBus()}
}

// SetSource binds the store the poller reads. Must be called before the
// first subscription when the source is built after the poller.
func (p *Poller) SetSource(src SnapshotSource) {
	p.src = src
}

func (p *Poller) Publish(ctx context.Context, room string, ev Event) error {
	switch ev.Kind {
	case KindRoster, KindState:
		return nil
	}
	return p.local.Publish(ctx, room, ev)
}

func (p *Poller) Subscribe(ctx context.Context, room string) (<-chan Event, error) {
	return p.stream(ctx, func(ctx context.Context) ([]string, error) {
		return []string{room}, nil
	}, func(ctx context.Context) (<-chan Event, error) {
		return p.local.Subscribe(ctx, room)
	})
}

func (p *Poller) SubscribeAll(ctx context.Context) (<-chan Event, error) {
	return p.stream(ctx, p.src.Rooms, p.local.SubscribeAll)
}

func (p *Poller) stream(ctx context.Context,
	rooms func(context.Context) ([]string, error),
	ephemeral func(context.Context) (<-chan Event, error)) (<-chan Event, error) {

	local, err := ephemeral(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		seen := NewMirror()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		emit := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		poll := func() bool {
			codes, err := rooms(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("[POLL-ERROR] Listing rooms failed")
				return true
			}
			for _, code := range codes {
				events, err := p.src.Snapshots(ctx, code)
				if err != nil {
					log.Warn().Err(err).Msgf("[POLL-ERROR] Reading snapshots of %s failed", code)
					continue
				}
				for _, ev := range events {
					if seen.Apply(ev) && !emit(ev) {
						return false
					}
				}
			}
			return true
		}

		if !poll() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !poll() {
					return
				}
			case ev, ok := <-local:
				if !ok {
					local = nil
					continue
				}
				if !emit(ev) {
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Poller) Close() error {
	return p.local.Close()
}
