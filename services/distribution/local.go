package distribution

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

type localSub struct {
	ch chan Event
}

// LocalBus fans events out inside one process. A subscriber that falls a full
// buffer behind loses events; the next snapshot catches it up.
type LocalBus struct {
	mu     sync.RWMutex
	rooms  map[string]map[*localSub]struct{}
	all    map[*localSub]struct{}
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{
		rooms: make(map[string]map[*localSub]struct{}),
		all:   make(map[*localSub]struct{}),
	}
}

func (b *LocalBus) Publish(ctx context.Context, room string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	for s := range b.rooms[room] {
		b.deliver(s, ev)
	}
	for s := range b.all {
		b.deliver(s, ev)
	}
	return nil
}

func (b *LocalBus) deliver(s *localSub, ev Event) {
	select {
	case s.ch <- ev:
	default:
		log.Warn().Msgf("[BUS] Dropped %s event v%d for room %s, slow subscriber", ev.Kind, ev.Version, ev.Room)
	}
}

func (b *LocalBus) Subscribe(ctx context.Context, room string) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	s := &localSub{ch: make(chan Event, subscriberBuffer)}
	if b.rooms[room] == nil {
		b.rooms[room] = make(map[*localSub]struct{})
	}
	b.rooms[room][s] = struct{}{}
	go b.release(ctx, func() {
		if subs, ok := b.rooms[room]; ok {
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.ch)
			}
			if len(subs) == 0 {
				delete(b.rooms, room)
			}
		}
	})
	return s.ch, nil
}

func (b *LocalBus) SubscribeAll(ctx context.Context) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	s := &localSub{ch: make(chan Event, subscriberBuffer)}
	b.all[s] = struct{}{}
	go b.release(ctx, func() {
		if _, ok := b.all[s]; ok {
			delete(b.all, s)
			close(s.ch)
		}
	})
	return s.ch, nil
}

func (b *LocalBus) release(ctx context.Context, drop func()) {
	<-ctx.Done()
	b.mu.Lock()
	defer b.mu.Unlock()
	drop()
}

// Close ends every stream.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for room, subs := range b.rooms {
		for s := range subs {
			close(s.ch)
		}
		delete(b.rooms, room)
	}
	for s := range b.all {
		close(s.ch)
		delete(b.all, s)
	}
	return nil
}
