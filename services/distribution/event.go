// Package distribution propagates room snapshots to every participant.
//
// Delivery is at-least-once and unordered: the same event can arrive twice and
// events from different publishers can overtake each other. Every event carries
// a full snapshot and a version, and readers keep only the newest one per room
// and kind (see Mirror).
package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindRoster   Kind = "roster"
	KindState    Kind = "state"
	KindKick     Kind = "kick"
	KindPresence Kind = "presence"
	KindChat     Kind = "chat"
)

type Event struct {
	Kind     Kind            `json:"kind"`
	Room     string          `json:"room"`
	Version  int64           `json:"version"`
	IssuedAt time.Time       `json:"issued_at"`
	Payload  json.RawMessage `json:"payload"`
}

var ErrBusClosed = errors.New("distribution bus closed")

func NewEvent(kind Kind, room string, version int64, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("error marshaling %s payload: %w", kind, err)
	}
	return Event{
		Kind:     kind,
		Room:     room,
		Version:  version,
		IssuedAt: time.Now().UTC(),
		Payload:  data,
	}, nil
}

func (e Event) Decode(dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("error decoding %s payload: %w", e.Kind, err)
	}
	return nil
}

type Publisher interface {
	Publish(ctx context.Context, room string, ev Event) error
}

// Subscriber streams are closed once ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, room string) (<-chan Event, error)
	SubscribeAll(ctx context.Context) (<-chan Event, error)
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// Discard drops everything. Used where nothing listens.
type Discard struct{}

func (Discard) Publish(context.Context, string, Event) error { return nil }
