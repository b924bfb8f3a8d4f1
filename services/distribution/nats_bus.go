package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const (
	natsSubjectPrefix = "mobius.room."
	natsSubjectAll    = "mobius.room.*"
)

// NatsBus distributes events over core NATS subjects, one per room.
type NatsBus struct {
	nc *nats.Conn
}

func ConnectNats(url string) (*NatsBus, error) {
	nc, err := nats.Connect(url,
		nats.Name("mobius"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsBus{nc: nc}, nil
}

func NewNatsBus(nc *nats.Conn) *NatsBus {
	return &NatsBus{nc: nc}
}

func (b *NatsBus) Publish(ctx context.Context, room string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error marshaling event: %w", err)
	}
	if err := b.nc.Publish(natsSubjectPrefix+room, data); err != nil {
		return fmt.Errorf("error publishing to NATS: %w", err)
	}
	return nil
}

func (b *NatsBus) Subscribe(ctx context.Context, room string) (<-chan Event, error) {
	return b.stream(ctx, natsSubjectPrefix+room)
}

func (b *NatsBus) SubscribeAll(ctx context.Context) (<-chan Event, error) {
	return b.stream(ctx, natsSubjectAll)
}

func (b *NatsBus) stream(ctx context.Context, subject string) (<-chan Event, error) {
	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := b.nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("error subscribing to %s: %w", subject, err)
	}
	// Make sure the server registered the interest before returning.
	if err := b.nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("error flushing NATS subscription: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				var ev Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					log.Warn().Err(err).Msgf("[BUS-ERROR] Undecodable message on %s", msg.Subject)
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

func (b *NatsBus) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}
