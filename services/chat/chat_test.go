package chat

import (
	"context"
	"testing"
	"time"

	pgconfig "Mobius/config/postgres"
	redis_models "Mobius/models/redis"
	"Mobius/services/distribution"
	"Mobius/services/redis"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	rooms  *rooms.Service
	stages *stages.Service
	chat   *Service
	bus    *distribution.LocalBus
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := pgconfig.ConnectSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, pgconfig.MigrateDatabase(db))

	mr := miniredis.RunT(t)
	rc, err := redis.InitRedis(mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { redis.CloseRedis(rc) })

	f := &fixture{bus: distribution.NewLocalBus(), now: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	t.Cleanup(func() { f.bus.Close() })
	f.rooms = rooms.NewService(db, nil, rc)
	f.stages = stages.NewService(db, f.rooms, rc, rc, nil)
	f.stages.SetClock(func() time.Time { return f.now })
	f.chat = NewService(f.rooms, f.stages, rc, f.bus)

	ctx := context.Background()
	_, _, err = f.rooms.ResolveRoom(ctx, "TALK01", "a")
	require.NoError(t, err)
	for _, p := range [][2]string{{"a", "Ada"}, {"b", "Bea"}, {"c", "Cy"}} {
		_, _, err := f.rooms.Join(ctx, "TALK01", p[0], p[1])
		require.NoError(t, err)
	}
	return f
}

func TestChatClosedOutsideMatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.chat.Send(context.Background(), "TALK01", "a", "hello")
	assert.ErrorIs(t, err, ErrChatClosed)
}

func TestSendIsPublished(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := f.stages.Start(ctx, "TALK01", "a", true)
	require.NoError(t, err)
	events, err := f.bus.Subscribe(ctx, "TALK01")
	require.NoError(t, err)

	msg, err := f.chat.Send(ctx, "talk01", "b", "  I saw the cups  ")
	require.NoError(t, err)
	assert.Equal(t, "I saw the cups", msg.Message)
	assert.Equal(t, "Bea", msg.FromName)
	assert.Equal(t, 1, msg.Round)

	select {
	case ev := <-events:
		require.Equal(t, distribution.KindChat, ev.Kind)
		var got redis_models.ChatMessage
		require.NoError(t, ev.Decode(&got))
		assert.Equal(t, "b", got.From)
		assert.Empty(t, got.To)
	case <-time.After(2 * time.Second):
		t.Fatal("chat event not delivered")
	}

	_, err = f.chat.Send(ctx, "TALK01", "b", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = f.chat.Send(ctx, "TALK01", "stranger", "hi")
	assert.ErrorIs(t, err, rooms.ErrNotMember)
}

func TestOneWhisperPerRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.stages.Start(ctx, "TALK01", "a", true)
	require.NoError(t, err)

	msg, err := f.chat.Whisper(ctx, "TALK01", "b", "c", "meet me at the archive")
	require.NoError(t, err)
	assert.Equal(t, "c", msg.To)

	_, err = f.chat.Whisper(ctx, "TALK01", "b", "a", "again")
	assert.ErrorIs(t, err, ErrWhisperSpent)
	_, err = f.chat.Whisper(ctx, "TALK01", "c", "c", "me")
	assert.ErrorIs(t, err, ErrSelfWhisper)
	_, err = f.chat.Whisper(ctx, "TALK01", "c", "ghost", "boo")
	assert.ErrorIs(t, err, rooms.ErrNotMember)

	// the next round gives a fresh whisper
	for i := 0; i < 7; i++ {
		_, _, err := f.stages.Advance(ctx, "TALK01", "a")
		require.NoError(t, err)
	}
	st, _, err := f.stages.State(ctx, "TALK01")
	require.NoError(t, err)
	require.Equal(t, 2, st.Round)
	_, err = f.chat.Whisper(ctx, "TALK01", "b", "a", "round two")
	assert.NoError(t, err)
}

func TestLimiter(t *testing.T) {
	l := NewLimiter()
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed)
}
