package redis

import (
	"context"
	"testing"
	"time"

	redis_models "Mobius/models/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := InitRedis(mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { CloseRedis(rc) })
	return rc, mr
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient("redis://localhost:6379/notanumber", 0)
	assert.Error(t, err)
}

func TestRosterSnapshotKeepsNewest(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	got, err := rc.GetRosterSnapshot(ctx, "TEST01")
	require.NoError(t, err)
	assert.Nil(t, got)

	newer := &redis_models.RosterSnapshot{Room: "TEST01", Version: 3, Players: []redis_models.PlayerView{{Identity: "a", DisplayName: "Ann", IsHost: true}}}
	older := &redis_models.RosterSnapshot{Room: "TEST01", Version: 2}

	require.NoError(t, rc.SaveRosterSnapshot(ctx, newer))
	require.NoError(t, rc.SaveRosterSnapshot(ctx, older))

	got, err = rc.GetRosterSnapshot(ctx, "TEST01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.Version)
	assert.Len(t, got.Players, 1)
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	type state struct {
		Round int `json:"round"`
	}
	require.NoError(t, rc.SaveStateSnapshot(ctx, "ROOM", 5, state{Round: 4}))

	var got state
	found, err := rc.GetStateSnapshot(ctx, "ROOM", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 4, got.Round)
}

func TestPresenceWindow(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, rc.TouchPresence(ctx, "ROOM", "old", "Olga", now.Add(-10*time.Second)))
	require.NoError(t, rc.TouchPresence(ctx, "ROOM", "new", "Nina", now))

	entries, err := rc.ListPresence(ctx, "ROOM", now.Add(-6*time.Second))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Identity)
	assert.Equal(t, "Nina", entries[0].DisplayName)

	// the stale entry was pruned, not just filtered
	entries, err = rc.ListPresence(ctx, "ROOM", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, rc.DropPresence(ctx, "ROOM", "new"))
	entries, err = rc.ListPresence(ctx, "ROOM", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVotesTally(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.CastVote(ctx, "ROOM", 1, 2, 0, "a", "c"))
	require.NoError(t, rc.CastVote(ctx, "ROOM", 1, 2, 0, "b", "c"))
	require.NoError(t, rc.CastVote(ctx, "ROOM", 1, 2, 0, "c", "a"))
	// a changes their mind
	require.NoError(t, rc.CastVote(ctx, "ROOM", 1, 2, 0, "a", "b"))

	tally, err := rc.TallyVotes(ctx, "ROOM", 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c": 1, "a": 1, "b": 1}, tally)

	other, err := rc.TallyVotes(ctx, "ROOM", 1, 2, 1)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestWhisperQuota(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	ok, err := rc.SpendWhisper(ctx, "ROOM", 1, 1, "a", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rc.SpendWhisper(ctx, "ROOM", 1, 1, "a", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rc.SpendWhisper(ctx, "ROOM", 1, 2, "a", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPlaceViewerCap(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		ok, err := rc.OpenPlace(ctx, "ROOM", 1, 1, 7, id, 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rc.OpenPlace(ctx, "ROOM", 1, 1, 7, "c", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	// re-opening by a current viewer is fine
	ok, err = rc.OpenPlace(ctx, "ROOM", 1, 1, 7, "a", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rc.ClosePlace(ctx, "ROOM", 1, 1, 7, "a"))
	ok, err = rc.OpenPlace(ctx, "ROOM", 1, 1, 7, "c", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	viewers, err := rc.PlaceViewers(ctx, "ROOM", 1, 1, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, viewers)
}

func TestContentCache(t *testing.T) {
	rc, _ := setupTestRedis(t)
	ctx := context.Background()

	data, err := rc.GetContent(ctx, 1, "case")
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, rc.SetContent(ctx, 1, "case", []byte(`{"title":"x"}`)))
	data, err = rc.GetContent(ctx, 1, "case")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"x"}`, string(data))
}

func TestRedisDownReturnsErrors(t *testing.T) {
	rc, mr := setupTestRedis(t)
	ctx := context.Background()
	mr.Close()

	_, err := rc.ListPresence(ctx, "ROOM", time.Now())
	assert.Error(t, err)
	_, err = rc.GetRosterSnapshot(ctx, "ROOM")
	assert.Error(t, err)
}
