package content

import (
	"context"
	"testing"
	"time"

	pgconfig "Mobius/config/postgres"
	game_constants "Mobius/constants/game"
	"Mobius/models/postgres"
	"Mobius/services/redis"
	"Mobius/services/rooms"
	"Mobius/services/stages"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	rooms   *rooms.Service
	stages  *stages.Service
	content *Service
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := pgconfig.ConnectSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, pgconfig.MigrateDatabase(db))
	require.NoError(t, Seed(db))

	mr := miniredis.RunT(t)
	rc, err := redis.InitRedis(mr.Addr(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { redis.CloseRedis(rc) })

	f := &fixture{db: db, now: time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)}
	f.rooms = rooms.NewService(db, nil, rc)
	f.stages = stages.NewService(db, f.rooms, rc, rc, nil)
	f.stages.SetClock(func() time.Time { return f.now })
	f.content = NewService(db, rc, rc, f.rooms, f.stages)
	return f
}

func (f *fixture) seat(t *testing.T, code string, players ...string) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.rooms.ResolveRoom(ctx, code, players[0])
	require.NoError(t, err)
	for _, p := range players {
		_, _, err := f.rooms.Join(ctx, code, p, "Player "+p)
		require.NoError(t, err)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, Seed(f.db))

	var cases, places int64
	require.NoError(t, f.db.Model(&postgres.CaseFile{}).Count(&cases).Error)
	require.NoError(t, f.db.Model(&postgres.Place{}).Where("variant = ?", 1).Count(&places).Error)
	assert.Equal(t, int64(4), cases)
	assert.Equal(t, int64(6), places)
}

func TestCaseAndPlaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.content.Case(ctx, game_constants.VARIANT_WHITE_NOISE)
	require.NoError(t, err)
	assert.Equal(t, "White Noise", c.Title)

	places, err := f.content.Places(ctx, game_constants.VARIANT_GLASS_TOWER)
	require.NoError(t, err)
	require.Len(t, places, 6)
	assert.Equal(t, "Meeting room", places[0].Name)
	assert.True(t, places[0].IsCrime)
	assert.False(t, places[1].IsCrime)
	assert.JSONEq(t, `{"clue":"Two coffee cups, one still warm."}`, string(places[0].Details))

	_, err = f.content.Case(ctx, 9)
	assert.ErrorIs(t, err, ErrNoContent)
	_, err = f.content.Places(ctx, 9)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestContentIsServedFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.content.Case(ctx, game_constants.VARIANT_NEON_MALL)
	require.NoError(t, err)
	require.NoError(t, f.db.Where("variant = ?", game_constants.VARIANT_NEON_MALL).Delete(&postgres.CaseFile{}).Error)

	c, err := f.content.Case(ctx, game_constants.VARIANT_NEON_MALL)
	require.NoError(t, err)
	assert.Equal(t, "Shopping Mall, Neon Shadows", c.Title)
}

func TestSecretFollowsSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seat(t, "SEAT01", "a", "b")

	sa, err := f.content.Secret(ctx, "SEAT01", "a")
	require.NoError(t, err)
	sb, err := f.content.Secret(ctx, "seat01", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, sa.Seat)
	assert.Equal(t, "Assistant", sa.Role)
	assert.Equal(t, 2, sb.Seat)
	assert.Equal(t, "Auditor", sb.Role)

	_, err = f.content.Secret(ctx, "SEAT01", "stranger")
	assert.ErrorIs(t, err, rooms.ErrNotMember)

	// the variant selected before the start decides the secrets
	_, _, err = f.stages.SelectVariant(ctx, "SEAT01", "a", game_constants.VARIANT_UNDERGROUND)
	require.NoError(t, err)
	sa, err = f.content.Secret(ctx, "SEAT01", "a")
	require.NoError(t, err)
	assert.Equal(t, "Station guard", sa.Role)
}

func TestPlaceViewerCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seat(t, "CLUE01", "a", "b", "c")

	places, err := f.content.Places(ctx, game_constants.VARIANT_GLASS_TOWER)
	require.NoError(t, err)
	crime := places[0].ID

	_, err = f.content.OpenPlace(ctx, "CLUE01", "a", crime)
	assert.ErrorIs(t, err, stages.ErrWrongStage)

	_, _, err = f.stages.Start(ctx, "CLUE01", "a", true)
	require.NoError(t, err)

	viewers, err := f.content.OpenPlace(ctx, "CLUE01", "a", crime)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, viewers)
	viewers, err = f.content.OpenPlace(ctx, "CLUE01", "b", crime)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, viewers)

	_, err = f.content.OpenPlace(ctx, "CLUE01", "c", crime)
	assert.ErrorIs(t, err, ErrPlaceBusy)
	_, err = f.content.OpenPlace(ctx, "CLUE01", "a", crime)
	assert.NoError(t, err)

	require.NoError(t, f.content.ClosePlace(ctx, "CLUE01", "a", crime))
	_, err = f.content.OpenPlace(ctx, "CLUE01", "c", crime)
	assert.NoError(t, err)

	_, err = f.content.OpenPlace(ctx, "CLUE01", "c", 9999)
	assert.ErrorIs(t, err, ErrPlaceNotFound)
	_, err = f.content.OpenPlace(ctx, "CLUE01", "stranger", crime)
	assert.ErrorIs(t, err, rooms.ErrNotMember)

	// discussion: no more clue viewing
	f.now = f.now.Add(game_constants.CLUE_DURATION)
	_, _, err = f.stages.Tick(ctx, "CLUE01", "a")
	require.NoError(t, err)
	_, err = f.content.OpenPlace(ctx, "CLUE01", "b", places[1].ID)
	assert.ErrorIs(t, err, stages.ErrWrongStage)
}
