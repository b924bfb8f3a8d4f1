package postgres_test

import (
	"testing"
	"time"

	config "Mobius/config/postgres"
	"Mobius/models/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.ConnectSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.MigrateDatabase(db))
	return db
}

func seatPlayer(db *gorm.DB, room, identity, name string, host bool, seq int64) error {
	return db.Create(&postgres.Player{
		RoomCode:    room,
		Identity:    identity,
		DisplayName: name,
		IsHost:      host,
		JoinedAt:    time.Now(),
		JoinSeq:     seq,
	}).Error
}

func TestRoomAndPlayers(t *testing.T) {
	db := setupDB(t)

	host := "device-a"
	require.NoError(t, db.Create(&postgres.Room{Code: "ABCD", HostIdentity: &host, Variant: 2}).Error)
	require.NoError(t, db.Create(&postgres.Room{Code: "WXYZ"}).Error)

	require.NoError(t, seatPlayer(db, "ABCD", "device-a", "Ana", true, 1))
	require.NoError(t, seatPlayer(db, "ABCD", "device-b", "Bo", false, 2))

	t.Run("Display names are unique per room", func(t *testing.T) {
		assert.Error(t, seatPlayer(db, "ABCD", "device-c", "Ana", false, 3))
		assert.NoError(t, seatPlayer(db, "WXYZ", "device-c", "Ana", false, 1))
	})

	t.Run("One seat per identity and room", func(t *testing.T) {
		assert.Error(t, seatPlayer(db, "ABCD", "device-b", "Bea", false, 4))
	})

	t.Run("Only one host seat", func(t *testing.T) {
		assert.Error(t, seatPlayer(db, "ABCD", "device-d", "Dan", true, 5))
	})

	var room postgres.Room
	require.NoError(t, db.Preload("Players").Where("code = ?", "ABCD").First(&room).Error)
	assert.Equal(t, 2, room.Variant)
	assert.Equal(t, int64(0), room.RosterVersion)
	assert.Len(t, room.Players, 2)

	var other postgres.Room
	require.NoError(t, db.Where("code = ?", "WXYZ").First(&other).Error)
	assert.Nil(t, other.HostIdentity)
	assert.Equal(t, 1, other.Variant)
}

func TestRoomStateDefaults(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&postgres.Room{Code: "ABCD"}).Error)

	st := postgres.RoomState{RoomCode: "ABCD", StageStartAt: time.Now(), Variant: 3, Round: 1}
	require.NoError(t, db.Omit("Room").Create(&st).Error)

	var got postgres.RoomState
	require.NoError(t, db.Where("room_code = ?", "ABCD").First(&got).Error)
	assert.Equal(t, 1, got.Round)
	assert.Equal(t, 0, got.Stage)
	assert.Equal(t, 3, got.Variant)
	assert.False(t, got.Finished)
	assert.Equal(t, int64(0), got.Version)
}

func TestContentKeys(t *testing.T) {
	db := setupDB(t)

	require.NoError(t, db.Create(&postgres.CharacterSecret{Variant: 1, Seat: 1, Role: "Assistant"}).Error)
	assert.Error(t, db.Create(&postgres.CharacterSecret{Variant: 1, Seat: 1, Role: "Twin"}).Error)
	assert.NoError(t, db.Create(&postgres.CharacterSecret{Variant: 2, Seat: 1, Role: "Station guard"}).Error)
}
