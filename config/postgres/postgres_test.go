package postgres

import (
	"testing"
	"time"

	models "Mobius/models/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := ConnectSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, MigrateDatabase(db))
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"rooms", "players", "room_states", "case_files", "places", "character_secrets"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&models.Player{}, "idx_players_room_name"))
	assert.True(t, db.Migrator().HasIndex(&models.Player{}, "idx_players_one_host"))
}

func TestDisplayNameUniquePerRoom(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	require.NoError(t, db.Create(&models.Room{Code: "ABCD", Variant: 1}).Error)
	require.NoError(t, db.Create(&models.Room{Code: "WXYZ", Variant: 1}).Error)

	require.NoError(t, db.Create(&models.Player{RoomCode: "ABCD", Identity: "a", DisplayName: "Eve", JoinedAt: now, JoinSeq: 1}).Error)
	err := db.Create(&models.Player{RoomCode: "ABCD", Identity: "b", DisplayName: "Eve", JoinedAt: now, JoinSeq: 2}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// same name in another room is fine
	assert.NoError(t, db.Create(&models.Player{RoomCode: "WXYZ", Identity: "b", DisplayName: "Eve", JoinedAt: now, JoinSeq: 1}).Error)
}

func TestSingleHostPerRoom(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	require.NoError(t, db.Create(&models.Room{Code: "ABCD", Variant: 1}).Error)
	require.NoError(t, db.Create(&models.Player{RoomCode: "ABCD", Identity: "a", DisplayName: "Ann", IsHost: true, JoinedAt: now, JoinSeq: 1}).Error)
	require.NoError(t, db.Create(&models.Player{RoomCode: "ABCD", Identity: "b", DisplayName: "Bob", JoinedAt: now, JoinSeq: 2}).Error)
	require.NoError(t, db.Create(&models.Player{RoomCode: "ABCD", Identity: "c", DisplayName: "Cid", JoinedAt: now, JoinSeq: 3}).Error)

	err := db.Create(&models.Player{RoomCode: "ABCD", Identity: "d", DisplayName: "Dan", IsHost: true, JoinedAt: now, JoinSeq: 4}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
