package postgres

import "time"

/*
 * 'Player' is one seat of a room, bound to a device identity.
 * Display names are unique per room and at most one seat per room can
 * hold the host flag (partial unique index over host seats).
 */
type Player struct {
	// NOTE: composite primary key definition
	RoomCode    string    `gorm:"primaryKey;size:6;not null;index:idx_players_room_name,unique;index:idx_players_one_host,unique,where:is_host = true"`
	Identity    string    `gorm:"primaryKey;size:64;not null"`
	DisplayName string    `gorm:"size:24;not null;index:idx_players_room_name,unique"`
	Ready       bool      `gorm:"not null;default:false"`
	IsHost      bool      `gorm:"not null;default:false;index:idx_players_one_host,unique,where:is_host = true"`
	JoinedAt    time.Time `gorm:"not null"`
	// Roster version at join time, the deterministic join ordering key
	JoinSeq int64 `gorm:"not null;index"`
}
