package postgres

import (
	"time"
)

/*
 * 'Room' is a Mobius game room, addressed by its short code.
 * RosterVersion is bumped (compare-and-set) by every room or membership
 * mutation, and is the version carried by distributed roster snapshots.
 */
type Room struct {
	Code          string    `gorm:"primaryKey;size:6;not null"`
	HostIdentity  *string   `gorm:"size:64"`
	Variant       int       `gorm:"not null;default:1"`
	RosterVersion int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`

	// Relationship with the seated players
	Players []*Player `gorm:"foreignKey:RoomCode;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
