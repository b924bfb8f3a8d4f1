package postgres

import (
	"time"

	"gorm.io/datatypes"
)

/*
 * 'RoomState' persists the round/stage machine of a room. Only the host
 * writes it, guarded by Version (compare-and-set).
 */
type RoomState struct {
	RoomCode     string         `gorm:"primaryKey;size:6;not null"`
	Epoch        int            `gorm:"not null;default:0"`
	Round        int            `gorm:"not null;default:1"`
	Stage        int            `gorm:"not null;default:0"`
	Verdict      int            `gorm:"not null;default:0"` // sub-phase of the verdict stage
	StageStartAt time.Time      `gorm:"not null"`
	Variant      int            `gorm:"not null;default:1"`
	Finished     bool           `gorm:"not null;default:false"`
	Outcome      datatypes.JSON `gorm:"default:'{}'"`
	Version      int64          `gorm:"not null;default:0"`
	UpdatedAt    time.Time

	Room Room `gorm:"foreignKey:RoomCode;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
