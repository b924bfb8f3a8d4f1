package postgres

import "gorm.io/datatypes"

// Read-only narrative content keyed by game variant.

type CaseFile struct {
	Variant int    `gorm:"primaryKey;autoIncrement:false"`
	Title   string `gorm:"size:120;not null"`
	Story   string `gorm:"type:text"`
}

type Place struct {
	ID        uint           `gorm:"primaryKey"`
	Variant   int            `gorm:"not null;index:idx_places_variant_order,priority:1"`
	Name      string         `gorm:"size:80;not null"`
	IsCrime   bool           `gorm:"not null;default:false"`
	SortOrder int            `gorm:"not null;default:0;index:idx_places_variant_order,priority:2"`
	Details   datatypes.JSON `gorm:"default:'{}'"`
}

// CharacterSecret is handed to the player sitting at Seat (join order, from 1).
type CharacterSecret struct {
	Variant int    `gorm:"primaryKey;autoIncrement:false"`
	Seat    int    `gorm:"primaryKey;autoIncrement:false"`
	Role    string `gorm:"size:80;not null"`
	Secret  string `gorm:"type:text"`
}
