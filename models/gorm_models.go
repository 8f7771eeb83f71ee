// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormMatchRecord 游戏记录模型
type GormMatchRecord struct {
	gorm.Model
	RoomCode string         `gorm:"index;not null"`
	Reason   string         `gorm:"not null"`
	Winner   string         `gorm:"index"`
	Players  []PlayerResult `gorm:"type:jsonb;serializer:json;not null"`
	Duration int            `gorm:"default:0"` // 游戏时长(秒)
}
