package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomLog — запись аудита жизненного цикла комнаты
type RoomLog struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID    string    `gorm:"index;not null"`
	Event     string    `gorm:"not null"`
	Reason    string
	CreatedAt time.Time
}
