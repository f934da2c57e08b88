package database

import (
	"github.com/thereayou/conferio/internal/models"
	"github.com/thereayou/conferio/internal/roomlog"
)

// RoomLogAdapter — персистентная реализация журнала комнат поверх gorm
type RoomLogAdapter struct {
	db *Database
}

func NewRoomLogAdapter(db *Database) *RoomLogAdapter {
	return &RoomLogAdapter{db: db}
}

func (a *RoomLogAdapter) Save(entry *roomlog.Entry) error {
	record := &models.RoomLog{
		RoomID:    entry.RoomID,
		Event:     entry.Event,
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt,
	}
	return a.db.db.Create(record).Error
}

func (a *RoomLogAdapter) Get(roomID string) ([]roomlog.Entry, error) {
	var records []models.RoomLog
	err := a.db.db.
		Where("room_id = ?", roomID).
		Order("created_at asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	entries := make([]roomlog.Entry, len(records))
	for i, rec := range records {
		entries[i] = roomlog.Entry{
			RoomID:    rec.RoomID,
			Event:     rec.Event,
			Reason:    rec.Reason,
			CreatedAt: rec.CreatedAt,
		}
	}
	return entries, nil
}
