package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledConference — запланированная конференция из внешнего расписания
type ScheduledConference struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExternalID  string    `gorm:"uniqueIndex;not null" json:"externalId"`
	Title       string    `gorm:"not null" json:"title"`
	ScheduledAt time.Time `gorm:"index" json:"scheduledAt"`

	UsersMax                  int    `gorm:"default:20" json:"usersMax"`
	GuestsMax                 int    `gorm:"default:0" json:"guestsMax"`
	AccessCodeHash            string `json:"-"`
	MaxDurationMinutes        int    `json:"maxDurationMinutes"`
	NoParticipantsTimeoutSecs int    `json:"noParticipantsTimeoutSecs"`
	CloseOnLeaderExit         bool   `json:"closeOnLeaderExit"`
	AdminTrackingID           string `json:"adminTrackingId,omitempty"`
	Layout                    string `gorm:"default:'grid'" json:"layout"`

	CreatedAt time.Time `json:"createdAt"`
}
