package database

import (
	"time"

	"github.com/thereayou/conferio/internal/models"
)

func (d *Database) GetConferencesScheduled(from time.Time) ([]models.ScheduledConference, error) {
	var conferences []models.ScheduledConference
	err := d.db.
		Where("scheduled_at >= ?", from).
		Order("scheduled_at asc").
		Find(&conferences).Error
	if err != nil {
		return nil, err
	}
	return conferences, nil
}

func (d *Database) GetConferenceScheduled(externalID string) (*models.ScheduledConference, error) {
	var conf models.ScheduledConference
	if err := d.db.First(&conf, "external_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &conf, nil
}

func (d *Database) SaveConferenceScheduled(conf *models.ScheduledConference) error {
	return d.db.Save(conf).Error
}
