package dto

import "github.com/thereayou/conferio/internal/models"

type GetConferenceScheduledRequest struct {
	ExternalID string `json:"externalId" binding:"required"`
}

type ConferencesScheduledResultMsg struct {
	Conferences []models.ScheduledConference `json:"conferences,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

type ConferenceScheduledResultMsg struct {
	Conference   *models.ScheduledConference `json:"conference,omitempty"`
	WaitingCount int                         `json:"waitingCount"`
	Error        string                      `json:"error,omitempty"`
}
