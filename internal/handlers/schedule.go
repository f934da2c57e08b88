package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/conferio/internal/cache"
	"github.com/thereayou/conferio/internal/database"
	"github.com/thereayou/conferio/internal/handlers/dto"
	"github.com/thereayou/conferio/internal/models"
	"github.com/thereayou/conferio/internal/signaling"
)

// ScheduleHandler отдаёт внешние данные расписания через короткий кэш
type ScheduleHandler struct {
	db    *database.Database
	cache *cache.Manager
	lobby *signaling.RoomLobby
}

func NewScheduleHandler(db *database.Database, cacheMgr *cache.Manager, lobby *signaling.RoomLobby) *ScheduleHandler {
	return &ScheduleHandler{db: db, cache: cacheMgr, lobby: lobby}
}

// GetConferencesScheduled возвращает предстоящие конференции
func (h *ScheduleHandler) GetConferencesScheduled(c *gin.Context) {
	const cacheKey = "schedule:upcoming"

	var conferences []models.ScheduledConference
	hit, err := h.cache.Get(c.Request.Context(), cacheKey, &conferences)
	if err != nil {
		log.Printf("Schedule cache read failed: %v", err)
	}

	if !hit {
		conferences, err = h.db.GetConferencesScheduled(time.Now().Add(-24 * time.Hour))
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ConferencesScheduledResultMsg{Error: "failed to load schedule"})
			return
		}
		if err := h.cache.Set(c.Request.Context(), cacheKey, conferences); err != nil {
			log.Printf("Schedule cache write failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, dto.ConferencesScheduledResultMsg{Conferences: conferences})
}

// GetConferenceScheduled возвращает одну конференцию и размер её очереди
func (h *ScheduleHandler) GetConferenceScheduled(c *gin.Context) {
	var req dto.GetConferenceScheduledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ConferenceScheduledResultMsg{Error: err.Error()})
		return
	}

	cacheKey := "schedule:conf:" + req.ExternalID

	var conf models.ScheduledConference
	hit, err := h.cache.Get(c.Request.Context(), cacheKey, &conf)
	if err != nil {
		log.Printf("Schedule cache read failed: %v", err)
	}

	if !hit {
		found, err := h.db.GetConferenceScheduled(req.ExternalID)
		if err != nil {
			c.JSON(http.StatusNotFound, dto.ConferenceScheduledResultMsg{Error: "ConferenceNotFound"})
			return
		}
		conf = *found
		if err := h.cache.Set(c.Request.Context(), cacheKey, conf); err != nil {
			log.Printf("Schedule cache write failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, dto.ConferenceScheduledResultMsg{
		Conference:   &conf,
		WaitingCount: h.lobby.CountWaiting(req.ExternalID),
	})
}
