package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/conferio/internal/handlers/dto"
	"github.com/thereayou/conferio/pkg/auth"
)

// ModeratorCredentials — учетные данные ведущего из окружения
type ModeratorCredentials struct {
	Username     string
	PasswordHash string // bcrypt
	TrackingID   string
}

type AuthHandler struct {
	tokens    *auth.TokenManager
	redis     *redis.Client
	moderator ModeratorCredentials
}

func NewAuthHandler(tokens *auth.TokenManager, rdb *redis.Client, moderator ModeratorCredentials) *AuthHandler {
	return &AuthHandler{tokens: tokens, redis: rdb, moderator: moderator}
}

// Login выдаёт токен; совпадение с учеткой ведущего даёт роль admin
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.LoginResultMsg{Error: err.Error()})
		return
	}

	role := "user"
	trackingID := ""
	if req.Username == h.moderator.Username {
		if bcrypt.CompareHashAndPassword([]byte(h.moderator.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, dto.LoginResultMsg{Error: "invalid credentials"})
			return
		}
		role = "admin"
		trackingID = h.moderator.TrackingID
	}

	participantID := uuid.New()
	token, err := h.tokens.Generate(participantID.String(), req.Username, role, trackingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.LoginResultMsg{Error: "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResultMsg{
		Token:         token,
		ParticipantID: participantID.String(),
		DisplayName:   req.Username,
		Role:          role,
	})
}

// LoginGuest выдаёт гостевой токен без пароля
func (h *AuthHandler) LoginGuest(c *gin.Context) {
	var req dto.LoginGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.LoginResultMsg{Error: err.Error()})
		return
	}

	participantID := uuid.New()
	token, err := h.tokens.Generate(participantID.String(), req.DisplayName, "guest", "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.LoginResultMsg{Error: "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResultMsg{
		Token:         token,
		ParticipantID: participantID.String(),
		DisplayName:   req.DisplayName,
		Role:          "guest",
	})
}

// Authenticate проверяет токен и возвращает его содержимое
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req dto.AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.LoginResultMsg{Error: err.Error()})
		return
	}

	claims, err := h.tokens.Verify(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, dto.LoginResultMsg{Error: "Unauthorized"})
		return
	}

	c.JSON(http.StatusOK, dto.LoginResultMsg{
		ParticipantID: claims.Subject,
		DisplayName:   claims.DisplayName,
		Role:          claims.Role,
	})
}

// Logout ставит токен в черный список в Redis до истечения
func (h *AuthHandler) Logout(c *gin.Context) {
	rawToken, err := auth.ExtractTokenFromHeader(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exp, err := h.tokens.Expiry(rawToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ttl := time.Until(exp)
	h.redis.Set(context.Background(), "blacklist:"+rawToken, 1, ttl)

	c.Status(http.StatusOK)
}
