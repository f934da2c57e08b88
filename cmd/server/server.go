package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/thereayou/conferio/internal/cache"
	"github.com/thereayou/conferio/internal/database"
	"github.com/thereayou/conferio/internal/handlers"
	"github.com/thereayou/conferio/internal/roomlog"
	"github.com/thereayou/conferio/internal/sfu"
	"github.com/thereayou/conferio/internal/signaling"
	"github.com/thereayou/conferio/pkg/auth"
)

type Server struct {
	Router      *gin.Engine
	DB          *database.Database
	Redis       *redis.Client
	Tokens      *auth.TokenManager
	Connections *signaling.ConnectionRegistry
	Conferences *signaling.ConferenceRegistry
	Signaling   *signaling.Router
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	tokens := auth.NewTokenManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	clock := signaling.NewClock()
	presence := signaling.NewPresenceDirectory()
	lobby := signaling.NewRoomLobby()

	var logs roomlog.Adapter = roomlog.NewMemory()
	if os.Getenv("ROOM_LOG_DRIVER") == "postgres" {
		logs = database.NewRoomLogAdapter(dbConn)
	}

	conferences := signaling.NewConferenceRegistry(clock, presence, logs, signaling.Defaults{
		NoParticipantsTimeoutSecs: getenvInt("NO_PARTICIPANTS_TIMEOUT_SECS", 60),
		MaxDurationMinutes:        getenvInt("MAX_ROOM_DURATION_MINUTES", 0),
	})

	registerTimeout := time.Duration(getenvInt("REGISTER_TIMEOUT_SECS", 30)) * time.Second
	connections := signaling.NewConnectionRegistry(clock, tokens, presence, registerTimeout, registerTimeout)

	engine := sfu.NewPionEngine()
	sigRouter := signaling.NewRouter(connections, presence, conferences, lobby, engine)

	cacheTTL := time.Duration(getenvInt("SCHEDULE_CACHE_TTL_SECS", 30)) * time.Second
	cacheMgr := cache.NewManager(rdb, cacheTTL)

	moderator := handlers.ModeratorCredentials{
		Username:     os.Getenv("MODERATOR_USERNAME"),
		PasswordHash: os.Getenv("MODERATOR_PASSWORD_HASH"),
		TrackingID:   os.Getenv("MODERATOR_TRACKING_ID"),
	}

	authH := handlers.NewAuthHandler(tokens, rdb, moderator)
	scheduleH := handlers.NewScheduleHandler(dbConn, cacheMgr, lobby)
	wsH := handlers.NewWebSocketHandler(connections, sigRouter)

	router := gin.Default()
	APIEndpoints(router, authH, scheduleH, wsH, tokens, rdb)

	return &Server{
		Router:      router,
		DB:          dbConn,
		Redis:       rdb,
		Tokens:      tokens,
		Connections: connections,
		Conferences: conferences,
		Signaling:   sigRouter,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		log.Fatalf("Server run error: %v", err)
	}
}

// Shutdown закрывает конференции и соединения
func (s *Server) Shutdown() {
	s.Conferences.CloseAll(signaling.ReasonServerShutdown)
	s.Connections.Shutdown()
	s.Signaling.Stop()
}

func getenvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}
