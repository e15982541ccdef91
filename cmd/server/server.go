package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/medconnect/telemed/internal/consultation"
	"github.com/medconnect/telemed/internal/database"
	"github.com/medconnect/telemed/internal/handlers"
	"github.com/medconnect/telemed/internal/websocket"
	"github.com/medconnect/telemed/pkg/auth"
)

type Server struct {
	Router      *gin.Engine
	DB          *database.Database
	Redis       *redis.Client
	JWTManager  *auth.JWTManager
	Hub         *websocket.Hub
	Coordinator *consultation.Coordinator
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := database.NewDatabase(nil)
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

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	hub := websocket.NewHub()
	go hub.Run()

	coordinator := consultation.NewCoordinator()

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	chatH := handlers.NewChatHandler(dbConn, hub, coordinator)
	wsH := handlers.NewWebSocketHandler(hub, chatH)
	chatQueryH := handlers.NewChatQueryHandler(dbConn)
	apptH := handlers.NewAppointmentHandler(dbConn)

	router := gin.Default()
	APIEndpoints(router, jwtMgr, rdb, authH, wsH, chatQueryH, apptH)

	return &Server{
		Router:      router,
		DB:          dbConn,
		Redis:       rdb,
		JWTManager:  jwtMgr,
		Hub:         hub,
		Coordinator: coordinator,
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

func (s *Server) Shutdown() {
	s.Hub.Stop()
}
