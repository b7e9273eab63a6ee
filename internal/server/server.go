package server

import (
	"fmt"
	"net/http"
	"time"

	"smartlife2mqtt/internal/config"
	"smartlife2mqtt/internal/rooms"
	"smartlife2mqtt/internal/tuya"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port        uint
	httpLog     bool
	client      *tuya.Client
	rooms       *rooms.Service
	rootContext *actor.RootContext
	masterActor *actor.PID
	relayClient *http.Client
	logger      *zap.Logger
}

func NewServer(cfg config.Config, client *tuya.Client, roomService *rooms.Service,
	rootContext *actor.RootContext, masterActor *actor.PID, logger *zap.Logger) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		client:      client,
		rooms:       roomService,
		rootContext: rootContext,
		masterActor: masterActor,
		relayClient: &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With(zap.String("component", "server")),
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", NewServer.port),
		Handler:     NewServer.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// long enough for a retry-wrapped discovery to drain
		WriteTimeout: 4 * time.Minute,
	}

	return server
}
