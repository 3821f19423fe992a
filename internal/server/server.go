package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatify-realtime/config"
	"chatify-realtime/internal/handler"
	"chatify-realtime/internal/metrics"
	"chatify-realtime/internal/middleware"
	"chatify-realtime/internal/services"
	"chatify-realtime/internal/websocket"
	"chatify-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Health    *handler.HealthHandler
	Room      *handler.RoomHandler
	Scheduled *handler.ScheduledHandler
	Admin     *handler.AdminHandler
	WebSocket *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mostly for httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *middleware.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.AllowedOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", handlers.Health.Ping)
	s.engine.GET("/health", handlers.Health.Health)
	s.engine.GET("/metrics", metrics.Handler())

	if handlers.WebSocket != nil {
		s.engine.GET("/ws", handlers.WebSocket.Connect)
	}

	v1 := s.engine.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authService))
	if limiter != nil {
		v1.Use(middleware.RateLimitMiddleware(limiter))
	}

	rooms := v1.Group("/rooms/:roomId")
	{
		rooms.POST("/join", handlers.Room.Join)
		rooms.GET("/pages", handlers.Room.LoadPage)
		rooms.POST("/messages", handlers.Room.Send)
		rooms.GET("/saved", handlers.Room.Saved)
		rooms.POST("/pages/:pageId/messages/:messageId/reactions", handlers.Room.ToggleReaction)
		rooms.PATCH("/pages/:pageId/messages/:messageId", handlers.Room.Edit)
		rooms.DELETE("/pages/:pageId/messages/:messageId", handlers.Room.Delete)
		rooms.POST("/pages/:pageId/messages/:messageId/save", handlers.Room.ToggleSaved)
		rooms.GET("/scheduled-messages", handlers.Scheduled.ListByRoom)
	}

	scheduled := v1.Group("/scheduled-messages")
	{
		scheduled.POST("", handlers.Scheduled.Create)
		scheduled.GET("", handlers.Scheduled.ListMine)
		scheduled.PUT("/:id", handlers.Scheduled.Update)
		scheduled.POST("/:id/cancel", handlers.Scheduled.Cancel)
		scheduled.DELETE("/:id", handlers.Scheduled.Delete)
	}

	if handlers.Admin != nil {
		v1.POST("/admin/scheduler/trigger", handlers.Admin.TriggerScheduler)
	}
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully. onShutdown
// runs after the listener has stopped.
func (s *Server) Start(onShutdown func()) error {
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	s.logger.Infof("Server is running on :%s", s.config.AppPort)

	<-quit

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if onShutdown != nil {
		onShutdown()
	}
	if err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
