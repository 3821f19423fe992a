package main

import (
	"context"
	"errors"
	"log"

	"chatify-realtime/config"
	"chatify-realtime/internal/app"
	"chatify-realtime/internal/events"
	"chatify-realtime/internal/handler"
	"chatify-realtime/internal/middleware"
	chatify_redis "chatify-realtime/internal/redis"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/scheduler"
	"chatify-realtime/internal/server"
	"chatify-realtime/internal/services"
	"chatify-realtime/internal/websocket"
	"chatify-realtime/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := app.OpenBackends(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Failed to open backends: %v", err)
	}
	defer backends.Close()

	hub := websocket.NewHub()

	var broadcaster events.Broadcaster = events.NewHubBroadcaster(hub)
	if cfg.BroadcastRedis {
		broadcaster = events.NewRedisBroadcaster(chatify_redis.NewPublisher(backends.Redis), hub)
		bridge := websocket.NewRedisBridge(chatify_redis.NewSubscriber(backends.Redis), hub)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	rooms := repository.NewRoomRepository(backends.Store)
	scheduledRepo := repository.NewScheduledMessageRepository(backends.Store)

	registry := services.NewRoomRegistry(backends.Store, rooms, broadcaster, services.SessionOptions{
		PageSize:       cfg.PageSize,
		StoreTimeout:   cfg.StoreTimeout,
		PublishTimeout: cfg.PublishTimeout,
		Logger:         l.Named("rooms"),
	})
	authService := services.NewAuthService(cfg)
	chatService := services.NewChatService(registry, rooms)
	scheduledService := services.NewScheduledService(scheduledRepo, rooms)

	processor := scheduler.NewProcessor(scheduledRepo, registry, l)
	runner, err := scheduler.NewRunner(processor, cfg.SchedulerCron, l)
	if err != nil {
		log.Fatalf("Failed to configure scheduler: %v", err)
	}
	if cfg.SchedulerEnabled {
		runner.Start(ctx)
	}

	wsHandler := websocket.NewHandler(ctx, authService, hub, chatService, websocket.Limits{
		EventsPerSecond: cfg.WSEventsPerSecond,
		Burst:           cfg.WSEventBurst,
	}, cfg.AllowedOrigins, websocket.NewWebSocketLogger(l))

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Health:    handler.NewHealthHandler(backends.Checks),
		Room:      handler.NewRoomHandler(chatService),
		Scheduled: handler.NewScheduledHandler(scheduledService),
		Admin:     handler.NewAdminHandler(runner),
		WebSocket: wsHandler,
	}, authService, middleware.NewRateLimiter(cfg.WSEventsPerSecond*2, cfg.WSEventBurst*2))

	if err := srv.Start(cancel); err != nil {
		l.Error("server shutdown failed", zap.Error(err))
	}
}
