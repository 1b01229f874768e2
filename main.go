package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-delivery-service/internal/buffer"
	"chat-delivery-service/internal/config"
	"chat-delivery-service/internal/db"
	"chat-delivery-service/internal/delivery"
	"chat-delivery-service/internal/handlers"
	"chat-delivery-service/internal/logger"
	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/observability"
	"chat-delivery-service/internal/rabbitmq"
	"chat-delivery-service/internal/readstate"
	"chat-delivery-service/internal/repositories"
	"chat-delivery-service/internal/telemetry"
	"chat-delivery-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog := logger.New(cfg.Logging.Service, cfg.Logging.Env, cfg.Logging.Debug)
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Logging.Service, os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		zlog.Warn("tracing disabled", zap.Error(err))
	} else {
		defer shutdownTracer(context.Background())
	}

	database, err := db.Connect(cfg.Postgres.DSN)
	if err != nil {
		zlog.Fatal("failed to connect to db", zap.Error(err))
	}

	var buf buffer.DeliveryBuffer
	redisBuf, err := buffer.NewRedisBuffer(cfg.Redis.Addr)
	if err != nil {
		// Degraded mode: direct pushes still work, buffering is skipped.
		zlog.Warn("redis unavailable, delivery buffering disabled", zap.Error(err))
		buf = buffer.NoopBuffer{}
	} else {
		defer redisBuf.Close()
		buf = redisBuf
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, zlog)
	defer publisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.chat_delivery", cfg.Logging.Service, cfg.Logging.Env, zlog)

	if obsPublisher, err := observability.NewEventPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange); err == nil {
		observability.SetPublisher(obsPublisher)
		defer obsPublisher.Close()
	} else {
		zlog.Warn("event publishing disabled", zap.Error(err))
	}

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	readStatusRepo := repositories.NewReadStatusRepo(database)

	hub := ws.NewHub()

	coordinator := delivery.NewCoordinator(messageRepo, buf, hub, delivery.Options{
		RetryQueueTTL: cfg.Delivery.RetryQueueTTL,
		RetryCountTTL: cfg.Delivery.RetryCountTTL,
		MaxRetries:    cfg.Delivery.MaxRetries,
	}, zlog)
	tracker := readstate.NewTracker(readStatusRepo, zlog)

	sweeper := delivery.NewSweeper(coordinator, hub, roomRepo, tracker,
		cfg.Delivery.SweepInterval, cfg.Delivery.ReadStatusRetention, zlog)
	go sweeper.Run(ctx)

	verifier := middleware.NewTokenVerifier(cfg.Auth.JWTSecret)

	roomHandler := handlers.NewRoomHandler(roomRepo, coordinator, tracker)
	messageHandler := handlers.NewMessageHandler(roomRepo, messageRepo, coordinator, zlog)
	readStateHandler := handlers.NewReadStateHandler(roomRepo, messageRepo, tracker)
	mailboxHandler := handlers.NewMailboxHandler(coordinator)
	roomWS := ws.NewRoomWebSocketHandler(hub, roomRepo, tracker, verifier, zlog)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Logging.Service))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/rooms", authMiddleware, roomHandler.CreateRoom)
	router.GET("/rooms", authMiddleware, roomHandler.ListRooms)
	router.GET("/rooms/:room_id/unread", authMiddleware, roomHandler.GetRoomUnread)
	router.GET("/rooms/:room_id/messages", authMiddleware, messageHandler.GetRoomMessages)
	router.POST("/rooms/:room_id/messages", authMiddleware, messageHandler.PostRoomMessage)
	router.POST("/rooms/:room_id/read", authMiddleware, readStateHandler.MarkRoomRead)
	router.GET("/rooms/:room_id/messages/:message_id/receipt", authMiddleware, readStateHandler.GetReadReceipt)
	router.GET("/unread", authMiddleware, readStateHandler.GetUnreadSummary)
	router.POST("/mailbox/flush", authMiddleware, mailboxHandler.FlushMailbox)

	router.GET("/ws/rooms/:room_id", roomWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, os.Getenv("DEBUG_ROUTES") == "1")

	zlog.Info("listening", zap.String("addr", cfg.HTTP.Addr))
	if err := router.Run(cfg.HTTP.Addr); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
