package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/config"
	"group-chat-service/internal/db"
	"group-chat-service/internal/directory"
	"group-chat-service/internal/engine"
	"group-chat-service/internal/filestore"
	"group-chat-service/internal/handlers"
	"group-chat-service/internal/middleware"
	"group-chat-service/internal/observability"
	"group-chat-service/internal/rabbitmq"
	"group-chat-service/internal/repositories"
	"group-chat-service/internal/telemetry"
	"group-chat-service/internal/ws"
)

const serviceName = "group-chat-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, serviceName, cfg.Otel.Endpoint)
	if err != nil {
		logger.Fatal("failed to set up tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	var dedup engine.DedupStore
	if cfg.Redis.Enable {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		dedup = engine.NewRedisDedup(rdb, cfg.Redis.DedupTTL)
		logger.Info("redis dedup enabled", zap.String("addr", cfg.Redis.Addr))
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "group_chat.audit", serviceName, cfg.Environment, logger)

	if cfg.AMQP.URL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			logger.Warn("connection events disabled", zap.Error(err))
		} else {
			defer eventPublisher.Close()
			observability.SetPublisher(eventPublisher)
		}
	}

	userDir := directory.NewHTTPDirectory(cfg.User.BaseURL)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret, userDir)

	groupRepo := repositories.NewGroupRepo(database)
	messageRepo := repositories.NewGroupMessageRepo(database)

	hub := ws.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	eng := engine.New(groupRepo, messageRepo, hub, dedup, cfg.DB.StorageTimeout, logger)

	files, err := filestore.NewDiskStore(cfg.Files.UploadDir, cfg.Files.PublicBase)
	if err != nil {
		logger.Fatal("failed to init file store", zap.Error(err))
	}

	groupHandler := handlers.NewGroupHandler(groupRepo, eng, userDir, hub, audit)
	messageHandler := handlers.NewMessageHandler(groupRepo, messageRepo, eng, files, audit, cfg.Files.MaxSizeMB<<20)
	wsHandler := ws.NewHandler(hub, eng, verifier, cfg.WS.EventRate, cfg.WS.EventBurst, logger)

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	api := router.Group("/api")
	api.Use(authMiddleware)
	{
		api.POST("/groups", groupHandler.CreateGroup)
		api.GET("/groups", groupHandler.ListGroups)
		api.GET("/users/:user_id/groups", groupHandler.ListUserGroups)
		api.GET("/groups/:group_id", groupHandler.GetGroup)
		api.PUT("/groups/:group_id", groupHandler.UpdateGroup)
		api.DELETE("/groups/:group_id", groupHandler.DeleteGroup)
		api.POST("/groups/:group_id/join", groupHandler.JoinGroup)
		api.POST("/groups/:group_id/leave", groupHandler.LeaveGroup)
		api.DELETE("/groups/:group_id/members/:user_id", groupHandler.RemoveMember)

		api.GET("/groups/:group_id/messages", messageHandler.ListMessages)
		api.POST("/groups/:group_id/messages", messageHandler.PostMessage)
		api.POST("/groups/:group_id/upload", messageHandler.UploadMessage)
		api.POST("/groups/messages/:message_id/like", messageHandler.ToggleLike)
	}

	router.GET("/ws", wsHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static(cfg.Files.PublicBase, cfg.Files.UploadDir)

	logger.Info("server starting", zap.String("addr", cfg.Addr))
	if err := router.Run(cfg.Addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
