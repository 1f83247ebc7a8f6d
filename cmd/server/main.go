package main

// @title           Softadastra Realtime API
// @version         1.0
// @description     Marketplace realtime backend: chat, product likes and live analytics over WebSocket plus the REST surface behind them.
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/softadastra-group/softadastra-chat/internal/adapters/kafka"
	"github.com/softadastra-group/softadastra-chat/internal/adapters/storage"
	"github.com/softadastra-group/softadastra-chat/internal/analytics"
	"github.com/softadastra-group/softadastra-chat/internal/api/routes"
	"github.com/softadastra-group/softadastra-chat/internal/config"
	"github.com/softadastra-group/softadastra-chat/internal/database"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
	"github.com/softadastra-group/softadastra-chat/internal/services"
	"github.com/softadastra-group/softadastra-chat/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	slog.Info("Starting softadastra realtime server", "env", cfg.Env)

	db, err := database.NewMySQLConnection(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to MySQL", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := database.NewRedisConnection(&cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	redisService := services.NewRedisService(redisClient)

	// Kafka and MinIO are optional in development: the server runs without
	// them, losing only the firehose and uploads.
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			slog.Warn("Kafka unavailable, event firehose disabled", "error", err)
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	var minioClient *storage.MinIOClient
	if cfg.Storage.Endpoint != "" {
		minioClient, err = storage.NewMinIOClient(
			cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket)
		if err != nil {
			slog.Warn("MinIO unavailable, uploads disabled", "error", err)
			minioClient = nil
		}
	}

	userService, chatService, feedService := routes.NewServices(cfg, db)

	// Hubs. The likes hub needs the like service for counts and the like
	// service needs the hub for broadcasts, so the service is built around
	// the repository first and the hub around the service.
	likeRepo := repository.NewLikeRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	chatHub := websocket.NewChatHub(chatService, redisService)
	go chatHub.Run()

	likeService := services.NewLikeService(likeRepo, nil)
	likesHub := websocket.NewLikesHub(likeService)
	likeService.SetBroadcaster(likesHub)
	go likesHub.Run()

	var publisher services.EventPublisher
	if producer != nil {
		publisher = producer
	}

	analyticsHub := websocket.NewAnalyticsHub(nil, nil)
	aggregator := analytics.NewAggregator(analyticsHub, cfg.Analytics.FlushInterval, cfg.Analytics.ActiveWindow)
	analyticsService := services.NewAnalyticsService(analyticsRepo, aggregator, publisher, cfg.Analytics.SnapshotWindow)
	analyticsHub.SetSources(analyticsService, analyticsService)
	go analyticsHub.Run()
	go aggregator.Run()

	router := routes.NewRouter(routes.Deps{
		Config:           cfg,
		RedisService:     redisService,
		Storage:          minioClient,
		ChatHub:          chatHub,
		LikesHub:         likesHub,
		AnalyticsHub:     analyticsHub,
		UserService:      userService,
		ChatService:      chatService,
		LikeService:      likeService,
		FeedService:      feedService,
		AnalyticsService: analyticsService,
	})
	router.SetupRoutes()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	aggregator.Stop()
	chatHub.Stop()
	likesHub.Stop()
	analyticsHub.Stop()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server stopped")
}
