package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/softadastra-group/softadastra-chat/internal/adapters/storage"
	"github.com/softadastra-group/softadastra-chat/internal/api/handlers"
	"github.com/softadastra-group/softadastra-chat/internal/api/middleware"
	"github.com/softadastra-group/softadastra-chat/internal/config"
	"github.com/softadastra-group/softadastra-chat/internal/repository"
	"github.com/softadastra-group/softadastra-chat/internal/services"
	"github.com/softadastra-group/softadastra-chat/internal/websocket"
)

// Deps bundles the process-wide collaborators main wires up before routing.
type Deps struct {
	Config       *config.Config
	RedisService *services.RedisService
	Storage      *storage.MinIOClient

	ChatHub      *websocket.ChatHub
	LikesHub     *websocket.LikesHub
	AnalyticsHub *websocket.AnalyticsHub

	UserService      *services.UserService
	ChatService      *services.ChatService
	LikeService      *services.LikeService
	FeedService      *services.FeedService
	AnalyticsService *services.AnalyticsService
}

type Router struct {
	engine *gin.Engine

	wsHandler           *handlers.WSHandler
	authHandler         *handlers.AuthHandler
	messageHandler      *handlers.MessageHandler
	notificationHandler *handlers.NotificationHandler
	likeHandler         *handlers.LikeHandler
	feedHandler         *handlers.FeedHandler
	analyticsHandler    *handlers.AnalyticsHandler
	uploadHandler       *handlers.UploadHandler

	rateLimitMW *middleware.RateLimitMiddleware
	authMW      *middleware.AuthMiddleware
}

func NewRouter(d Deps) *Router {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(d.Config.CORS.AllowedOrigins))
	engine.Use(middleware.LogApi())

	return &Router{
		engine:              engine,
		wsHandler:           handlers.NewWSHandler(d.Config, d.ChatHub, d.LikesHub, d.AnalyticsHub),
		authHandler:         handlers.NewAuthHandler(d.UserService),
		messageHandler:      handlers.NewMessageHandler(d.ChatService),
		notificationHandler: handlers.NewNotificationHandler(d.ChatService),
		likeHandler:         handlers.NewLikeHandler(d.LikeService),
		feedHandler:         handlers.NewFeedHandler(d.FeedService),
		analyticsHandler:    handlers.NewAnalyticsHandler(d.AnalyticsService),
		uploadHandler:       handlers.NewUploadHandler(d.Storage),
		rateLimitMW:         middleware.NewRateLimitMiddleware(d.RedisService),
		authMW:              middleware.NewAuthMiddleware(d.Config.JWT.Secret),
	}
}

// NewServices builds the service layer from the database handle; separated
// so main can hand individual services to the hubs before routing exists.
func NewServices(cfg *config.Config, db *gorm.DB) (*services.UserService, *services.ChatService, *services.FeedService) {
	userRepo := repository.NewUserRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	userService := services.NewUserService(userRepo, cfg)
	chatService := services.NewChatService(threadRepo, messageRepo, notificationRepo, userRepo)
	feedService := services.NewFeedService(repository.NewFeedRepository(db), userRepo)
	return userService, chatService, feedService
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	// WebSocket upgrades; authorization happens inside the handlers before
	// the handshake.
	ws := api.Group("/ws")
	{
		ws.GET("/chat", r.wsHandler.HandleChat)
		ws.GET("/likes", r.wsHandler.HandleLikes)
		ws.GET("/analytics", r.wsHandler.HandleAnalytics)
	}

	// Public routes.
	public := api.Group("/")
	{
		authRoutes := public.Group("/auth")
		authRoutes.Use(r.rateLimitMW.RateLimitIP(50, time.Minute))
		{
			authRoutes.POST("/register", r.authHandler.Register)
			authRoutes.POST("/login", r.authHandler.Login)
		}

		public.GET("/feed", r.feedHandler.List)
		public.GET("/products/:id/likes", r.likeHandler.Count)

		analyticsRoutes := public.Group("/analytics")
		analyticsRoutes.Use(r.rateLimitMW.RateLimitIP(300, time.Minute))
		{
			analyticsRoutes.POST("/events", r.authMW.OptionalAuth(), r.analyticsHandler.Ingest)
		}
	}

	// Authenticated routes.
	authed := api.Group("/")
	authed.Use(r.authMW.RequireAuth())
	{
		authed.GET("/auth/me", r.authHandler.Profile)
		authed.POST("/auth/ws-ticket", r.authHandler.WSTicket)

		messages := authed.Group("/threads")
		messages.Use(r.rateLimitMW.RateLimit(200, time.Minute))
		{
			messages.GET("", r.messageHandler.ListThreads)
			messages.GET("/:id/messages", r.messageHandler.ThreadHistory)
		}

		notifications := authed.Group("/notifications")
		notifications.Use(r.rateLimitMW.RateLimit(100, time.Minute))
		{
			notifications.GET("", r.notificationHandler.List)
			notifications.POST("/read", r.notificationHandler.MarkAllRead)
		}

		authed.POST("/products/:id/like", r.rateLimitMW.RateLimit(100, time.Minute), r.likeHandler.Toggle)
		authed.POST("/feed", r.rateLimitMW.RateLimit(30, time.Minute), r.feedHandler.Create)
		authed.POST("/uploads", r.rateLimitMW.RateLimit(30, time.Minute), r.uploadHandler.Upload)

		authed.GET("/analytics/snapshot",
			r.authMW.RequireRole("admin", "user"),
			r.analyticsHandler.Snapshot)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
