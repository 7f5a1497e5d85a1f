package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/bonfires-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bonfires-backend/internal/http/middleware"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	TracingEnabled bool
	ServiceName    string

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler     *httpH.AuthHandler
	UserHandler     *httpH.UserHandler
	AvatarHandler   *httpH.AvatarHandler
	ChannelHandler  *httpH.ChannelHandler
	SettingsHandler *httpH.SettingsHandler
	MessageHandler  *httpH.MessageHandler
	PresenceHandler *httpH.PresenceHandler
	RealtimeHandler *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(httpMW.Recovery(cfg.Log))
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
			protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
			protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)
		}

		// Users
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.PATCH("/me", cfg.UserHandler.UpdateMe)
			protected.GET("/users/:id", cfg.UserHandler.GetUser)
			protected.GET("/users/:id/mutual-channels", cfg.UserHandler.MutualChannels)
		}

		// Avatars
		if cfg.AvatarHandler != nil {
			protected.PUT("/me/avatar", cfg.AvatarHandler.UploadMine)
			protected.GET("/users/:id/avatar", cfg.AvatarHandler.User)
			protected.PUT("/channels/:id/avatar", cfg.AvatarHandler.UploadChannel)
			protected.GET("/channels/:id/avatar", cfg.AvatarHandler.Channel)
		}

		// Channels
		if cfg.ChannelHandler != nil {
			protected.GET("/channels", cfg.ChannelHandler.List)
			protected.POST("/channels", cfg.ChannelHandler.Create)
			protected.GET("/channels/:id", cfg.ChannelHandler.Get)
			protected.PATCH("/channels/:id", cfg.ChannelHandler.UpdateTitle)
			protected.DELETE("/channels/:id", cfg.ChannelHandler.Delete)
			protected.POST("/channels/:id/members", cfg.ChannelHandler.Invite)
			protected.DELETE("/channels/:id/members/:userId", cfg.ChannelHandler.Kick)
			protected.POST("/channels/:id/leave", cfg.ChannelHandler.Leave)
			protected.POST("/channels/:id/owner", cfg.ChannelHandler.Promote)
		}

		// Settings
		if cfg.SettingsHandler != nil {
			protected.GET("/channels/:id/settings", cfg.SettingsHandler.Get)
			protected.PATCH("/channels/:id/settings", cfg.SettingsHandler.Update)
		}

		// Messages
		if cfg.MessageHandler != nil {
			protected.GET("/channels/:id/messages", cfg.MessageHandler.List)
			protected.POST("/channels/:id/messages", cfg.MessageHandler.Create)
			protected.GET("/channels/:id/feed", cfg.MessageHandler.Feed)
			protected.GET("/channels/:id/pins", cfg.MessageHandler.Pins)
			protected.GET("/channels/:id/events", cfg.MessageHandler.Events)
			protected.PATCH("/channels/:id/messages/:messageId", cfg.MessageHandler.Edit)
			protected.DELETE("/channels/:id/messages/:messageId", cfg.MessageHandler.Delete)
			protected.PUT("/channels/:id/messages/:messageId/pin", cfg.MessageHandler.SetPinned)
		}

		// Presence
		if cfg.PresenceHandler != nil {
			protected.GET("/channels/:id/presence", cfg.PresenceHandler.Presence)
			protected.POST("/channels/:id/typing", cfg.PresenceHandler.Typing)
		}
	}

	return r
}
