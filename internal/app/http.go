package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/http"
	httpH "github.com/yungbote/bonfires-backend/internal/http/handlers"
	httpMW "github.com/yungbote/bonfires-backend/internal/http/middleware"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	User     *httpH.UserHandler
	Avatar   *httpH.AvatarHandler
	Channel  *httpH.ChannelHandler
	Settings *httpH.SettingsHandler
	Message  *httpH.MessageHandler
	Presence *httpH.PresenceHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(
	log *logger.Logger,
	cfg Config,
	db *gorm.DB,
	clients Clients,
	svc Services,
	hub *realtime.SSEHub,
	metrics *observability.Metrics,
) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db, clients.Redis),
		Auth:     httpH.NewAuthHandler(svc.Auth),
		User:     httpH.NewUserHandler(svc.User, svc.Channel),
		Avatar:   httpH.NewAvatarHandler(svc.Avatar, cfg.Avatar.MaxUploadBytes),
		Channel:  httpH.NewChannelHandler(svc.Channel),
		Settings: httpH.NewSettingsHandler(svc.Settings),
		Message:  httpH.NewMessageHandler(svc.Message),
		Presence: httpH.NewPresenceHandler(svc.Presence, svc.Typing),
		Realtime: httpH.NewRealtimeHandler(log, hub, svc.Presence, metrics),
	}
}

func wireMiddleware(log *logger.Logger, svc Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, svc.Auth),
	}
}

func wireServer(
	log *logger.Logger,
	cfg Config,
	metrics *observability.Metrics,
	handlers Handlers,
	middleware Middleware,
) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TracingEnabled: cfg.Otel.Enabled,
		ServiceName:    cfg.Otel.ServiceName,

		AuthMiddleware: middleware.Auth,

		AuthHandler:     handlers.Auth,
		UserHandler:     handlers.User,
		AvatarHandler:   handlers.Avatar,
		ChannelHandler:  handlers.Channel,
		SettingsHandler: handlers.Settings,
		MessageHandler:  handlers.Message,
		PresenceHandler: handlers.Presence,
		RealtimeHandler: handlers.Realtime,

		HealthHandler: handlers.Health,
	})
}
