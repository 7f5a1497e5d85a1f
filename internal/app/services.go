package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type Services struct {
	// Fan-out
	Local     *services.LocalDelivery
	Emitter   services.SSEEmitter
	Publisher *services.NoticePublisher

	// Aggregates
	ChannelAgg domainagg.ChannelAggregate
	MessageAgg domainagg.MessageAggregate

	Auth     services.AuthService
	User     services.UserService
	Channel  services.ChannelService
	Settings services.SettingsService
	Message  services.MessageService
	Presence services.PresenceService
	Typing   services.TypingService
	Avatar   services.AvatarService
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	metrics *observability.Metrics,
	r Repos,
	clients Clients,
	hub *realtime.SSEHub,
) (Services, error) {
	log.Info("Wiring services...")

	// With a bus every frame goes out through Redis and comes back through
	// the forwarder; without one it lands in the local hub directly.
	local := &services.LocalDelivery{Hub: hub}
	var emitter services.SSEEmitter = &services.HubEmitter{Local: local}
	if clients.Bus != nil {
		emitter = &services.RedisEmitter{Bus: clients.Bus, Log: log}
	}
	publisher := services.NewNoticePublisher(log, emitter)

	maxRetries := cfg.AggregateMaxRetries
	if maxRetries == 0 {
		maxRetries = -1
	}
	base := aggregates.BaseDeps{
		DB:         db,
		Log:        log,
		Runner:     aggregates.NewGormTxRunner(db),
		Hooks:      aggregates.NewMetricsHooks(metrics),
		CASGuard:   aggregates.NewCASGuard(db),
		Locks:      aggregates.NewKeyedMutex(),
		Publisher:  publisher,
		MaxRetries: maxRetries,
	}
	channelAgg := aggregates.NewChannelAggregate(aggregates.ChannelAggregateDeps{
		Base:     base,
		Channels: r.Channel,
		Members:  r.Member,
		Settings: r.Settings,
		Messages: r.Message,
		Events:   r.Event,
		Users:    r.User,
	})
	messageAgg := aggregates.NewMessageAggregate(aggregates.MessageAggregateDeps{
		Base:     base,
		Channels: r.Channel,
		Messages: r.Message,
		Events:   r.Event,
	})

	presence := services.NewPresenceService(log, hub, clients.Presence, emitter, r.Channel, r.Member, r.User, r.Settings, metrics)
	local.OnDetach = presence.Detach

	avatar, err := services.NewAvatarService(
		log,
		clients.Blobs,
		clients.AvatarCache,
		channelAgg,
		r.Channel,
		r.Member,
		r.User,
		metrics,
		cfg.Avatar.MaxUploadBytes,
	)
	if err != nil {
		return Services{}, fmt.Errorf("init avatar service: %w", err)
	}

	return Services{
		Local:      local,
		Emitter:    emitter,
		Publisher:  publisher,
		ChannelAgg: channelAgg,
		MessageAgg: messageAgg,

		Auth:     services.NewAuthService(db, log, r.User, cfg.Auth.JWTSecretKey, cfg.Auth.AccessTokenTTL),
		User:     services.NewUserService(log, r.User),
		Channel:  services.NewChannelService(log, channelAgg, r.Channel, r.Member, r.User, r.Settings, cfg.ChannelPageSize, presence, avatar),
		Settings: services.NewSettingsService(log, channelAgg, r.Channel, r.Member, r.User, r.Settings, presence),
		Message:  services.NewMessageService(log, messageAgg, r.Channel, r.Member, r.Message, r.Event, cfg.MessagePageSize),
		Presence: presence,
		Typing:   services.NewTypingService(log, r.Channel, r.Member, emitter, metrics),
		Avatar:   avatar,
	}, nil
}
