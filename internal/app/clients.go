package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/bonfires-backend/internal/platform/gcp"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
	"github.com/yungbote/bonfires-backend/internal/realtime/bus"
	"github.com/yungbote/bonfires-backend/internal/services"
)

const presenceKeyPrefix = "bonfires:presence:"

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset; the process then runs single
	// instance with in-memory presence and no avatar cache.
	Redis goredis.UniversalClient
	Bus   bus.Bus
	Blobs gcp.BlobStore

	Presence    realtime.PresenceStore
	AvatarCache services.AvatarCache
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	out := Clients{
		Presence:    realtime.NewMemoryPresence(),
		AvatarCache: services.NopAvatarCache{},
	}

	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		b, err := bus.NewRedisBus(log, rdb, cfg.Redis.Channel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		out.Redis = rdb
		out.Bus = b
		out.Presence = realtime.NewRedisPresence(rdb, presenceKeyPrefix)
		out.AvatarCache = services.NewRedisAvatarCache(rdb, cfg.Avatar.CacheTTL)
		log.Info("Redis enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	storageCfg, err := cfg.ObjectStorageConfig()
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("object storage config: %w", err)
	}
	blobs, err := gcp.NewBlobStore(ctx, log, storageCfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init blob store: %w", err)
	}
	out.Blobs = blobs

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
