package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appdb "github.com/yungbote/bonfires-backend/internal/data/db"
	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/http/middleware"
	"github.com/yungbote/bonfires-backend/internal/platform/envutil"
	"github.com/yungbote/bonfires-backend/internal/platform/gcp"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime/bus"
	"github.com/yungbote/bonfires-backend/internal/services"
)

const defaultJWTSecret = "defaultsecret"

type DatabaseConfig struct {
	Driver           string `yaml:"driver"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresName     string `yaml:"postgres_name"`
	SQLitePath       string `yaml:"sqlite_path"`
}

type RedisConfig struct {
	// Addr enables Redis backed fan-out, presence and avatar caching.
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type AuthConfig struct {
	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

type AvatarConfig struct {
	Bucket              string        `yaml:"bucket"`
	CDNDomain           string        `yaml:"cdn_domain"`
	StorageMode         string        `yaml:"storage_mode"`
	StorageEmulatorHost string        `yaml:"storage_emulator_host"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
}

type OtelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	LogMode  string `yaml:"log_mode"`
	HTTPAddr string `yaml:"http_addr"`

	DB     DatabaseConfig `yaml:"db"`
	Redis  RedisConfig    `yaml:"redis"`
	Auth   AuthConfig     `yaml:"auth"`
	Avatar AvatarConfig   `yaml:"avatar"`

	MessagePageSize     int `yaml:"message_page_size"`
	ChannelPageSize     int `yaml:"channel_page_size"`
	AggregateMaxRetries int `yaml:"aggregate_max_retries"`

	MetricsEnabled     bool       `yaml:"metrics_enabled"`
	Otel               OtelConfig `yaml:"otel"`
	CORSAllowedOrigins []string   `yaml:"cors_allowed_origins"`
}

func DefaultConfig() Config {
	return Config{
		LogMode:  "development",
		HTTPAddr: ":8080",
		DB: DatabaseConfig{
			Driver:       appdb.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "bonfires",
			SQLitePath:   "bonfires.db",
		},
		Redis: RedisConfig{Channel: bus.DefaultChannel},
		Auth: AuthConfig{
			JWTSecretKey:   defaultJWTSecret,
			AccessTokenTTL: time.Hour,
		},
		Avatar: AvatarConfig{
			CacheTTL:       services.DefaultAvatarCacheTTL,
			MaxUploadBytes: services.DefaultAvatarMaxUploadBytes,
		},
		MessagePageSize:     pagination.DefaultTake,
		ChannelPageSize:     pagination.DefaultTake,
		AggregateMaxRetries: 3,
		Otel: OtelConfig{
			ServiceName: "bonfires",
			SampleRatio: 1,
		},
		CORSAllowedOrigins: middleware.DefaultAllowedOrigins,
	}
}

// LoadConfig layers CONFIG_PATH (YAML) and then the environment over the
// defaults.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()
	if path := envutil.String("CONFIG_PATH", ""); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
		log.Info("Loaded config file", "path", path)
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.Auth.JWTSecretKey == defaultJWTSecret {
		log.Warn("JWT_SECRET_KEY not set; using the development default")
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr)

	cfg.DB.Driver = strings.ToLower(envutil.String("DB_DRIVER", cfg.DB.Driver))
	cfg.DB.PostgresHost = envutil.String("POSTGRES_HOST", cfg.DB.PostgresHost)
	cfg.DB.PostgresPort = envutil.String("POSTGRES_PORT", cfg.DB.PostgresPort)
	cfg.DB.PostgresUser = envutil.String("POSTGRES_USER", cfg.DB.PostgresUser)
	cfg.DB.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.DB.PostgresPassword)
	cfg.DB.PostgresName = envutil.String("POSTGRES_NAME", cfg.DB.PostgresName)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Auth.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.Auth.JWTSecretKey)
	cfg.Auth.AccessTokenTTL = envutil.Duration("ACCESS_TOKEN_TTL", cfg.Auth.AccessTokenTTL)

	cfg.Avatar.Bucket = envutil.String("AVATAR_GCS_BUCKET_NAME", cfg.Avatar.Bucket)
	cfg.Avatar.CDNDomain = envutil.String("AVATAR_CDN_DOMAIN", cfg.Avatar.CDNDomain)
	cfg.Avatar.StorageMode = envutil.String("OBJECT_STORAGE_MODE", cfg.Avatar.StorageMode)
	cfg.Avatar.StorageEmulatorHost = envutil.String("STORAGE_EMULATOR_HOST", cfg.Avatar.StorageEmulatorHost)
	cfg.Avatar.CacheTTL = envutil.Duration("AVATAR_CACHE_TTL", cfg.Avatar.CacheTTL)
	cfg.Avatar.MaxUploadBytes = envutil.Int64("AVATAR_MAX_UPLOAD_BYTES", cfg.Avatar.MaxUploadBytes)

	cfg.MessagePageSize = envutil.Int("MESSAGE_PAGE_SIZE", cfg.MessagePageSize)
	cfg.ChannelPageSize = envutil.Int("CHANNEL_PAGE_SIZE", cfg.ChannelPageSize)
	cfg.AggregateMaxRetries = envutil.Int("AGGREGATE_MAX_RETRIES", cfg.AggregateMaxRetries)

	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)

	cfg.CORSAllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case appdb.DriverPostgres, appdb.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.Auth.JWTSecretKey) == "" {
		return errors.New("JWT_SECRET_KEY must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive, got %s", c.Auth.AccessTokenTTL)
	}
	if c.Avatar.MaxUploadBytes <= 0 {
		return fmt.Errorf("AVATAR_MAX_UPLOAD_BYTES must be positive, got %d", c.Avatar.MaxUploadBytes)
	}
	if c.MessagePageSize <= 0 || c.MessagePageSize > pagination.MaxTake {
		return fmt.Errorf("MESSAGE_PAGE_SIZE must be in [1, %d], got %d", pagination.MaxTake, c.MessagePageSize)
	}
	if c.ChannelPageSize <= 0 || c.ChannelPageSize > pagination.MaxTake {
		return fmt.Errorf("CHANNEL_PAGE_SIZE must be in [1, %d], got %d", pagination.MaxTake, c.ChannelPageSize)
	}
	return nil
}

func (c Config) DatabaseConfig() appdb.Config {
	return appdb.Config{
		Driver:           c.DB.Driver,
		PostgresHost:     c.DB.PostgresHost,
		PostgresPort:     c.DB.PostgresPort,
		PostgresUser:     c.DB.PostgresUser,
		PostgresPassword: c.DB.PostgresPassword,
		PostgresName:     c.DB.PostgresName,
		SQLitePath:       c.DB.SQLitePath,
	}
}

// ObjectStorageConfig resolves the avatar bucket settings, inferring the
// emulator from STORAGE_EMULATOR_HOST when no mode is set.
func (c Config) ObjectStorageConfig() (gcp.ObjectStorageConfig, error) {
	return gcp.ResolveObjectStorageMode(gcp.ObjectStorageConfig{
		EmulatorHost: c.Avatar.StorageEmulatorHost,
		Bucket:       c.Avatar.Bucket,
		CDNDomain:    c.Avatar.CDNDomain,
		Credentials:  envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", ""),
	}, c.Avatar.StorageMode)
}
