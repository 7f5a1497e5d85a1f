package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appdb "github.com/yungbote/bonfires-backend/internal/data/db"
	"github.com/yungbote/bonfires-backend/internal/platform/gcp"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "LOG_MODE", "HTTP_ADDR", "DB_DRIVER", "SQLITE_PATH",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_NAME",
		"REDIS_ADDR", "REDIS_CHANNEL", "JWT_SECRET_KEY", "ACCESS_TOKEN_TTL",
		"AVATAR_GCS_BUCKET_NAME", "AVATAR_CDN_DOMAIN", "OBJECT_STORAGE_MODE", "STORAGE_EMULATOR_HOST",
		"AVATAR_CACHE_TTL", "AVATAR_MAX_UPLOAD_BYTES", "MESSAGE_PAGE_SIZE", "CHANNEL_PAGE_SIZE",
		"AGGREGATE_MAX_RETRIES", "METRICS_ENABLED", "OTEL_ENABLED", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, appdb.DriverPostgres, cfg.DB.Driver)
	require.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	require.Equal(t, int64(5<<20), cfg.Avatar.MaxUploadBytes)
	require.Equal(t, "bonfires:sse", cfg.Redis.Channel)
	require.False(t, cfg.MetricsEnabled)
	require.NotEmpty(t, cfg.CORSAllowedOrigins)
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "bonfires.yaml")
	yml := `
http_addr: ":9090"
db:
  driver: sqlite
  sqlite_path: /tmp/b.db
auth:
  jwt_secret_key: from-yaml
  access_token_ttl: 30m
avatar:
  storage_mode: memory
message_page_size: 40
cors_allowed_origins:
  - https://bonfires.example
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET_KEY", "from-env")
	t.Setenv("CHANNEL_PAGE_SIZE", "15")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, appdb.DriverSQLite, cfg.DB.Driver)
	require.Equal(t, "/tmp/b.db", cfg.DB.SQLitePath)
	require.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
	require.Equal(t, 40, cfg.MessagePageSize)
	require.Equal(t, 15, cfg.ChannelPageSize)
	require.Equal(t, []string{"https://bonfires.example"}, cfg.CORSAllowedOrigins)
	if cfg.Auth.JWTSecretKey != "from-env" {
		t.Fatalf("jwt secret: want=%q got=%q", "from-env", cfg.Auth.JWTSecretKey)
	}

	storage, err := cfg.ObjectStorageConfig()
	require.NoError(t, err)
	require.Equal(t, gcp.ObjectStorageModeMemory, storage.Mode)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"driver":    {"DB_DRIVER", "mysql"},
		"ttl":       {"ACCESS_TOKEN_TTL", "-5s"},
		"page size": {"MESSAGE_PAGE_SIZE", "100000"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := LoadConfig(logger.Nop()); err == nil {
				t.Fatalf("%s=%s: want error got nil", kv[0], kv[1])
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig(logger.Nop())
	require.Error(t, err)
}

func TestObjectStorageConfigInfersEmulator(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AVATAR_GCS_BUCKET_NAME", "avatars")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://localhost:4443")
	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	storage, err := cfg.ObjectStorageConfig()
	require.NoError(t, err)
	require.Equal(t, gcp.ObjectStorageModeGCSEmulator, storage.Mode)
	require.True(t, storage.CompatibilityFallback)
}
