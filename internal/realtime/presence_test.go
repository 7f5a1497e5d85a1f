package realtime

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func presenceStores(t *testing.T) map[string]PresenceStore {
	t.Helper()
	stores := map[string]PresenceStore{"memory": NewMemoryPresence()}
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: addr})
		t.Cleanup(func() { _ = rdb.Close() })
		stores["redis"] = NewRedisPresence(rdb, "bonfires:test:presence:"+uuid.NewString()[:8]+":")
	}
	return stores
}

func TestPresenceCountsConnectionsPerUser(t *testing.T) {
	for name, store := range presenceStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ch, u := uuid.New(), uuid.New()

			first, err := store.Join(ctx, ch, u)
			require.NoError(t, err)
			require.True(t, first)

			second, err := store.Join(ctx, ch, u)
			require.NoError(t, err)
			require.False(t, second, "a second tab must not re-announce the user")

			viewers, err := store.Viewers(ctx, ch)
			require.NoError(t, err)
			require.Equal(t, []uuid.UUID{u}, viewers)

			left, err := store.Leave(ctx, ch, u)
			require.NoError(t, err)
			require.False(t, left)

			left, err = store.Leave(ctx, ch, u)
			require.NoError(t, err)
			require.True(t, left)

			viewers, err = store.Viewers(ctx, ch)
			require.NoError(t, err)
			require.Empty(t, viewers)
		})
	}
}

func TestPresenceClear(t *testing.T) {
	for name, store := range presenceStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ch := uuid.New()
			for i := 0; i < 3; i++ {
				_, err := store.Join(ctx, ch, uuid.New())
				require.NoError(t, err)
			}
			require.NoError(t, store.Clear(ctx, ch))
			viewers, err := store.Viewers(ctx, ch)
			require.NoError(t, err)
			require.Empty(t, viewers)
		})
	}
}

func TestMemoryPresenceLeaveWithoutJoin(t *testing.T) {
	store := NewMemoryPresence()
	left, err := store.Leave(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	require.False(t, left)
}
