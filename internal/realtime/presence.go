package realtime

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// PresenceStore counts open viewing connections per (channel, user).
// Join reports whether the user just became visible; Leave whether they just left.
type PresenceStore interface {
	Join(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
	Leave(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
	Viewers(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error)
	Clear(ctx context.Context, channelID uuid.UUID) error
}

type memoryPresence struct {
	mu     sync.Mutex
	counts map[uuid.UUID]map[uuid.UUID]int
}

func NewMemoryPresence() PresenceStore {
	return &memoryPresence{counts: make(map[uuid.UUID]map[uuid.UUID]int)}
}

func (p *memoryPresence) Join(_ context.Context, channelID, userID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.counts[channelID]
	if !ok {
		users = make(map[uuid.UUID]int)
		p.counts[channelID] = users
	}
	users[userID]++
	return users[userID] == 1, nil
}

func (p *memoryPresence) Leave(_ context.Context, channelID, userID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	users, ok := p.counts[channelID]
	if !ok || users[userID] == 0 {
		return false, nil
	}
	users[userID]--
	if users[userID] > 0 {
		return false, nil
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.counts, channelID)
	}
	return true, nil
}

func (p *memoryPresence) Viewers(_ context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uuid.UUID, 0, len(p.counts[channelID]))
	for id := range p.counts[channelID] {
		out = append(out, id)
	}
	sortIDs(out)
	return out, nil
}

func (p *memoryPresence) Clear(_ context.Context, channelID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.counts, channelID)
	return nil
}

// redisPresence keeps one hash per channel, field = user id, value = open connections.
// Counts are shared by every instance behind the same Redis.
type redisPresence struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisPresence(rdb goredis.UniversalClient, prefix string) PresenceStore {
	if prefix == "" {
		prefix = "bonfires:presence:"
	}
	return &redisPresence{rdb: rdb, prefix: prefix}
}

func (p *redisPresence) key(channelID uuid.UUID) string { return p.prefix + channelID.String() }

func (p *redisPresence) Join(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	n, err := p.rdb.HIncrBy(ctx, p.key(channelID), userID.String(), 1).Result()
	if err != nil {
		return false, fmt.Errorf("presence join: %w", err)
	}
	return n == 1, nil
}

// leaveScript decrements a viewer and drops the field at zero in one round trip.
var leaveScript = goredis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call('HDEL', KEYS[1], ARGV[1])
end
return n
`)

func (p *redisPresence) Leave(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	n, err := leaveScript.Run(ctx, p.rdb, []string{p.key(channelID)}, userID.String()).Int64()
	if err != nil {
		return false, fmt.Errorf("presence leave: %w", err)
	}
	return n == 0, nil
}

func (p *redisPresence) Viewers(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := p.rdb.HGetAll(ctx, p.key(channelID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence viewers: %w", err)
	}
	out := make([]uuid.UUID, 0, len(raw))
	for field, val := range raw {
		if n, err := strconv.Atoi(val); err != nil || n <= 0 {
			continue
		}
		id, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	sortIDs(out)
	return out, nil
}

func (p *redisPresence) Clear(ctx context.Context, channelID uuid.UUID) error {
	return p.rdb.Del(ctx, p.key(channelID)).Err()
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
