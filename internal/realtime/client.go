package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

const defaultOutboundBuffer = 64

// SSEClient is one open stream. ID is the connection id announced in the
// Connected frame and used by subscribe/unsubscribe calls.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	// closed is guarded by the hub lock. A closed client takes no new topics.
	closed bool
}

// topics returns the client's current subscriptions. Callers must hold the hub lock.
func (c *SSEClient) topics() []string {
	out := make([]string, 0, len(c.Channels))
	for t := range c.Channels {
		out = append(out, t)
	}
	return out
}
