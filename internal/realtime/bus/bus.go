package bus

import (
	"context"

	"github.com/yungbote/bonfires-backend/internal/realtime"
)

// Bus carries SSE messages between instances. Every instance runs a forwarder
// that re-broadcasts what it receives into its local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
