package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/domain/channel"
)

var MessageAggregateContract = Contract{
	Name:             "Channel.MessageAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Serialization:    SerializePerChannel,
	Notes:            "Owns message writes, the per-channel pin limit and the lastActivity bump. Serialized with channel writes.",
}

// MessageAggregate owns message lifecycle invariants.
type MessageAggregate interface {
	Aggregate

	// Create persists the message and advances the channel's lastActivity in the same transaction.
	Create(ctx context.Context, in CreateMessageInput) (*channel.Message, error)

	// Edit is author-only.
	Edit(ctx context.Context, in EditMessageInput) (*channel.Message, error)

	// Delete is allowed for the author and the channel owner.
	Delete(ctx context.Context, in DeleteMessageInput) error

	// SetPinned fails with CodeConflict when the state would not change or the
	// channel already holds MaxPinnedMessages pins. Only pinning records an event.
	SetPinned(ctx context.Context, in SetPinnedInput) (SetPinnedResult, error)
}

type CreateMessageInput struct {
	ChannelID uuid.UUID
	AuthorID  uuid.UUID
	Content   string
}

type EditMessageInput struct {
	ChannelID uuid.UUID
	MessageID uuid.UUID
	ActorID   uuid.UUID
	Content   string
}

type DeleteMessageInput struct {
	ChannelID uuid.UUID
	MessageID uuid.UUID
	ActorID   uuid.UUID
}

type SetPinnedInput struct {
	ChannelID uuid.UUID
	MessageID uuid.UUID
	ActorID   uuid.UUID
	Pinned    bool
}

type SetPinnedResult struct {
	Message *channel.Message
	// Event is nil when unpinning.
	Event *channel.Event
}
