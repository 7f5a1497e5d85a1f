package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/domain/user"
)

var ChannelAggregateContract = Contract{
	Name:             "Channel.ChannelAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Serialization:    SerializePerChannel,
	Notes:            "Owns membership, ownership succession, title/avatar and cascading deletion for one channel.",
}

// ChannelAggregate owns channel membership and lifecycle invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeForbidden, CodeConflict, CodeRetryable, CodeInternal.
type ChannelAggregate interface {
	Aggregate

	// Create makes the creator the sole member and owner. No event is recorded.
	Create(ctx context.Context, in CreateChannelInput) (*channel.Channel, error)

	Invite(ctx context.Context, in InviteMemberInput) (InviteMemberResult, error)

	// Kick removes a member. A nil KickerID is a self-removal and records user_leave.
	// Removing the last member destroys the channel.
	Kick(ctx context.Context, in KickMemberInput) (KickMemberResult, error)

	Leave(ctx context.Context, in LeaveChannelInput) (KickMemberResult, error)

	UpdateTitle(ctx context.Context, in UpdateTitleInput) (UpdateTitleResult, error)

	// UpdateAvatar records a channel_avatar event even when the flag was already set.
	UpdateAvatar(ctx context.Context, in UpdateAvatarInput) (UpdateAvatarResult, error)

	Delete(ctx context.Context, in DeleteChannelInput) error

	// Promote hands ownership to another member.
	Promote(ctx context.Context, in PromoteOwnerInput) (*channel.Channel, error)

	// UpdateSettings patches a member's own overrides. A missing settings row
	// is recreated from the user's defaults first.
	UpdateSettings(ctx context.Context, in UpdateSettingsInput) (UpdateSettingsResult, error)
}

type CreateChannelInput struct {
	Title     string
	CreatorID uuid.UUID
}

type InviteMemberInput struct {
	ChannelID uuid.UUID
	InviteeID uuid.UUID
	ActorID   uuid.UUID
}

type InviteMemberResult struct {
	Channel *channel.Channel
	Event   *channel.Event
}

type KickMemberInput struct {
	ChannelID uuid.UUID
	TargetID  uuid.UUID
	KickerID  *uuid.UUID
}

type LeaveChannelInput struct {
	ChannelID uuid.UUID
	ActorID   uuid.UUID
}

type KickMemberResult struct {
	// Channel is nil when the removal destroyed the channel.
	Channel       *channel.Channel
	Event         *channel.Event
	RemovedUserID uuid.UUID
	Destroyed     bool
	// NewOwnerID is set when the removed member was the owner and the channel survived.
	NewOwnerID *uuid.UUID
}

type UpdateTitleInput struct {
	ChannelID uuid.UUID
	Title     string
	ActorID   uuid.UUID
}

type UpdateTitleResult struct {
	Channel *channel.Channel
	Event   *channel.Event
}

type UpdateAvatarInput struct {
	ChannelID uuid.UUID
	ActorID   uuid.UUID
}

type UpdateAvatarResult struct {
	Channel *channel.Channel
	Event   *channel.Event
}

type DeleteChannelInput struct {
	ChannelID uuid.UUID
	ActorID   uuid.UUID
}

type PromoteOwnerInput struct {
	ChannelID uuid.UUID
	TargetID  uuid.UUID
	ActorID   uuid.UUID
}

// UpdateSettingsInput carries already validated values. Nil fields are left
// unchanged.
type UpdateSettingsInput struct {
	ChannelID   uuid.UUID
	UserID      uuid.UUID
	DisplayName *channel.Override
	NameColor   *channel.Override
	Invisible   *bool
}

type UpdateSettingsResult struct {
	User     *user.User
	Settings *channel.Settings
	// VisibilityChanged is set when the invisible flag flipped.
	VisibilityChanged bool
}
