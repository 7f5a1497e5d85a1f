package aggregates

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/domain/channel"
)

type NoticeKind string

const (
	NoticeMemberJoined          NoticeKind = "MemberJoined"
	NoticeMemberRemoved         NoticeKind = "MemberRemoved"
	NoticeChannelOwnerChanged   NoticeKind = "ChannelOwnerChanged"
	NoticeChannelTitleChanged   NoticeKind = "ChannelTitleChanged"
	NoticeChannelAvatarChanged  NoticeKind = "ChannelAvatarChanged"
	NoticeChannelDeleted        NoticeKind = "ChannelDeleted"
	NoticeMessageCreated        NoticeKind = "MessageCreated"
	NoticeMessageEdited         NoticeKind = "MessageEdited"
	NoticeMessageDeleted        NoticeKind = "MessageDeleted"
	NoticeMessagePinned         NoticeKind = "MessagePinned"
	NoticeMessageUnpinned       NoticeKind = "MessageUnpinned"
	NoticeMemberSettingsChanged NoticeKind = "MemberSettingsChanged"
)

// ChannelNotice describes one committed, externally visible change to a channel.
// Exactly one notice is produced per logical action.
type ChannelNotice struct {
	Kind      NoticeKind
	ChannelID uuid.UUID
	ActorID   uuid.UUID

	Channel  *channel.Channel
	Event    *channel.Event
	Message  *channel.Message
	Settings *channel.Settings

	// MessageID identifies deleted messages, which have no body left to carry.
	MessageID     *uuid.UUID
	RemovedUserID *uuid.UUID
	NewOwnerID    *uuid.UUID
	Destroyed     bool
}

// Publisher receives notices after their write has committed. Delivery is best effort.
type Publisher interface {
	PublishChannelNotice(ctx context.Context, n ChannelNotice)
}

// NopPublisher discards notices.
type NopPublisher struct{}

func (NopPublisher) PublishChannelNotice(context.Context, ChannelNotice) {}
