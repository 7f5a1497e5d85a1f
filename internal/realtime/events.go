package realtime

import (
	"strings"

	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventConnected             SSEEvent = "Connected"
	SSEEventMemberJoined          SSEEvent = "MemberJoined"
	SSEEventMemberRemoved         SSEEvent = "MemberRemoved"
	SSEEventChannelOwnerChanged   SSEEvent = "ChannelOwnerChanged"
	SSEEventChannelTitleChanged   SSEEvent = "ChannelTitleChanged"
	SSEEventChannelAvatarChanged  SSEEvent = "ChannelAvatarChanged"
	SSEEventChannelDeleted        SSEEvent = "ChannelDeleted"
	SSEEventMessageCreated        SSEEvent = "MessageCreated"
	SSEEventMessageEdited         SSEEvent = "MessageEdited"
	SSEEventMessageDeleted        SSEEvent = "MessageDeleted"
	SSEEventMessagePinned         SSEEvent = "MessagePinned"
	SSEEventMessageUnpinned       SSEEvent = "MessageUnpinned"
	SSEEventMemberSettingsChanged SSEEvent = "MemberSettingsChanged"
	SSEEventPresenceChanged       SSEEvent = "PresenceChanged"
	SSEEventTypingStarted         SSEEvent = "TypingStarted"
	SSEEventTypingStopped         SSEEvent = "TypingStopped"
)

// SSEMessage is one frame delivered to every subscriber of Channel.
// Channel is a topic name, not a chat channel id; see ChannelTopic and UserTopic.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

const (
	channelTopicPrefix = "channel:"
	userTopicPrefix    = "user:"
)

func ChannelTopic(id uuid.UUID) string { return channelTopicPrefix + id.String() }

func UserTopic(id uuid.UUID) string { return userTopicPrefix + id.String() }

// ParseChannelTopic accepts "channel:<uuid>" or a bare uuid.
func ParseChannelTopic(topic string) (uuid.UUID, bool) {
	topic = strings.TrimSpace(topic)
	topic = strings.TrimPrefix(topic, channelTopicPrefix)
	id, err := uuid.Parse(topic)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func IsChannelTopic(topic string) bool {
	return strings.HasPrefix(topic, channelTopicPrefix)
}
