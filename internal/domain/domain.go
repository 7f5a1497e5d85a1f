package domain

import (
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/domain/user"
)

type EventType = channel.EventType

const (
	EventUserInvite    = channel.EventUserInvite
	EventUserLeave     = channel.EventUserLeave
	EventUserKick      = channel.EventUserKick
	EventMessagePin    = channel.EventMessagePin
	EventChannelAvatar = channel.EventChannelAvatar
	EventChannelTitle  = channel.EventChannelTitle
)

type (
	User = user.User

	Channel         = channel.Channel
	ChannelMember   = channel.Member
	ChannelSettings = channel.Settings
	Message         = channel.Message
	Event           = channel.Event
	Override        = channel.Override
)

var (
	NewChannelSettings = channel.NewSettings
	NewEvent           = channel.NewEvent
)
