package channel

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserInvite    EventType = "user_invite"
	EventUserLeave     EventType = "user_leave"
	EventUserKick      EventType = "user_kick"
	EventMessagePin    EventType = "message_pin"
	EventChannelAvatar EventType = "channel_avatar"
	EventChannelTitle  EventType = "channel_title"
)

func (t EventType) Valid() bool {
	switch t {
	case EventUserInvite, EventUserLeave, EventUserKick, EventMessagePin, EventChannelAvatar, EventChannelTitle:
		return true
	}
	return false
}

// Event is an immutable audit record. Rows are inserted once and never updated.
type Event struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;index:idx_event_range,priority:3" json:"id"`
	ChannelID       uuid.UUID  `gorm:"type:uuid;column:channel_id;not null;index:idx_event_range,priority:1" json:"channel_id"`
	ActorID         uuid.UUID  `gorm:"type:uuid;column:actor_id;not null" json:"actor_id"`
	Type            EventType  `gorm:"column:type;not null" json:"type"`
	Timestamp       time.Time  `gorm:"column:timestamp;not null;index:idx_event_range,priority:2" json:"timestamp"`
	TargetUserID    *uuid.UUID `gorm:"type:uuid;column:target_user_id" json:"target_user_id,omitempty"`
	TargetMessageID *uuid.UUID `gorm:"type:uuid;column:target_message_id" json:"target_message_id,omitempty"`
	NewChannelTitle *string    `gorm:"column:new_channel_title" json:"new_channel_title,omitempty"`
}

func (Event) TableName() string { return "event" }

// NewEvent stamps a fresh event id and timestamp.
func NewEvent(channelID, actorID uuid.UUID, typ EventType, at time.Time) *Event {
	return &Event{
		ID:        uuid.New(),
		ChannelID: channelID,
		ActorID:   actorID,
		Type:      typ,
		Timestamp: Normalize(at),
	}
}
