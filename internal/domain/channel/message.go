package channel

import (
	"time"

	"github.com/google/uuid"
)

const MessageMaxLen = 1000

type Message struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;index:idx_message_page,priority:3" json:"id"`
	ChannelID  uuid.UUID  `gorm:"type:uuid;column:channel_id;not null;index:idx_message_page,priority:1" json:"channel_id"`
	AuthorID   uuid.UUID  `gorm:"type:uuid;column:author_id;not null;index" json:"author_id"`
	Content    string     `gorm:"column:content;not null" json:"content"`
	Timestamp  time.Time  `gorm:"column:timestamp;not null;index:idx_message_page,priority:2" json:"timestamp"`
	LastEdited *time.Time `gorm:"column:last_edited" json:"last_edited,omitempty"`
	Pinned     bool       `gorm:"column:pinned;not null;default:false" json:"pinned"`
}

func (Message) TableName() string { return "message" }
