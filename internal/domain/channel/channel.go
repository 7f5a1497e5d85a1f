package channel

import (
	"time"

	"github.com/google/uuid"
)

const (
	TitleMinLen       = 2
	TitleMaxLen       = 32
	TitleEditMaxLen   = 64
	MaxPinnedMessages = 20
)

// Channel is the persisted aggregate root. MemberIDs is hydrated from
// channel_member ordered by join_seq and is not a column.
type Channel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title        string    `gorm:"column:title;not null" json:"title"`
	OwnerID      uuid.UUID `gorm:"type:uuid;column:owner_id;not null;index" json:"owner_id"`
	HasAvatar    bool      `gorm:"column:has_avatar;not null;default:false" json:"has_avatar"`
	LastActivity time.Time `gorm:"column:last_activity;not null;index:idx_channel_activity,priority:1" json:"last_activity"`
	NextJoinSeq  int64     `gorm:"column:next_join_seq;not null;default:0" json:"-"`
	Version      int64     `gorm:"column:version;not null;default:1" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null" json:"updated_at"`

	MemberIDs []uuid.UUID `gorm:"-" json:"member_ids"`
}

func (Channel) TableName() string { return "channel" }

// IsMember reports whether userID is in the hydrated member list.
func (c *Channel) IsMember(userID uuid.UUID) bool {
	if c == nil {
		return false
	}
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Member is one row of a channel's member set. JoinSeq orders members by
// join time and is unique within a channel.
type Member struct {
	ChannelID uuid.UUID `gorm:"type:uuid;column:channel_id;primaryKey;uniqueIndex:idx_member_seq,priority:1" json:"channel_id"`
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;primaryKey;index" json:"user_id"`
	JoinSeq   int64     `gorm:"column:join_seq;not null;uniqueIndex:idx_member_seq,priority:2" json:"join_seq"`
	JoinedAt  time.Time `gorm:"column:joined_at;not null" json:"joined_at"`
}

func (Member) TableName() string { return "channel_member" }

// Now returns the canonical storage timestamp: UTC at microsecond precision.
func Now() time.Time {
	return Normalize(time.Now())
}

// Normalize truncates t to the precision every backing store round-trips.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
