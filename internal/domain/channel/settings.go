package channel

import (
	"regexp"

	"github.com/google/uuid"
)

const (
	DefaultNameColor  = "#ffffff"
	DisplayNameMaxLen = 64
)

var nameColorPattern = regexp.MustCompile(`(?i)^#?([0-9a-f]{6}|[0-9a-f]{3})$`)

// ValidNameColor reports whether s is a 3 or 6 digit hex color, with or without '#'.
func ValidNameColor(s string) bool {
	return nameColorPattern.MatchString(s)
}

// Settings holds one member's display overrides for one channel.
type Settings struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_settings_user_channel,priority:1" json:"user_id"`
	ChannelID   uuid.UUID `gorm:"type:uuid;column:channel_id;not null;uniqueIndex:idx_settings_user_channel,priority:2;index" json:"channel_id"`
	DisplayName Override  `gorm:"column:display_name;type:text" json:"display_name"`
	NameColor   Override  `gorm:"column:name_color;type:text" json:"name_color"`
	Invisible   bool      `gorm:"column:invisible;not null;default:false" json:"invisible"`
}

func (Settings) TableName() string { return "channel_settings" }

// NewSettings returns an all-unset row for a fresh membership.
func NewSettings(userID, channelID uuid.UUID, invisible bool) *Settings {
	return &Settings{
		ID:        uuid.New(),
		UserID:    userID,
		ChannelID: channelID,
		Invisible: invisible,
	}
}
