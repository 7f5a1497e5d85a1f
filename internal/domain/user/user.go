package user

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	UsernameMinLen   = 2
	UsernameMaxLen   = 32
	PasswordMinLen   = 8
	StatusMaxLen     = 64
	DefaultNameColor = "#ffffff"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidUsername enforces length and the lowercase alphanumeric-plus-dash alphabet.
func ValidUsername(s string) bool {
	return len(s) >= UsernameMinLen && len(s) <= UsernameMaxLen && usernamePattern.MatchString(s)
}

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username         string    `gorm:"column:username;uniqueIndex;not null" json:"username"`
	PasswordHash     string    `gorm:"column:password_hash;not null" json:"-"`
	Status           string    `gorm:"column:status;not null;default:''" json:"status"`
	DefaultNameColor string    `gorm:"column:default_name_color;not null;default:'#ffffff'" json:"default_name_color"`
	DefaultInvisible bool      `gorm:"column:default_invisible;not null;default:false" json:"default_invisible"`
	HasAvatar        bool      `gorm:"column:has_avatar;not null;default:false" json:"has_avatar"`
	JoinedAt         time.Time `gorm:"column:joined_at;not null" json:"joined_at"`
}

func (User) TableName() string { return "user" }

// Tagline is the global status shown when no per-channel display name is set.
func (u *User) Tagline() string {
	if u == nil {
		return ""
	}
	return u.Status
}
