package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/repos/channel"
	"github.com/yungbote/bonfires-backend/internal/data/repos/user"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type ChannelRepo = channel.ChannelRepo
type MemberRepo = channel.MemberRepo
type SettingsRepo = channel.SettingsRepo
type MessageRepo = channel.MessageRepo
type EventRepo = channel.EventRepo
type EventRange = channel.EventRange

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewChannelRepo(db *gorm.DB, baseLog *logger.Logger) ChannelRepo {
	return channel.NewChannelRepo(db, baseLog)
}
func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return channel.NewMemberRepo(db, baseLog)
}
func NewSettingsRepo(db *gorm.DB, baseLog *logger.Logger) SettingsRepo {
	return channel.NewSettingsRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return channel.NewMessageRepo(db, baseLog)
}
func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return channel.NewEventRepo(db, baseLog)
}
