package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/repos"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type Repos struct {
	User     repos.UserRepo
	Channel  repos.ChannelRepo
	Member   repos.MemberRepo
	Settings repos.SettingsRepo
	Message  repos.MessageRepo
	Event    repos.EventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:     repos.NewUserRepo(db, log),
		Channel:  repos.NewChannelRepo(db, log),
		Member:   repos.NewMemberRepo(db, log),
		Settings: repos.NewSettingsRepo(db, log),
		Message:  repos.NewMessageRepo(db, log),
		Event:    repos.NewEventRepo(db, log),
	}
}
