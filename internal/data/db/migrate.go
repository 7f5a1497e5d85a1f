package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/bonfires-backend/internal/domain"
)

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&types.User{},

		&types.Channel{},
		&types.ChannelMember{},
		&types.ChannelSettings{},

		&types.Message{},
		&types.Event{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
