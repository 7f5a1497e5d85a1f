package channel

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type SettingsRepo interface {
	Create(dbc dbctx.Context, row *types.ChannelSettings) error
	Get(dbc dbctx.Context, userID, channelID uuid.UUID) (*types.ChannelSettings, error)
	GetOrCreate(dbc dbctx.Context, userID, channelID uuid.UUID, invisible bool) (*types.ChannelSettings, error)
	ListByChannel(dbc dbctx.Context, channelID uuid.UUID) ([]*types.ChannelSettings, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, channelIDs []uuid.UUID) ([]*types.ChannelSettings, error)
	Update(dbc dbctx.Context, userID, channelID uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, userID, channelID uuid.UUID) (int64, error)
	DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
	CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
}

type settingsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingsRepo(db *gorm.DB, baseLog *logger.Logger) SettingsRepo {
	return &settingsRepo{db: db, log: baseLog.With("repo", "SettingsRepo")}
}

func (r *settingsRepo) Create(dbc dbctx.Context, row *types.ChannelSettings) error {
	if row == nil || row.UserID == uuid.Nil || row.ChannelID == uuid.Nil {
		return fmt.Errorf("missing user_id or channel_id")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(row).Error
}

// Get returns gorm.ErrRecordNotFound when no row exists for the pair.
func (r *settingsRepo) Get(dbc dbctx.Context, userID, channelID uuid.UUID) (*types.ChannelSettings, error) {
	var out types.ChannelSettings
	if err := dbc.DB(r.db).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrCreate inserts a default row unless one exists, then reads the pair back.
// Concurrent callers converge on the same row.
func (r *settingsRepo) GetOrCreate(dbc dbctx.Context, userID, channelID uuid.UUID, invisible bool) (*types.ChannelSettings, error) {
	if userID == uuid.Nil || channelID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id or channel_id")
	}
	row := types.NewChannelSettings(userID, channelID, invisible)
	if err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
			DoNothing: true,
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return r.Get(dbc, userID, channelID)
}

func (r *settingsRepo) ListByChannel(dbc dbctx.Context, channelID uuid.UUID) ([]*types.ChannelSettings, error) {
	var out []*types.ChannelSettings
	if err := dbc.DB(r.db).Where("channel_id = ?", channelID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListForUser returns userID's rows among channelIDs. Channels without a row
// are absent from the result.
func (r *settingsRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, channelIDs []uuid.UUID) ([]*types.ChannelSettings, error) {
	out := []*types.ChannelSettings{}
	if userID == uuid.Nil || len(channelIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ? AND channel_id IN ?", userID, channelIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *settingsRepo) Update(dbc dbctx.Context, userID, channelID uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.ChannelSettings{}).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Updates(updates).Error
}

func (r *settingsRepo) Delete(dbc dbctx.Context, userID, channelID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Delete(&types.ChannelSettings{})
	return res.RowsAffected, res.Error
}

func (r *settingsRepo) DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("channel_id = ?", channelID).Delete(&types.ChannelSettings{})
	return res.RowsAffected, res.Error
}

func (r *settingsRepo) CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.ChannelSettings{}).Where("channel_id = ?", channelID).Count(&n).Error
	return n, err
}
