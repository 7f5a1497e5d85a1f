package channel

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type MemberRepo interface {
	Add(dbc dbctx.Context, row *types.ChannelMember) error
	Remove(dbc dbctx.Context, channelID, userID uuid.UUID) (bool, error)
	IsMember(dbc dbctx.Context, channelID, userID uuid.UUID) (bool, error)
	ListByChannel(dbc dbctx.Context, channelID uuid.UUID) ([]*types.ChannelMember, error)
	UserIDsByChannels(dbc dbctx.Context, channelIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
	CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
	DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) Add(dbc dbctx.Context, row *types.ChannelMember) error {
	if row == nil || row.ChannelID == uuid.Nil || row.UserID == uuid.Nil {
		return fmt.Errorf("missing channel_id or user_id")
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *memberRepo) Remove(dbc dbctx.Context, channelID, userID uuid.UUID) (bool, error) {
	res := dbc.DB(r.db).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&types.ChannelMember{})
	return res.RowsAffected > 0, res.Error
}

func (r *memberRepo) IsMember(dbc dbctx.Context, channelID, userID uuid.UUID) (bool, error) {
	if channelID == uuid.Nil || userID == uuid.Nil {
		return false, nil
	}
	var n int64
	if err := dbc.DB(r.db).
		Model(&types.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByChannel returns members in join order.
func (r *memberRepo) ListByChannel(dbc dbctx.Context, channelID uuid.UUID) ([]*types.ChannelMember, error) {
	var out []*types.ChannelMember
	if err := dbc.DB(r.db).
		Where("channel_id = ?", channelID).
		Order("join_seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memberRepo) UserIDsByChannels(dbc dbctx.Context, channelIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(channelIDs))
	if len(channelIDs) == 0 {
		return out, nil
	}
	var rows []*types.ChannelMember
	if err := dbc.DB(r.db).
		Where("channel_id IN ?", channelIDs).
		Order("channel_id ASC").
		Order("join_seq ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, m := range rows {
		out[m.ChannelID] = append(out[m.ChannelID], m.UserID)
	}
	return out, nil
}

func (r *memberRepo) CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.ChannelMember{}).Where("channel_id = ?", channelID).Count(&n).Error
	return n, err
}

func (r *memberRepo) DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("channel_id = ?", channelID).Delete(&types.ChannelMember{})
	return res.RowsAffected, res.Error
}
