package channel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

// ChannelKeyset orders channel listings by activity.
var ChannelKeyset = pagination.Keyset{TimeColumn: "channel.last_activity", IDColumn: "channel.id"}

type ChannelRepo interface {
	Create(dbc dbctx.Context, row *types.Channel) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Channel, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Channel, error)
	BumpLastActivity(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
	ListForUser(dbc dbctx.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[*types.Channel], error)
	ListShared(dbc dbctx.Context, userA, userB uuid.UUID) ([]*types.Channel, error)
}

type channelRepo struct {
	db      *gorm.DB
	log     *logger.Logger
	members MemberRepo
}

func NewChannelRepo(db *gorm.DB, baseLog *logger.Logger) ChannelRepo {
	return &channelRepo{
		db:      db,
		log:     baseLog.With("repo", "ChannelRepo"),
		members: NewMemberRepo(db, baseLog),
	}
}

func (r *channelRepo) Create(dbc dbctx.Context, row *types.Channel) error {
	if row == nil || row.ID == uuid.Nil {
		return fmt.Errorf("missing channel id")
	}
	return dbc.DB(r.db).Create(row).Error
}

// GetByID returns gorm.ErrRecordNotFound when the channel does not exist.
func (r *channelRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Channel, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.Channel
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, err
	}
	if err := r.hydrate(dbc, []*types.Channel{&out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *channelRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Channel, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.Channel
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	if err := r.hydrate(dbc, []*types.Channel{&out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// BumpLastActivity only moves last_activity forward.
func (r *channelRepo) BumpLastActivity(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).
		Model(&types.Channel{}).
		Where("id = ? AND last_activity < ?", id, at).
		Update("last_activity", at).Error
}

func (r *channelRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	if id == uuid.Nil {
		return 0, fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Channel{})
	return res.RowsAffected, res.Error
}

func (r *channelRepo) ListForUser(dbc dbctx.Context, userID uuid.UUID, req pagination.Request) (pagination.Page[*types.Channel], error) {
	if userID == uuid.Nil {
		return pagination.Page[*types.Channel]{}, fmt.Errorf("missing user_id")
	}
	q := dbc.DB(r.db).
		Model(&types.Channel{}).
		Select("channel.*").
		Joins("JOIN channel_member ON channel_member.channel_id = channel.id").
		Where("channel_member.user_id = ?", userID)
	page, err := pagination.Fetch(q, ChannelKeyset, req, channelCursor)
	if err != nil {
		return page, err
	}
	if err := r.hydrate(dbc, page.Items); err != nil {
		return pagination.Page[*types.Channel]{}, err
	}
	return page, nil
}

func (r *channelRepo) ListShared(dbc dbctx.Context, userA, userB uuid.UUID) ([]*types.Channel, error) {
	if userA == uuid.Nil || userB == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out []*types.Channel
	if err := dbc.DB(r.db).
		Model(&types.Channel{}).
		Select("channel.*").
		Joins("JOIN channel_member a ON a.channel_id = channel.id AND a.user_id = ?", userA).
		Joins("JOIN channel_member b ON b.channel_id = channel.id AND b.user_id = ?", userB).
		Order("channel.last_activity DESC").
		Order("channel.id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	if err := r.hydrate(dbc, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *channelRepo) hydrate(dbc dbctx.Context, rows []*types.Channel) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, c := range rows {
		ids = append(ids, c.ID)
	}
	byChannel, err := r.members.UserIDsByChannels(dbc, ids)
	if err != nil {
		return err
	}
	for _, c := range rows {
		c.MemberIDs = byChannel[c.ID]
		if c.MemberIDs == nil {
			c.MemberIDs = []uuid.UUID{}
		}
	}
	return nil
}

func channelCursor(c *types.Channel) pagination.Cursor {
	return pagination.Cursor{Time: c.LastActivity, ID: c.ID}
}
