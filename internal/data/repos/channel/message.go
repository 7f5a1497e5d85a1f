package channel

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

var MessageKeyset = pagination.Keyset{TimeColumn: "message.timestamp", IDColumn: "message.id"}

type MessageRepo interface {
	Create(dbc dbctx.Context, row *types.Message) error
	GetByID(dbc dbctx.Context, channelID, id uuid.UUID) (*types.Message, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
	DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
	CountPinned(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
	CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
	ListPage(dbc dbctx.Context, channelID uuid.UUID, req pagination.Request) (pagination.Page[*types.Message], error)
	ListPinned(dbc dbctx.Context, channelID uuid.UUID) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, row *types.Message) error {
	if row == nil || row.ID == uuid.Nil || row.ChannelID == uuid.Nil {
		return fmt.Errorf("missing message id or channel_id")
	}
	return dbc.DB(r.db).Create(row).Error
}

// GetByID scopes the lookup to channelID so a message id from another channel reads as missing.
func (r *messageRepo) GetByID(dbc dbctx.Context, channelID, id uuid.UUID) (*types.Message, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.Message
	if err := dbc.DB(r.db).
		Where("id = ? AND channel_id = ?", id, channelID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).
		Model(&types.Message{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *messageRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	if id == uuid.Nil {
		return 0, fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Message{})
	return res.RowsAffected, res.Error
}

func (r *messageRepo) DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("channel_id = ?", channelID).Delete(&types.Message{})
	return res.RowsAffected, res.Error
}

func (r *messageRepo) CountPinned(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).
		Model(&types.Message{}).
		Where("channel_id = ? AND pinned = ?", channelID, true).
		Count(&n).Error
	return n, err
}

func (r *messageRepo) CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Message{}).Where("channel_id = ?", channelID).Count(&n).Error
	return n, err
}

func (r *messageRepo) ListPage(dbc dbctx.Context, channelID uuid.UUID, req pagination.Request) (pagination.Page[*types.Message], error) {
	q := dbc.DB(r.db).Model(&types.Message{}).Where("message.channel_id = ?", channelID)
	return pagination.Fetch(q, MessageKeyset, req, messageCursor)
}

func (r *messageRepo) ListPinned(dbc dbctx.Context, channelID uuid.UUID) ([]*types.Message, error) {
	var out []*types.Message
	if err := dbc.DB(r.db).
		Where("channel_id = ? AND pinned = ?", channelID, true).
		Order("message.timestamp DESC").
		Order("message.id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func messageCursor(m *types.Message) pagination.Cursor {
	return pagination.Cursor{Time: m.Timestamp, ID: m.ID}
}
