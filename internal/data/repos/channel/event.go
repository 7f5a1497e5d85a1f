package channel

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

// EventRange bounds an audit query. Before is inclusive, After exclusive, and a
// nil bound is open. Take <= 0 means no limit.
type EventRange struct {
	Before *time.Time
	After  *time.Time
	Take   int
}

// EventRepo is append-only: there is no update path.
type EventRepo interface {
	Append(dbc dbctx.Context, row *types.Event) error
	RangeForChannel(dbc dbctx.Context, channelID uuid.UUID, rng EventRange) ([]*types.Event, error)
	DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
	CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo")}
}

func (r *eventRepo) Append(dbc dbctx.Context, row *types.Event) error {
	if row == nil || row.ID == uuid.Nil || row.ChannelID == uuid.Nil {
		return fmt.Errorf("missing event id or channel_id")
	}
	if !row.Type.Valid() {
		return fmt.Errorf("unknown event type %q", row.Type)
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *eventRepo) RangeForChannel(dbc dbctx.Context, channelID uuid.UUID, rng EventRange) ([]*types.Event, error) {
	q := dbc.DB(r.db).Where("event.channel_id = ?", channelID)
	if rng.Before != nil {
		q = q.Where("event.timestamp <= ?", *rng.Before)
	}
	if rng.After != nil {
		q = q.Where("event.timestamp > ?", *rng.After)
	}
	q = q.Order("event.timestamp DESC").Order("event.id DESC")
	if rng.Take > 0 {
		q = q.Limit(rng.Take)
	}
	var out []*types.Event
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *eventRepo) DeleteByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("channel_id = ?", channelID).Delete(&types.Event{})
	return res.RowsAffected, res.Error
}

func (r *eventRepo) CountByChannel(dbc dbctx.Context, channelID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Event{}).Where("channel_id = ?", channelID).Count(&n).Error
	return n, err
}
