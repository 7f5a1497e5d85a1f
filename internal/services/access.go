package services

import (
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

// channelAccess answers the read-side membership questions. Writes check
// membership again inside their own transaction.
type channelAccess struct {
	channels repos.ChannelRepo
	members  repos.MemberRepo
}

// requireMember fails with NotFound for an unknown channel and Forbidden for a
// non-member.
func (a channelAccess) requireMember(dbc dbctx.Context, op string, channelID, userID uuid.UUID) error {
	ok, err := a.members.IsMember(dbc, channelID, userID)
	if err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if ok {
		return nil
	}
	if _, err := a.channels.GetByID(dbc, channelID); err != nil {
		return lookupErr(op, "channel", err)
	}
	return forbiddenErr(op, "not a member of this channel")
}

// memberDirectory renders channel members with their per-channel overrides.
type memberDirectory struct {
	users    repos.UserRepo
	settings repos.SettingsRepo
}

// views returns one MemberView per id, in the order given. Ids without a user
// row are skipped.
func (d memberDirectory) views(dbc dbctx.Context, channelID, ownerID uuid.UUID, ids []uuid.UUID) ([]MemberView, error) {
	if len(ids) == 0 {
		return []MemberView{}, nil
	}
	users, err := d.users.GetByIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	rows, err := d.settings.ListByChannel(dbc, channelID)
	if err != nil {
		return nil, err
	}
	byUser := lo.KeyBy(users, func(u *types.User) uuid.UUID { return u.ID })
	settings := lo.KeyBy(rows, func(s *types.ChannelSettings) uuid.UUID { return s.UserID })

	ordered := lo.FilterMap(ids, func(id uuid.UUID, _ int) (*types.User, bool) {
		u, ok := byUser[id]
		return u, ok
	})
	return memberViews(ordered, ownerID, settings), nil
}
