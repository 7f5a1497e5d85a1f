package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

// ChannelJanitor cleans up state kept outside the database when a channel is
// destroyed.
type ChannelJanitor interface {
	ChannelDestroyed(ctx context.Context, channelID uuid.UUID)
}

type ChannelService interface {
	Create(ctx context.Context, title string) (*types.Channel, error)
	List(ctx context.Context, req pagination.Request) (ChannelPage, error)
	Get(ctx context.Context, channelID uuid.UUID) (ChannelDetail, error)
	// Mutual lists the channels the caller shares with the user named by ref.
	Mutual(ctx context.Context, ref string) ([]ChannelSummary, error)

	UpdateTitle(ctx context.Context, channelID uuid.UUID, title string) (*types.Channel, error)
	Delete(ctx context.Context, channelID uuid.UUID) error
	// Invite adds the user named by ref (an id or a username).
	Invite(ctx context.Context, channelID uuid.UUID, ref string) (*types.Channel, error)
	Kick(ctx context.Context, channelID, targetID uuid.UUID) (domainagg.KickMemberResult, error)
	Leave(ctx context.Context, channelID uuid.UUID) (domainagg.KickMemberResult, error)
	Promote(ctx context.Context, channelID, targetID uuid.UUID) (*types.Channel, error)
}

type channelService struct {
	log          *logger.Logger
	agg          domainagg.ChannelAggregate
	access       channelAccess
	directory    memberDirectory
	channelRepo  repos.ChannelRepo
	userRepo     repos.UserRepo
	settingsRepo repos.SettingsRepo
	pageSize     int
	janitors     []ChannelJanitor
}

func NewChannelService(
	log *logger.Logger,
	agg domainagg.ChannelAggregate,
	channelRepo repos.ChannelRepo,
	memberRepo repos.MemberRepo,
	userRepo repos.UserRepo,
	settingsRepo repos.SettingsRepo,
	pageSize int,
	janitors ...ChannelJanitor,
) ChannelService {
	return &channelService{
		log:          log.With("service", "ChannelService"),
		agg:          agg,
		access:       channelAccess{channels: channelRepo, members: memberRepo},
		directory:    memberDirectory{users: userRepo, settings: settingsRepo},
		channelRepo:  channelRepo,
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		pageSize:     pageSize,
		janitors:     lo.Compact(janitors),
	}
}

func (cs *channelService) Create(ctx context.Context, title string) (*types.Channel, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return cs.agg.Create(ctx, domainagg.CreateChannelInput{Title: title, CreatorID: uid})
}

func (cs *channelService) List(ctx context.Context, req pagination.Request) (ChannelPage, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return ChannelPage{}, err
	}
	dbc := dbctx.New(ctx)
	req = req.Normalize(cs.pageSize, pagination.MaxTake)
	page, err := cs.channelRepo.ListForUser(dbc, uid, req)
	if err != nil {
		return ChannelPage{}, domainagg.Wrap(domainagg.CodeInternal, "channel.list", err)
	}
	items, err := cs.summaries(dbc, uid, page.Items)
	if err != nil {
		return ChannelPage{}, err
	}
	return ChannelPage{Items: items, NextCursor: cursorString(page.Next)}, nil
}

func (cs *channelService) Mutual(ctx context.Context, ref string) ([]ChannelSummary, error) {
	const op = "channel.mutual"
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	other, err := lookupUser(dbc, cs.userRepo, ref)
	if err != nil {
		return nil, lookupErr(op, "user", err)
	}
	rows, err := cs.channelRepo.ListShared(dbc, uid, other.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return cs.summaries(dbc, uid, rows)
}

// summaries attaches the member count and the caller's own display name.
func (cs *channelService) summaries(dbc dbctx.Context, uid uuid.UUID, rows []*types.Channel) ([]ChannelSummary, error) {
	if len(rows) == 0 {
		return []ChannelSummary{}, nil
	}
	me, err := cs.userRepo.GetByID(dbc, uid)
	if err != nil {
		return nil, lookupErr("channel.list", "user", err)
	}
	ids := lo.Map(rows, func(c *types.Channel, _ int) uuid.UUID { return c.ID })
	mine, err := cs.settingsRepo.ListForUser(dbc, uid, ids)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "channel.list", err)
	}
	byChannel := lo.KeyBy(mine, func(s *types.ChannelSettings) uuid.UUID { return s.ChannelID })

	return lo.Map(rows, func(c *types.Channel, _ int) ChannelSummary {
		return ChannelSummary{
			ID:             c.ID,
			Title:          c.Title,
			OwnerID:        c.OwnerID,
			HasAvatar:      c.HasAvatar,
			LastActivity:   c.LastActivity,
			MemberCount:    len(c.MemberIDs),
			OwnDisplayName: EffectiveDisplayName(me, byChannel[c.ID]),
		}
	}), nil
}

func (cs *channelService) Get(ctx context.Context, channelID uuid.UUID) (ChannelDetail, error) {
	const op = "channel.get"
	uid, err := callerID(ctx)
	if err != nil {
		return ChannelDetail{}, err
	}
	dbc := dbctx.New(ctx)
	ch, err := cs.channelRepo.GetByID(dbc, channelID)
	if err != nil {
		return ChannelDetail{}, lookupErr(op, "channel", err)
	}
	if !ch.IsMember(uid) {
		return ChannelDetail{}, forbiddenErr(op, "not a member of this channel")
	}
	members, err := cs.directory.views(dbc, ch.ID, ch.OwnerID, ch.MemberIDs)
	if err != nil {
		return ChannelDetail{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	detail := ChannelDetail{
		ID:           ch.ID,
		Title:        ch.Title,
		HasAvatar:    ch.HasAvatar,
		LastActivity: ch.LastActivity,
		CreatedAt:    ch.CreatedAt,
		Members:      members,
	}
	if owner, ok := lo.Find(members, func(m MemberView) bool { return m.IsOwner }); ok {
		detail.Owner = owner
	}
	return detail, nil
}

func (cs *channelService) UpdateTitle(ctx context.Context, channelID uuid.UUID, title string) (*types.Channel, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cs.agg.UpdateTitle(ctx, domainagg.UpdateTitleInput{ChannelID: channelID, Title: title, ActorID: uid})
	if err != nil {
		return nil, err
	}
	return res.Channel, nil
}

func (cs *channelService) Delete(ctx context.Context, channelID uuid.UUID) error {
	uid, err := callerID(ctx)
	if err != nil {
		return err
	}
	if err := cs.agg.Delete(ctx, domainagg.DeleteChannelInput{ChannelID: channelID, ActorID: uid}); err != nil {
		return err
	}
	cs.destroyed(ctx, channelID)
	return nil
}

func (cs *channelService) Invite(ctx context.Context, channelID uuid.UUID, ref string) (*types.Channel, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	invitee, err := lookupUser(dbctx.New(ctx), cs.userRepo, ref)
	if err != nil {
		return nil, lookupErr("channel.invite", "user", err)
	}
	res, err := cs.agg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: channelID, InviteeID: invitee.ID, ActorID: uid})
	if err != nil {
		return nil, err
	}
	return res.Channel, nil
}

func (cs *channelService) Kick(ctx context.Context, channelID, targetID uuid.UUID) (domainagg.KickMemberResult, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return domainagg.KickMemberResult{}, err
	}
	res, err := cs.agg.Kick(ctx, domainagg.KickMemberInput{ChannelID: channelID, TargetID: targetID, KickerID: &uid})
	if err != nil {
		return res, err
	}
	if res.Destroyed {
		cs.destroyed(ctx, channelID)
	}
	return res, nil
}

func (cs *channelService) Leave(ctx context.Context, channelID uuid.UUID) (domainagg.KickMemberResult, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return domainagg.KickMemberResult{}, err
	}
	res, err := cs.agg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: channelID, ActorID: uid})
	if err != nil {
		return res, err
	}
	if res.Destroyed {
		cs.destroyed(ctx, channelID)
	}
	return res, nil
}

func (cs *channelService) Promote(ctx context.Context, channelID, targetID uuid.UUID) (*types.Channel, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return cs.agg.Promote(ctx, domainagg.PromoteOwnerInput{ChannelID: channelID, TargetID: targetID, ActorID: uid})
}

func (cs *channelService) destroyed(ctx context.Context, channelID uuid.UUID) {
	cs.log.Info("Channel destroyed", "channel_id", channelID)
	for _, j := range cs.janitors {
		j.ChannelDestroyed(ctx, channelID)
	}
}
