package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	channelrepos "github.com/yungbote/bonfires-backend/internal/data/repos/channel"
	userrepos "github.com/yungbote/bonfires-backend/internal/data/repos/user"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

const channelTable = "channel"

type ChannelAggregateDeps struct {
	Base     BaseDeps
	Channels channelrepos.ChannelRepo
	Members  channelrepos.MemberRepo
	Settings channelrepos.SettingsRepo
	Messages channelrepos.MessageRepo
	Events   channelrepos.EventRepo
	Users    userrepos.UserRepo
}

type channelAggregate struct {
	deps ChannelAggregateDeps
}

func NewChannelAggregate(deps ChannelAggregateDeps) domainagg.ChannelAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "ChannelAggregate")
	return &channelAggregate{deps: deps}
}

func (a *channelAggregate) Contract() domainagg.Contract {
	return domainagg.ChannelAggregateContract
}

func (a *channelAggregate) Create(ctx context.Context, in domainagg.CreateChannelInput) (*types.Channel, error) {
	const op = "channel.create"

	title, err := validateTitle(in.Title, channel.TitleMaxLen)
	if err != nil {
		return nil, MapError(op, err)
	}
	if in.CreatorID == uuid.Nil {
		return nil, MapError(op, ValidationError("creator id is required"))
	}

	var out *types.Channel
	id := uuid.New()
	err = executeChannelWrite(ctx, a.deps.Base, op, id, func(dbc dbctx.Context) error {
		creator, err := a.loadUser(dbc, in.CreatorID)
		if err != nil {
			return err
		}
		now := a.deps.Base.now()
		ch := &types.Channel{
			ID:           id,
			Title:        title,
			OwnerID:      creator.ID,
			LastActivity: now,
			NextJoinSeq:  1,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := a.deps.Channels.Create(dbc, ch); err != nil {
			return err
		}
		if err := a.addMember(dbc, ch.ID, creator, 0, now); err != nil {
			return err
		}
		ch.MemberIDs = []uuid.UUID{creator.ID}
		out = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Log.Info("Channel created", "channel_id", out.ID, "owner_user_id", out.OwnerID)
	return out, nil
}

func (a *channelAggregate) Invite(ctx context.Context, in domainagg.InviteMemberInput) (domainagg.InviteMemberResult, error) {
	const op = "channel.invite"

	if in.ChannelID == uuid.Nil || in.InviteeID == uuid.Nil || in.ActorID == uuid.Nil {
		return domainagg.InviteMemberResult{}, MapError(op, ValidationError("channel, invitee and actor are required"))
	}

	var res domainagg.InviteMemberResult
	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}
		if err := requireMember(ch, in.ActorID); err != nil {
			return err
		}
		invitee, err := a.loadUser(dbc, in.InviteeID)
		if err != nil {
			return err
		}
		if ch.IsMember(invitee.ID) {
			return ConflictError("user is already a member of this channel")
		}

		now := a.deps.Base.now()
		seq := ch.NextJoinSeq
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, channelTable, ch.ID, ch.Version, map[string]any{
			"next_join_seq": seq + 1,
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "channel changed concurrently"); err != nil {
			return err
		}
		if err := a.addMember(dbc, ch.ID, invitee, seq, now); err != nil {
			return err
		}

		ev := types.NewEvent(ch.ID, in.ActorID, types.EventUserInvite, now)
		ev.TargetUserID = ptrUUID(invitee.ID)
		if err := a.deps.Events.Append(dbc, ev); err != nil {
			return err
		}

		ch.NextJoinSeq = seq + 1
		ch.Version++
		ch.UpdatedAt = now
		ch.MemberIDs = append(ch.MemberIDs, invitee.ID)
		res = domainagg.InviteMemberResult{Channel: ch, Event: ev}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeMemberJoined,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			Channel:   ch,
			Event:     ev,
		}
		return nil
	})
	if err != nil {
		return domainagg.InviteMemberResult{}, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return res, nil
}

func (a *channelAggregate) Leave(ctx context.Context, in domainagg.LeaveChannelInput) (domainagg.KickMemberResult, error) {
	return a.Kick(ctx, domainagg.KickMemberInput{ChannelID: in.ChannelID, TargetID: in.ActorID})
}

func (a *channelAggregate) Kick(ctx context.Context, in domainagg.KickMemberInput) (domainagg.KickMemberResult, error) {
	op := "channel.kick"
	if in.KickerID == nil {
		op = "channel.leave"
	}

	if in.ChannelID == uuid.Nil || in.TargetID == uuid.Nil {
		return domainagg.KickMemberResult{}, MapError(op, ValidationError("channel and target are required"))
	}
	if in.KickerID != nil && *in.KickerID == uuid.Nil {
		return domainagg.KickMemberResult{}, MapError(op, ValidationError("kicker id is required"))
	}

	var res domainagg.KickMemberResult
	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}

		actorID := in.TargetID
		evType := types.EventUserLeave
		if in.KickerID != nil {
			actorID = *in.KickerID
			evType = types.EventUserKick
			if err := requireOwner(ch, actorID); err != nil {
				return err
			}
			if actorID == in.TargetID {
				return ForbiddenError("cannot perform this action on yourself")
			}
			if !ch.IsMember(in.TargetID) {
				return ConflictError("user is not a member of this channel")
			}
		} else if err := requireMember(ch, actorID); err != nil {
			return err
		}

		now := a.deps.Base.now()
		if err := a.removeMember(dbc, ch.ID, in.TargetID); err != nil {
			return err
		}
		ev := types.NewEvent(ch.ID, actorID, evType, now)
		ev.TargetUserID = ptrUUID(in.TargetID)
		if err := a.deps.Events.Append(dbc, ev); err != nil {
			return err
		}

		remaining := without(ch.MemberIDs, in.TargetID)
		res = domainagg.KickMemberResult{Event: ev, RemovedUserID: in.TargetID}
		notice = domainagg.ChannelNotice{
			Kind:          domainagg.NoticeMemberRemoved,
			ChannelID:     ch.ID,
			ActorID:       actorID,
			Event:         ev,
			RemovedUserID: ptrUUID(in.TargetID),
		}

		if len(remaining) == 0 {
			if _, err := cascadeDeleteChannel(dbc, a.cascadeRepos(), ch.ID); err != nil {
				return err
			}
			res.Destroyed = true
			notice.Destroyed = true
			ch.MemberIDs = remaining
			notice.Channel = ch
			return nil
		}

		updates := map[string]any{"updated_at": now}
		if ch.OwnerID == in.TargetID {
			// Members are hydrated in join order, so the head is the earliest joiner.
			successor := remaining[0]
			updates["owner_id"] = successor
			ch.OwnerID = successor
			res.NewOwnerID = ptrUUID(successor)
			notice.NewOwnerID = ptrUUID(successor)
		}
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, channelTable, ch.ID, ch.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "channel changed concurrently"); err != nil {
			return err
		}
		ch.Version++
		ch.UpdatedAt = now
		ch.MemberIDs = remaining
		res.Channel = ch
		notice.Channel = ch
		return nil
	})
	if err != nil {
		return domainagg.KickMemberResult{}, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	if res.Destroyed {
		a.deps.Base.Log.Info("Channel destroyed by last member leaving", "channel_id", in.ChannelID)
	}
	return res, nil
}

func (a *channelAggregate) UpdateTitle(ctx context.Context, in domainagg.UpdateTitleInput) (domainagg.UpdateTitleResult, error) {
	const op = "channel.update_title"

	title, err := validateTitle(in.Title, channel.TitleEditMaxLen)
	if err != nil {
		return domainagg.UpdateTitleResult{}, MapError(op, err)
	}
	if in.ChannelID == uuid.Nil || in.ActorID == uuid.Nil {
		return domainagg.UpdateTitleResult{}, MapError(op, ValidationError("channel and actor are required"))
	}

	var res domainagg.UpdateTitleResult
	var notice domainagg.ChannelNotice
	err = executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}
		if err := requireOwner(ch, in.ActorID); err != nil {
			return err
		}
		if ch.Title == title {
			return ConflictError("channel already has this title")
		}
		now := a.deps.Base.now()
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, channelTable, ch.ID, ch.Version, map[string]any{
			"title":      title,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "channel changed concurrently"); err != nil {
			return err
		}
		ev := types.NewEvent(ch.ID, in.ActorID, types.EventChannelTitle, now)
		ev.NewChannelTitle = &title
		if err := a.deps.Events.Append(dbc, ev); err != nil {
			return err
		}
		ch.Title = title
		ch.Version++
		ch.UpdatedAt = now
		res = domainagg.UpdateTitleResult{Channel: ch, Event: ev}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeChannelTitleChanged,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			Channel:   ch,
			Event:     ev,
		}
		return nil
	})
	if err != nil {
		return domainagg.UpdateTitleResult{}, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return res, nil
}

func (a *channelAggregate) UpdateAvatar(ctx context.Context, in domainagg.UpdateAvatarInput) (domainagg.UpdateAvatarResult, error) {
	const op = "channel.update_avatar"

	if in.ChannelID == uuid.Nil || in.ActorID == uuid.Nil {
		return domainagg.UpdateAvatarResult{}, MapError(op, ValidationError("channel and actor are required"))
	}

	var res domainagg.UpdateAvatarResult
	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}
		if err := requireMember(ch, in.ActorID); err != nil {
			return err
		}
		now := a.deps.Base.now()
		if !ch.HasAvatar {
			ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, channelTable, ch.ID, ch.Version, map[string]any{
				"has_avatar": true,
				"updated_at": now,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "channel changed concurrently"); err != nil {
				return err
			}
			ch.HasAvatar = true
			ch.Version++
			ch.UpdatedAt = now
		}
		ev := types.NewEvent(ch.ID, in.ActorID, types.EventChannelAvatar, now)
		if err := a.deps.Events.Append(dbc, ev); err != nil {
			return err
		}
		res = domainagg.UpdateAvatarResult{Channel: ch, Event: ev}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeChannelAvatarChanged,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			Channel:   ch,
			Event:     ev,
		}
		return nil
	})
	if err != nil {
		return domainagg.UpdateAvatarResult{}, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return res, nil
}

func (a *channelAggregate) Delete(ctx context.Context, in domainagg.DeleteChannelInput) error {
	const op = "channel.delete"

	if in.ChannelID == uuid.Nil || in.ActorID == uuid.Nil {
		return MapError(op, ValidationError("channel and actor are required"))
	}

	var notice domainagg.ChannelNotice
	var counts CascadeCounts
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}
		if err := requireOwner(ch, in.ActorID); err != nil {
			return err
		}
		counts, err = cascadeDeleteChannel(dbc, a.cascadeRepos(), ch.ID)
		if err != nil {
			return err
		}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeChannelDeleted,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			Channel:   ch,
			Destroyed: true,
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	a.deps.Base.Log.Info("Channel deleted",
		"channel_id", in.ChannelID,
		"members", counts.Members,
		"messages", counts.Messages,
		"events", counts.Events,
	)
	return nil
}

func (a *channelAggregate) Promote(ctx context.Context, in domainagg.PromoteOwnerInput) (*types.Channel, error) {
	const op = "channel.promote"

	if in.ChannelID == uuid.Nil || in.TargetID == uuid.Nil || in.ActorID == uuid.Nil {
		return nil, MapError(op, ValidationError("channel, target and actor are required"))
	}

	var out *types.Channel
	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}
		if err := requireOwner(ch, in.ActorID); err != nil {
			return err
		}
		if in.TargetID == in.ActorID {
			return ForbiddenError("cannot perform this action on yourself")
		}
		if !ch.IsMember(in.TargetID) {
			return ConflictError("user is not a member of this channel")
		}
		now := a.deps.Base.now()
		ok, err := a.deps.Base.CASGuard.UpdateByVersion(dbc, channelTable, ch.ID, ch.Version, map[string]any{
			"owner_id":   in.TargetID,
			"updated_at": now,
		})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "channel changed concurrently"); err != nil {
			return err
		}
		ch.OwnerID = in.TargetID
		ch.Version++
		ch.UpdatedAt = now
		out = ch
		notice = domainagg.ChannelNotice{
			Kind:       domainagg.NoticeChannelOwnerChanged,
			ChannelID:  ch.ID,
			ActorID:    in.ActorID,
			Channel:    ch,
			NewOwnerID: ptrUUID(in.TargetID),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return out, nil
}

func (a *channelAggregate) UpdateSettings(ctx context.Context, in domainagg.UpdateSettingsInput) (domainagg.UpdateSettingsResult, error) {
	const op = "channel.update_settings"

	if in.ChannelID == uuid.Nil || in.UserID == uuid.Nil {
		return domainagg.UpdateSettingsResult{}, MapError(op, ValidationError("channel and user are required"))
	}
	updates := map[string]interface{}{}
	if in.DisplayName != nil {
		updates["display_name"] = *in.DisplayName
	}
	if in.NameColor != nil {
		updates["name_color"] = *in.NameColor
	}
	if in.Invisible != nil {
		updates["invisible"] = *in.Invisible
	}

	var res domainagg.UpdateSettingsResult
	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.lockChannel(dbc, in.ChannelID)
		if err != nil {
			return err
		}
		if err := requireMember(ch, in.UserID); err != nil {
			return err
		}
		u, err := a.loadUser(dbc, in.UserID)
		if err != nil {
			return err
		}
		before, err := a.deps.Settings.GetOrCreate(dbc, u.ID, ch.ID, u.DefaultInvisible)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := a.deps.Settings.Update(dbc, u.ID, ch.ID, updates); err != nil {
				return err
			}
		}
		after, err := a.deps.Settings.Get(dbc, u.ID, ch.ID)
		if err != nil {
			return err
		}
		res = domainagg.UpdateSettingsResult{
			User:              u,
			Settings:          after,
			VisibilityChanged: before.Invisible != after.Invisible,
		}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeMemberSettingsChanged,
			ChannelID: ch.ID,
			ActorID:   u.ID,
			Settings:  after,
		}
		return nil
	})
	if err != nil {
		return domainagg.UpdateSettingsResult{}, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return res, nil
}

func (a *channelAggregate) lockChannel(dbc dbctx.Context, id uuid.UUID) (*types.Channel, error) {
	ch, err := a.deps.Channels.LockByID(dbc, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("channel not found")
	}
	if err != nil {
		return nil, err
	}
	if len(ch.MemberIDs) == 0 || !ch.IsMember(ch.OwnerID) {
		return nil, InvariantError("channel membership is inconsistent")
	}
	return ch, nil
}

func (a *channelAggregate) loadUser(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	u, err := a.deps.Users.GetByID(dbc, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("user not found")
	}
	return u, err
}

// addMember writes the membership row and its settings row together.
func (a *channelAggregate) addMember(dbc dbctx.Context, channelID uuid.UUID, u *types.User, seq int64, now time.Time) error {
	if err := a.deps.Members.Add(dbc, &types.ChannelMember{
		ChannelID: channelID,
		UserID:    u.ID,
		JoinSeq:   seq,
		JoinedAt:  now,
	}); err != nil {
		return err
	}
	return a.deps.Settings.Create(dbc, types.NewChannelSettings(u.ID, channelID, u.DefaultInvisible))
}

func (a *channelAggregate) removeMember(dbc dbctx.Context, channelID, userID uuid.UUID) error {
	removed, err := a.deps.Members.Remove(dbc, channelID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return RetryableError("membership changed concurrently")
	}
	_, err = a.deps.Settings.Delete(dbc, userID, channelID)
	return err
}

func (a *channelAggregate) cascadeRepos() cascadeRepos {
	return cascadeRepos{
		Channels: a.deps.Channels,
		Members:  a.deps.Members,
		Settings: a.deps.Settings,
		Messages: a.deps.Messages,
		Events:   a.deps.Events,
	}
}

func validateTitle(raw string, max int) (string, error) {
	title := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(title)
	if n < channel.TitleMinLen || n > max {
		return "", ValidationError(fmt.Sprintf("title must be between %d and %d characters", channel.TitleMinLen, max))
	}
	return title, nil
}

func requireMember(ch *types.Channel, userID uuid.UUID) error {
	if !ch.IsMember(userID) {
		return ForbiddenError("you are not a member of this channel")
	}
	return nil
}

func requireOwner(ch *types.Channel, userID uuid.UUID) error {
	if ch.OwnerID != userID {
		return ForbiddenError("only the channel owner can do that")
	}
	return nil
}

func without(ids []uuid.UUID, drop uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func ptrUUID(v uuid.UUID) *uuid.UUID { return &v }
