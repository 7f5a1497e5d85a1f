package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	channelrepos "github.com/yungbote/bonfires-backend/internal/data/repos/channel"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

type MessageAggregateDeps struct {
	Base     BaseDeps
	Channels channelrepos.ChannelRepo
	Messages channelrepos.MessageRepo
	Events   channelrepos.EventRepo
}

type messageAggregate struct {
	deps MessageAggregateDeps
}

func NewMessageAggregate(deps MessageAggregateDeps) domainagg.MessageAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "MessageAggregate")
	return &messageAggregate{deps: deps}
}

func (a *messageAggregate) Contract() domainagg.Contract {
	return domainagg.MessageAggregateContract
}

func (a *messageAggregate) Create(ctx context.Context, in domainagg.CreateMessageInput) (*types.Message, error) {
	const op = "message.create"

	content, err := validateContent(in.Content)
	if err != nil {
		return nil, MapError(op, err)
	}
	if in.ChannelID == uuid.Nil || in.AuthorID == uuid.Nil {
		return nil, MapError(op, ValidationError("channel and author are required"))
	}

	var out *types.Message
	var notice domainagg.ChannelNotice
	err = executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.memberChannel(dbc, in.ChannelID, in.AuthorID)
		if err != nil {
			return err
		}
		now := a.deps.Base.now()
		msg := &types.Message{
			ID:        uuid.New(),
			ChannelID: ch.ID,
			AuthorID:  in.AuthorID,
			Content:   content,
			Timestamp: now,
		}
		if err := a.deps.Messages.Create(dbc, msg); err != nil {
			return err
		}
		if err := a.deps.Channels.BumpLastActivity(dbc, ch.ID, now); err != nil {
			return err
		}
		out = msg
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeMessageCreated,
			ChannelID: ch.ID,
			ActorID:   in.AuthorID,
			Message:   msg,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return out, nil
}

func (a *messageAggregate) Edit(ctx context.Context, in domainagg.EditMessageInput) (*types.Message, error) {
	const op = "message.edit"

	content, err := validateContent(in.Content)
	if err != nil {
		return nil, MapError(op, err)
	}
	if in.ChannelID == uuid.Nil || in.MessageID == uuid.Nil || in.ActorID == uuid.Nil {
		return nil, MapError(op, ValidationError("channel, message and actor are required"))
	}

	var out *types.Message
	var notice domainagg.ChannelNotice
	err = executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.memberChannel(dbc, in.ChannelID, in.ActorID)
		if err != nil {
			return err
		}
		msg, err := a.loadMessage(dbc, ch.ID, in.MessageID)
		if err != nil {
			return err
		}
		if msg.AuthorID != in.ActorID {
			return ForbiddenError("only the author can edit this message")
		}
		now := a.deps.Base.now()
		if err := a.deps.Messages.UpdateFields(dbc, msg.ID, map[string]interface{}{
			"content":     content,
			"last_edited": now,
		}); err != nil {
			return err
		}
		msg.Content = content
		msg.LastEdited = &now
		out = msg
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeMessageEdited,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			Message:   msg,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return out, nil
}

func (a *messageAggregate) Delete(ctx context.Context, in domainagg.DeleteMessageInput) error {
	const op = "message.delete"

	if in.ChannelID == uuid.Nil || in.MessageID == uuid.Nil || in.ActorID == uuid.Nil {
		return MapError(op, ValidationError("channel, message and actor are required"))
	}

	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.memberChannel(dbc, in.ChannelID, in.ActorID)
		if err != nil {
			return err
		}
		msg, err := a.loadMessage(dbc, ch.ID, in.MessageID)
		if err != nil {
			return err
		}
		if msg.AuthorID != in.ActorID && ch.OwnerID != in.ActorID {
			return ForbiddenError("only the author or the channel owner can delete this message")
		}
		n, err := a.deps.Messages.Delete(dbc, msg.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			return RetryableError("message changed concurrently")
		}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeMessageDeleted,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			MessageID: ptrUUID(msg.ID),
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return nil
}

func (a *messageAggregate) SetPinned(ctx context.Context, in domainagg.SetPinnedInput) (domainagg.SetPinnedResult, error) {
	op := "message.unpin"
	if in.Pinned {
		op = "message.pin"
	}

	if in.ChannelID == uuid.Nil || in.MessageID == uuid.Nil || in.ActorID == uuid.Nil {
		return domainagg.SetPinnedResult{}, MapError(op, ValidationError("channel, message and actor are required"))
	}

	var res domainagg.SetPinnedResult
	var notice domainagg.ChannelNotice
	err := executeChannelWrite(ctx, a.deps.Base, op, in.ChannelID, func(dbc dbctx.Context) error {
		ch, err := a.memberChannel(dbc, in.ChannelID, in.ActorID)
		if err != nil {
			return err
		}
		msg, err := a.loadMessage(dbc, ch.ID, in.MessageID)
		if err != nil {
			return err
		}
		if msg.Pinned == in.Pinned {
			if in.Pinned {
				return ConflictError("message is already pinned")
			}
			return ConflictError("message is not pinned")
		}
		if in.Pinned {
			pinned, err := a.deps.Messages.CountPinned(dbc, ch.ID)
			if err != nil {
				return err
			}
			if pinned >= channel.MaxPinnedMessages {
				return ConflictError("pin limit reached")
			}
		}
		if err := a.deps.Messages.UpdateFields(dbc, msg.ID, map[string]interface{}{"pinned": in.Pinned}); err != nil {
			return err
		}
		msg.Pinned = in.Pinned
		res = domainagg.SetPinnedResult{Message: msg}
		notice = domainagg.ChannelNotice{
			Kind:      domainagg.NoticeMessageUnpinned,
			ChannelID: ch.ID,
			ActorID:   in.ActorID,
			Message:   msg,
		}
		if !in.Pinned {
			return nil
		}
		ev := types.NewEvent(ch.ID, in.ActorID, types.EventMessagePin, a.deps.Base.now())
		ev.TargetMessageID = ptrUUID(msg.ID)
		if err := a.deps.Events.Append(dbc, ev); err != nil {
			return err
		}
		res.Event = ev
		notice.Kind = domainagg.NoticeMessagePinned
		notice.Event = ev
		return nil
	})
	if err != nil {
		return domainagg.SetPinnedResult{}, err
	}
	a.deps.Base.Publisher.PublishChannelNotice(ctx, notice)
	return res, nil
}

func (a *messageAggregate) memberChannel(dbc dbctx.Context, channelID, userID uuid.UUID) (*types.Channel, error) {
	ch, err := a.deps.Channels.LockByID(dbc, channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("channel not found")
	}
	if err != nil {
		return nil, err
	}
	if err := requireMember(ch, userID); err != nil {
		return nil, err
	}
	return ch, nil
}

func (a *messageAggregate) loadMessage(dbc dbctx.Context, channelID, id uuid.UUID) (*types.Message, error) {
	msg, err := a.deps.Messages.GetByID(dbc, channelID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFoundError("message not found")
	}
	return msg, err
}

func validateContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(content)
	if n < 1 || n > channel.MessageMaxLen {
		return "", ValidationError(fmt.Sprintf("message must be between 1 and %d characters", channel.MessageMaxLen))
	}
	return content, nil
}
