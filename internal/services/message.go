package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

const (
	DefaultEventTake = 100
	MaxEventTake     = 1000
)

type MessageService interface {
	List(ctx context.Context, channelID uuid.UUID, req pagination.Request) (MessagePage, error)
	// Feed returns a message page plus the events inside the same window.
	Feed(ctx context.Context, channelID uuid.UUID, req pagination.Request) (Feed, error)
	Pins(ctx context.Context, channelID uuid.UUID) ([]*types.Message, error)
	Events(ctx context.Context, channelID uuid.UUID, rng repos.EventRange) ([]*types.Event, error)

	Create(ctx context.Context, channelID uuid.UUID, content string) (*types.Message, error)
	Edit(ctx context.Context, channelID, messageID uuid.UUID, content string) (*types.Message, error)
	Delete(ctx context.Context, channelID, messageID uuid.UUID) error
	SetPinned(ctx context.Context, channelID, messageID uuid.UUID, pinned bool) (domainagg.SetPinnedResult, error)
}

type messageService struct {
	log         *logger.Logger
	agg         domainagg.MessageAggregate
	access      channelAccess
	messageRepo repos.MessageRepo
	eventRepo   repos.EventRepo
	pageSize    int
}

func NewMessageService(
	log *logger.Logger,
	agg domainagg.MessageAggregate,
	channelRepo repos.ChannelRepo,
	memberRepo repos.MemberRepo,
	messageRepo repos.MessageRepo,
	eventRepo repos.EventRepo,
	pageSize int,
) MessageService {
	return &messageService{
		log:         log.With("service", "MessageService"),
		agg:         agg,
		access:      channelAccess{channels: channelRepo, members: memberRepo},
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		pageSize:    pageSize,
	}
}

func (ms *messageService) member(ctx context.Context, op string, channelID uuid.UUID) (dbctx.Context, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return dbctx.Context{}, err
	}
	dbc := dbctx.New(ctx)
	return dbc, ms.access.requireMember(dbc, op, channelID, uid)
}

func (ms *messageService) List(ctx context.Context, channelID uuid.UUID, req pagination.Request) (MessagePage, error) {
	const op = "message.list"
	dbc, err := ms.member(ctx, op, channelID)
	if err != nil {
		return MessagePage{}, err
	}
	page, err := ms.messageRepo.ListPage(dbc, channelID, req.Normalize(ms.pageSize, pagination.MaxTake))
	if err != nil {
		return MessagePage{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return MessagePage{Items: page.Items, NextCursor: cursorString(page.Next)}, nil
}

func (ms *messageService) Feed(ctx context.Context, channelID uuid.UUID, req pagination.Request) (Feed, error) {
	const op = "message.feed"
	dbc, err := ms.member(ctx, op, channelID)
	if err != nil {
		return Feed{}, err
	}
	req = req.Normalize(ms.pageSize, pagination.MaxTake)
	page, err := ms.messageRepo.ListPage(dbc, channelID, req)
	if err != nil {
		return Feed{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	w := pagination.EventWindow(req, page)
	events, err := ms.eventRepo.RangeForChannel(dbc, channelID, repos.EventRange{Before: w.Before, After: w.After})
	if err != nil {
		return Feed{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return Feed{Messages: page.Items, Events: events, NextCursor: cursorString(page.Next)}, nil
}

func (ms *messageService) Pins(ctx context.Context, channelID uuid.UUID) ([]*types.Message, error) {
	const op = "message.pins"
	dbc, err := ms.member(ctx, op, channelID)
	if err != nil {
		return nil, err
	}
	out, err := ms.messageRepo.ListPinned(dbc, channelID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return out, nil
}

func (ms *messageService) Events(ctx context.Context, channelID uuid.UUID, rng repos.EventRange) ([]*types.Event, error) {
	const op = "message.events"
	dbc, err := ms.member(ctx, op, channelID)
	if err != nil {
		return nil, err
	}
	if rng.Before != nil && rng.After != nil && !rng.After.Before(*rng.Before) {
		return []*types.Event{}, nil
	}
	rng.Take = pagination.Request{Take: rng.Take}.Normalize(DefaultEventTake, MaxEventTake).Take
	out, err := ms.eventRepo.RangeForChannel(dbc, channelID, rng)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return out, nil
}

func (ms *messageService) Create(ctx context.Context, channelID uuid.UUID, content string) (*types.Message, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return ms.agg.Create(ctx, domainagg.CreateMessageInput{ChannelID: channelID, AuthorID: uid, Content: content})
}

func (ms *messageService) Edit(ctx context.Context, channelID, messageID uuid.UUID, content string) (*types.Message, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return ms.agg.Edit(ctx, domainagg.EditMessageInput{ChannelID: channelID, MessageID: messageID, ActorID: uid, Content: content})
}

func (ms *messageService) Delete(ctx context.Context, channelID, messageID uuid.UUID) error {
	uid, err := callerID(ctx)
	if err != nil {
		return err
	}
	return ms.agg.Delete(ctx, domainagg.DeleteMessageInput{ChannelID: channelID, MessageID: messageID, ActorID: uid})
}

func (ms *messageService) SetPinned(ctx context.Context, channelID, messageID uuid.UUID, pinned bool) (domainagg.SetPinnedResult, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return domainagg.SetPinnedResult{}, err
	}
	return ms.agg.SetPinned(ctx, domainagg.SetPinnedInput{ChannelID: channelID, MessageID: messageID, ActorID: uid, Pinned: pinned})
}
