package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/repos"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
)

// TypingService relays typing indicators. Nothing is stored.
type TypingService interface {
	Signal(ctx context.Context, channelID uuid.UUID, typing bool) error
}

type typingService struct {
	log     *logger.Logger
	access  channelAccess
	emitter SSEEmitter
	metrics *observability.Metrics
}

func NewTypingService(
	log *logger.Logger,
	channelRepo repos.ChannelRepo,
	memberRepo repos.MemberRepo,
	emitter SSEEmitter,
	metrics *observability.Metrics,
) TypingService {
	return &typingService{
		log:     log.With("service", "TypingService"),
		access:  channelAccess{channels: channelRepo, members: memberRepo},
		emitter: emitter,
		metrics: metrics,
	}
}

func (ts *typingService) Signal(ctx context.Context, channelID uuid.UUID, typing bool) error {
	uid, err := callerID(ctx)
	if err != nil {
		return err
	}
	if err := ts.access.requireMember(dbctx.New(ctx), "typing.signal", channelID, uid); err != nil {
		return err
	}
	ev := realtime.SSEEventTypingStopped
	if typing {
		ev = realtime.SSEEventTypingStarted
	}
	ts.emitter.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.ChannelTopic(channelID),
		Event:   ev,
		Data:    TypingPayload{ChannelID: channelID, UserID: uid},
	})
	ts.metrics.IncTyping(typing)
	return nil
}
