package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
)

// PresenceService owns channel subscriptions on SSE connections and the viewer
// counts they imply. A viewer is a member with at least one connection
// subscribed to the channel.
type PresenceService interface {
	Subscribe(ctx context.Context, connectionID, channelID uuid.UUID) error
	Unsubscribe(ctx context.Context, connectionID, channelID uuid.UUID) error
	// Detach records that client was dropped from channelID by the hub.
	Detach(ctx context.Context, client *realtime.SSEClient, channelID uuid.UUID)
	// Disconnect closes client and releases everything it was viewing.
	Disconnect(ctx context.Context, client *realtime.SSEClient)
	Viewers(ctx context.Context, channelID uuid.UUID) (PresenceView, error)

	VisibilityListener
	ChannelJanitor
}

type presenceService struct {
	log          *logger.Logger
	hub          *realtime.SSEHub
	store        realtime.PresenceStore
	emitter      SSEEmitter
	access       channelAccess
	directory    memberDirectory
	settingsRepo repos.SettingsRepo
	metrics      *observability.Metrics
	// conns orders hub changes and store counts for one connection.
	conns *aggregates.KeyedMutex
}

func NewPresenceService(
	log *logger.Logger,
	hub *realtime.SSEHub,
	store realtime.PresenceStore,
	emitter SSEEmitter,
	channelRepo repos.ChannelRepo,
	memberRepo repos.MemberRepo,
	userRepo repos.UserRepo,
	settingsRepo repos.SettingsRepo,
	metrics *observability.Metrics,
) PresenceService {
	return &presenceService{
		log:          log.With("service", "PresenceService"),
		hub:          hub,
		store:        store,
		emitter:      emitter,
		access:       channelAccess{channels: channelRepo, members: memberRepo},
		directory:    memberDirectory{users: userRepo, settings: settingsRepo},
		settingsRepo: settingsRepo,
		metrics:      metrics,
		conns:        aggregates.NewKeyedMutex(),
	}
}

func (ps *presenceService) connection(ctx context.Context, op string, connectionID uuid.UUID) (*realtime.SSEClient, uuid.UUID, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	client, ok := ps.hub.Client(connectionID)
	if !ok || client.UserID != uid {
		return nil, uuid.Nil, notFoundErr(op, realtime.ErrUnknownConnection.Error())
	}
	return client, uid, nil
}

func (ps *presenceService) Subscribe(ctx context.Context, connectionID, channelID uuid.UUID) error {
	const op = "presence.subscribe"
	client, uid, err := ps.connection(ctx, op, connectionID)
	if err != nil {
		return err
	}
	dbc := dbctx.New(ctx)
	if err := ps.access.requireMember(dbc, op, channelID, uid); err != nil {
		return err
	}

	unlock := ps.conns.Lock(client.ID)
	defer unlock()
	topic := realtime.ChannelTopic(channelID)
	if !ps.hub.AddChannel(client, topic) {
		if ps.hub.HasChannel(client, topic) {
			return nil
		}
		return notFoundErr(op, realtime.ErrUnknownConnection.Error())
	}
	first, err := ps.store.Join(ctx, channelID, uid)
	if err != nil {
		ps.log.Warn("Presence join failed", "channel_id", channelID, "error", err)
		ps.hub.RemoveChannel(client, topic)
		return nil
	}
	if first {
		ps.metrics.AddPresenceViewers(1)
	}

	// A kick that committed after the first check has already swept this
	// user's connections, so it missed this one.
	if err := ps.access.requireMember(dbc, op, channelID, uid); err != nil {
		if ps.hub.RemoveChannel(client, topic) {
			ps.leave(ctx, channelID, uid)
		}
		return err
	}
	if first {
		ps.broadcast(ctx, channelID)
	}
	return nil
}

func (ps *presenceService) Unsubscribe(ctx context.Context, connectionID, channelID uuid.UUID) error {
	client, _, err := ps.connection(ctx, "presence.unsubscribe", connectionID)
	if err != nil {
		return err
	}
	unlock := ps.conns.Lock(client.ID)
	defer unlock()
	if ps.hub.RemoveChannel(client, realtime.ChannelTopic(channelID)) {
		ps.leave(ctx, channelID, client.UserID)
	}
	return nil
}

func (ps *presenceService) Detach(ctx context.Context, client *realtime.SSEClient, channelID uuid.UUID) {
	unlock := ps.conns.Lock(client.ID)
	defer unlock()
	ps.leave(ctx, channelID, client.UserID)
}

func (ps *presenceService) Disconnect(ctx context.Context, client *realtime.SSEClient) {
	ctx = context.WithoutCancel(ctx)
	unlock := ps.conns.Lock(client.ID)
	defer unlock()
	for _, topic := range ps.hub.CloseClient(client) {
		if !realtime.IsChannelTopic(topic) {
			continue
		}
		if channelID, ok := realtime.ParseChannelTopic(topic); ok {
			ps.leave(ctx, channelID, client.UserID)
		}
	}
	ps.metrics.SSEConnectionClosed()
}

func (ps *presenceService) leave(ctx context.Context, channelID, userID uuid.UUID) {
	last, err := ps.store.Leave(ctx, channelID, userID)
	if err != nil {
		ps.log.Warn("Presence leave failed", "channel_id", channelID, "error", err)
		return
	}
	if last {
		ps.metrics.AddPresenceViewers(-1)
		ps.broadcast(ctx, channelID)
	}
}

func (ps *presenceService) Viewers(ctx context.Context, channelID uuid.UUID) (PresenceView, error) {
	const op = "presence.viewers"
	uid, err := callerID(ctx)
	if err != nil {
		return PresenceView{}, err
	}
	dbc := dbctx.New(ctx)
	ch, err := ps.access.channels.GetByID(dbc, channelID)
	if err != nil {
		return PresenceView{}, lookupErr(op, "channel", err)
	}
	if !ch.IsMember(uid) {
		return PresenceView{}, forbiddenErr(op, "not a member of this channel")
	}
	ids, err := ps.visible(dbc, ch)
	if err != nil {
		return PresenceView{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	views, err := ps.directory.views(dbc, ch.ID, ch.OwnerID, ids)
	if err != nil {
		return PresenceView{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return PresenceView{ChannelID: ch.ID, Viewers: views}, nil
}

// visible returns the current viewers who are still members and not invisible.
func (ps *presenceService) visible(dbc dbctx.Context, ch *types.Channel) ([]uuid.UUID, error) {
	viewers, err := ps.store.Viewers(dbc.Ctx, ch.ID)
	if err != nil {
		return nil, err
	}
	rows, err := ps.settingsRepo.ListByChannel(dbc, ch.ID)
	if err != nil {
		return nil, err
	}
	hidden := lo.SliceToMap(
		lo.Filter(rows, func(s *types.ChannelSettings, _ int) bool { return s.Invisible }),
		func(s *types.ChannelSettings) (uuid.UUID, bool) { return s.UserID, true },
	)
	return lo.Filter(viewers, func(id uuid.UUID, _ int) bool {
		return ch.IsMember(id) && !hidden[id]
	}), nil
}

func (ps *presenceService) broadcast(ctx context.Context, channelID uuid.UUID) {
	dbc := dbctx.New(ctx)
	ch, err := ps.access.channels.GetByID(dbc, channelID)
	if err != nil {
		// A destroyed channel has nobody left to tell.
		return
	}
	ids, err := ps.visible(dbc, ch)
	if err != nil {
		ps.log.Warn("Presence lookup failed", "channel_id", channelID, "error", err)
		return
	}
	ps.emitter.Emit(ctx, realtime.SSEMessage{
		Channel: realtime.ChannelTopic(channelID),
		Event:   realtime.SSEEventPresenceChanged,
		Data:    PresencePayload{ChannelID: channelID, Viewers: ids},
	})
}

func (ps *presenceService) VisibilityChanged(ctx context.Context, channelID uuid.UUID) {
	ps.broadcast(ctx, channelID)
}

func (ps *presenceService) ChannelDestroyed(ctx context.Context, channelID uuid.UUID) {
	if err := ps.store.Clear(ctx, channelID); err != nil && !errors.Is(err, context.Canceled) {
		ps.log.Warn("Presence clear failed", "channel_id", channelID, "error", err)
	}
}
