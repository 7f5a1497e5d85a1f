package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
	"github.com/yungbote/bonfires-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// HubEmitter delivers straight into this instance's hub.
type HubEmitter struct{ Local *LocalDelivery }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.Local.Deliver(ctx, msg)
}

// RedisEmitter hands messages to the bus. Every instance, this one included,
// receives them back through its forwarder.
type RedisEmitter struct {
	Bus bus.Bus
	Log *logger.Logger
}

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if err := e.Bus.Publish(ctx, msg); err != nil && e.Log != nil {
		e.Log.Warn("SSE bus publish failed", "topic", msg.Channel, "event", msg.Event, "error", err)
	}
}

// LocalDelivery broadcasts into the hub and keeps subscriptions in step with
// membership: a removed member's connections leave the channel topic, and a
// deleted channel's topic is emptied.
type LocalDelivery struct {
	Hub *realtime.SSEHub
	// OnDetach runs for every connection dropped from a channel topic.
	OnDetach func(ctx context.Context, client *realtime.SSEClient, channelID uuid.UUID)
}

func (d *LocalDelivery) Deliver(ctx context.Context, msg realtime.SSEMessage) int {
	n := d.Hub.Broadcast(msg)
	if !realtime.IsChannelTopic(msg.Channel) {
		return n
	}
	channelID, ok := realtime.ParseChannelTopic(msg.Channel)
	if !ok {
		return n
	}

	var detached []*realtime.SSEClient
	switch msg.Event {
	case realtime.SSEEventMemberRemoved:
		var p MemberRemovedPayload
		if err := decodePayload(msg.Data, &p); err != nil || p.UserID == uuid.Nil {
			return n
		}
		detached = d.Hub.UnsubscribeUser(p.UserID, msg.Channel)
	case realtime.SSEEventChannelDeleted:
		detached = d.Hub.UnsubscribeAll(msg.Channel)
	}
	if d.OnDetach != nil {
		for _, c := range detached {
			d.OnDetach(ctx, c, channelID)
		}
	}
	return n
}

// decodePayload accepts the typed payload built locally or the generic map a
// message decodes to after crossing the bus.
func decodePayload(data any, out *MemberRemovedPayload) error {
	switch v := data.(type) {
	case MemberRemovedPayload:
		*out = v
		return nil
	case *MemberRemovedPayload:
		if v != nil {
			*out = *v
		}
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// NoticePublisher turns committed aggregate notices into SSE frames.
type NoticePublisher struct {
	log     *logger.Logger
	emitter SSEEmitter
}

func NewNoticePublisher(log *logger.Logger, emitter SSEEmitter) *NoticePublisher {
	return &NoticePublisher{
		log:     log.With("service", "NoticePublisher"),
		emitter: emitter,
	}
}

func (p *NoticePublisher) PublishChannelNotice(ctx context.Context, n domainagg.ChannelNotice) {
	msgs := NoticeMessages(n)
	if len(msgs) == 0 {
		p.log.Warn("Dropping notice with no frames", "kind", n.Kind, "channel_id", n.ChannelID)
		return
	}
	for _, m := range msgs {
		p.emitter.Emit(ctx, m)
	}
}

// NoticeMessages maps one notice to the frames it produces. Membership changes
// also reach the affected users' own topics.
func NoticeMessages(n domainagg.ChannelNotice) []realtime.SSEMessage {
	topic := realtime.ChannelTopic(n.ChannelID)
	one := func(ev realtime.SSEEvent, data any) []realtime.SSEMessage {
		return []realtime.SSEMessage{{Channel: topic, Event: ev, Data: data}}
	}

	switch n.Kind {
	case domainagg.NoticeMemberJoined:
		p := MemberJoinedPayload{ChannelID: n.ChannelID, Channel: n.Channel, Event: n.Event}
		if n.Event != nil && n.Event.TargetUserID != nil {
			p.UserID = *n.Event.TargetUserID
		}
		out := one(realtime.SSEEventMemberJoined, p)
		if p.UserID != uuid.Nil {
			out = append(out, realtime.SSEMessage{Channel: realtime.UserTopic(p.UserID), Event: realtime.SSEEventMemberJoined, Data: p})
		}
		return out

	case domainagg.NoticeMemberRemoved:
		if n.RemovedUserID == nil {
			return nil
		}
		p := MemberRemovedPayload{
			ChannelID:  n.ChannelID,
			UserID:     *n.RemovedUserID,
			NewOwnerID: n.NewOwnerID,
			Destroyed:  n.Destroyed,
			Event:      n.Event,
		}
		return append(
			one(realtime.SSEEventMemberRemoved, p),
			realtime.SSEMessage{Channel: realtime.UserTopic(p.UserID), Event: realtime.SSEEventMemberRemoved, Data: p},
		)

	case domainagg.NoticeChannelOwnerChanged:
		if n.NewOwnerID == nil {
			return nil
		}
		return one(realtime.SSEEventChannelOwnerChanged, ChannelOwnerChangedPayload{ChannelID: n.ChannelID, OwnerID: *n.NewOwnerID})

	case domainagg.NoticeChannelTitleChanged, domainagg.NoticeChannelAvatarChanged:
		ev := realtime.SSEEventChannelTitleChanged
		if n.Kind == domainagg.NoticeChannelAvatarChanged {
			ev = realtime.SSEEventChannelAvatarChanged
		}
		p := ChannelChangedPayload{ChannelID: n.ChannelID, Event: n.Event}
		if n.Channel != nil {
			p.Title = n.Channel.Title
			p.HasAvatar = n.Channel.HasAvatar
		}
		return one(ev, p)

	case domainagg.NoticeChannelDeleted:
		p := ChannelDeletedPayload{ChannelID: n.ChannelID, ActorID: n.ActorID}
		out := one(realtime.SSEEventChannelDeleted, p)
		if n.Channel != nil {
			for _, uid := range n.Channel.MemberIDs {
				out = append(out, realtime.SSEMessage{Channel: realtime.UserTopic(uid), Event: realtime.SSEEventChannelDeleted, Data: p})
			}
		}
		return out

	case domainagg.NoticeMessageCreated, domainagg.NoticeMessageEdited,
		domainagg.NoticeMessagePinned, domainagg.NoticeMessageUnpinned:
		if n.Message == nil {
			return nil
		}
		return one(messageEvents[n.Kind], MessagePayload{ChannelID: n.ChannelID, Message: n.Message, Event: n.Event})

	case domainagg.NoticeMessageDeleted:
		if n.MessageID == nil {
			return nil
		}
		return one(realtime.SSEEventMessageDeleted, MessageDeletedPayload{ChannelID: n.ChannelID, MessageID: *n.MessageID})

	case domainagg.NoticeMemberSettingsChanged:
		return one(realtime.SSEEventMemberSettingsChanged, MemberSettingsPayload{ChannelID: n.ChannelID, UserID: n.ActorID, Settings: n.Settings})
	}
	return nil
}

var messageEvents = map[domainagg.NoticeKind]realtime.SSEEvent{
	domainagg.NoticeMessageCreated:  realtime.SSEEventMessageCreated,
	domainagg.NoticeMessageEdited:   realtime.SSEEventMessageEdited,
	domainagg.NoticeMessagePinned:   realtime.SSEEventMessagePinned,
	domainagg.NoticeMessageUnpinned: realtime.SSEEventMessageUnpinned,
}
