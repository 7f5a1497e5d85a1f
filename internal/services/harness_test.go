package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	"github.com/yungbote/bonfires-backend/internal/data/repos"
	repotest "github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonfires-backend/internal/platform/gcp"
	"github.com/yungbote/bonfires-backend/internal/realtime"
)

// teeEmitter records every frame and delivers it into the local hub.
type teeEmitter struct {
	rec   *recordingEmitter
	local *LocalDelivery
}

func (e *teeEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.rec.Emit(ctx, msg)
	e.local.Deliver(ctx, msg)
}

type svcHarness struct {
	db *gorm.DB

	users    repos.UserRepo
	channels repos.ChannelRepo
	members  repos.MemberRepo
	settings repos.SettingsRepo
	messages repos.MessageRepo
	events   repos.EventRepo

	hub      *realtime.SSEHub
	store    realtime.PresenceStore
	frames   *recordingEmitter
	blobs    gcp.BlobStore
	visTally int

	channelAgg  domainagg.ChannelAggregate
	auth        AuthService
	userSvc     UserService
	channelSvc  ChannelService
	settingsSvc SettingsService
	messageSvc  MessageService
	presenceSvc PresenceService
	typingSvc   TypingService
	avatarSvc   AvatarService
}

type visibilityCounter struct {
	h    *svcHarness
	next VisibilityListener
}

func (v visibilityCounter) VisibilityChanged(ctx context.Context, channelID uuid.UUID) {
	v.h.visTally++
	v.next.VisibilityChanged(ctx, channelID)
}

func newSvcHarness(t *testing.T) *svcHarness {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	h := &svcHarness{
		db:       db,
		users:    repos.NewUserRepo(db, log),
		channels: repos.NewChannelRepo(db, log),
		members:  repos.NewMemberRepo(db, log),
		settings: repos.NewSettingsRepo(db, log),
		messages: repos.NewMessageRepo(db, log),
		events:   repos.NewEventRepo(db, log),
		hub:      realtime.NewSSEHub(log),
		store:    realtime.NewMemoryPresence(),
		frames:   &recordingEmitter{},
		blobs:    gcp.NewMemoryBlobStore(),
	}
	local := &LocalDelivery{Hub: h.hub}
	emitter := &teeEmitter{rec: h.frames, local: local}
	publisher := NewNoticePublisher(log, emitter)

	base := aggregates.BaseDeps{
		DB:           db,
		Log:          log,
		Runner:       aggregates.NewGormTxRunner(db),
		CASGuard:     aggregates.NewCASGuard(db),
		Locks:        aggregates.NewKeyedMutex(),
		Publisher:    publisher,
		RetryBackoff: time.Millisecond,
	}
	channelAgg := aggregates.NewChannelAggregate(aggregates.ChannelAggregateDeps{
		Base:     base,
		Channels: h.channels,
		Members:  h.members,
		Settings: h.settings,
		Messages: h.messages,
		Events:   h.events,
		Users:    h.users,
	})
	messageAgg := aggregates.NewMessageAggregate(aggregates.MessageAggregateDeps{
		Base:     base,
		Channels: h.channels,
		Messages: h.messages,
		Events:   h.events,
	})

	h.channelAgg = channelAgg

	h.presenceSvc = NewPresenceService(log, h.hub, h.store, emitter, h.channels, h.members, h.users, h.settings, nil)
	local.OnDetach = h.presenceSvc.Detach

	avatarSvc, err := NewAvatarService(log, h.blobs, nil, channelAgg, h.channels, h.members, h.users, nil, 0)
	if err != nil {
		t.Fatalf("NewAvatarService: %v", err)
	}
	h.avatarSvc = avatarSvc

	h.auth = NewAuthService(db, log, h.users, "test-secret", time.Hour)
	h.userSvc = NewUserService(log, h.users)
	h.channelSvc = NewChannelService(log, channelAgg, h.channels, h.members, h.users, h.settings, 0, h.presenceSvc, h.avatarSvc)
	h.settingsSvc = NewSettingsService(log, channelAgg, h.channels, h.members, h.users, h.settings, visibilityCounter{h: h, next: h.presenceSvc})
	h.messageSvc = NewMessageService(log, messageAgg, h.channels, h.members, h.messages, h.events, 0)
	h.typingSvc = NewTypingService(log, h.channels, h.members, emitter, nil)
	return h
}

func (h *svcHarness) seedUsers(t *testing.T, prefix string, n int) []*types.User {
	t.Helper()
	return repotest.SeedUsers(t, context.Background(), h.db, prefix, n)
}

// as returns a context authenticated as u.
func as(u *types.User) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: u.ID})
}

// seedChannel creates a channel owned by users[0] and invites the rest in order.
func (h *svcHarness) seedChannel(t *testing.T, title string, users ...*types.User) *types.Channel {
	t.Helper()
	ch, err := h.channelSvc.Create(as(users[0]), title)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, u := range users[1:] {
		if ch, err = h.channelSvc.Invite(as(users[0]), ch.ID, u.Username); err != nil {
			t.Fatalf("Invite %s: %v", u.Username, err)
		}
	}
	return ch
}

func (h *svcHarness) framesFor(event realtime.SSEEvent) []realtime.SSEMessage {
	var out []realtime.SSEMessage
	for _, m := range h.frames.Messages() {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !domainagg.IsCode(err, code) {
		t.Fatalf("expected %s, got code=%s err=%v", code, domainagg.CodeOf(err), err)
	}
}
