package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/bonfires-backend/internal/data/aggregates/testutil"
	channelrepos "github.com/yungbote/bonfires-backend/internal/data/repos/channel"
	repotest "github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	userrepos "github.com/yungbote/bonfires-backend/internal/data/repos/user"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

type harness struct {
	db       *gorm.DB
	channels channelrepos.ChannelRepo
	members  channelrepos.MemberRepo
	settings channelrepos.SettingsRepo
	messages channelrepos.MessageRepo
	events   channelrepos.EventRepo
	users    userrepos.UserRepo

	hooks *aggtest.HooksRecorder
	pub   *aggtest.PublisherRecorder

	channelAgg domainagg.ChannelAggregate
	messageAgg domainagg.MessageAggregate
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithRunner(t, nil)
}

// newHarnessWithRunner wires both aggregates against a fresh database. A nil
// runner selects the real GORM runner.
func newHarnessWithRunner(t *testing.T, runner aggregates.TxRunner) *harness {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	h := &harness{
		db:       db,
		channels: channelrepos.NewChannelRepo(db, log),
		members:  channelrepos.NewMemberRepo(db, log),
		settings: channelrepos.NewSettingsRepo(db, log),
		messages: channelrepos.NewMessageRepo(db, log),
		events:   channelrepos.NewEventRepo(db, log),
		users:    userrepos.NewUserRepo(db, log),
		hooks:    &aggtest.HooksRecorder{},
		pub:      &aggtest.PublisherRecorder{},
	}
	if runner == nil {
		runner = aggregates.NewGormTxRunner(db)
	}
	base := aggregates.BaseDeps{
		DB:           db,
		Log:          log,
		Runner:       runner,
		Hooks:        h.hooks,
		CASGuard:     aggregates.NewCASGuard(db),
		Locks:        aggregates.NewKeyedMutex(),
		Publisher:    h.pub,
		RetryBackoff: time.Millisecond,
	}
	h.channelAgg = aggregates.NewChannelAggregate(aggregates.ChannelAggregateDeps{
		Base:     base,
		Channels: h.channels,
		Members:  h.members,
		Settings: h.settings,
		Messages: h.messages,
		Events:   h.events,
		Users:    h.users,
	})
	h.messageAgg = aggregates.NewMessageAggregate(aggregates.MessageAggregateDeps{
		Base:     base,
		Channels: h.channels,
		Messages: h.messages,
		Events:   h.events,
	})
	return h
}

func (h *harness) seedUsers(t *testing.T, prefix string, n int) []*types.User {
	t.Helper()
	return repotest.SeedUsers(t, context.Background(), h.db, prefix, n)
}

// seedChannel creates a channel through the aggregate and invites the rest in order.
func (h *harness) seedChannel(t *testing.T, title string, users ...*types.User) *types.Channel {
	t.Helper()
	ctx := context.Background()
	ch, err := h.channelAgg.Create(ctx, domainagg.CreateChannelInput{Title: title, CreatorID: users[0].ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, u := range users[1:] {
		if _, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{
			ChannelID: ch.ID,
			InviteeID: u.ID,
			ActorID:   users[0].ID,
		}); err != nil {
			t.Fatalf("Invite %s: %v", u.Username, err)
		}
	}
	h.pub.Reset()
	return h.reload(t, ch.ID)
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *types.Channel {
	t.Helper()
	ch, err := h.channels.GetByID(dbctx.New(context.Background()), id)
	if err != nil {
		t.Fatalf("reload channel: %v", err)
	}
	return ch
}

// assertSettingsMatchMembers checks the one-settings-row-per-member pairing.
func (h *harness) assertSettingsMatchMembers(t *testing.T, channelID uuid.UUID) {
	t.Helper()
	dbc := dbctx.New(context.Background())
	members, err := h.members.CountByChannel(dbc, channelID)
	if err != nil {
		t.Fatalf("CountByChannel members: %v", err)
	}
	settings, err := h.settings.CountByChannel(dbc, channelID)
	if err != nil {
		t.Fatalf("CountByChannel settings: %v", err)
	}
	if members != settings {
		t.Fatalf("settings/members mismatch: members=%d settings=%d", members, settings)
	}
}

// assertChannelGone checks that nothing owned by the channel survived.
func (h *harness) assertChannelGone(t *testing.T, channelID uuid.UUID) {
	t.Helper()
	dbc := dbctx.New(context.Background())
	if _, err := h.channels.GetByID(dbc, channelID); err == nil {
		t.Fatalf("channel %s still exists", channelID)
	}
	counts := map[string]func(dbctx.Context, uuid.UUID) (int64, error){
		"members":  h.members.CountByChannel,
		"settings": h.settings.CountByChannel,
		"messages": h.messages.CountByChannel,
		"events":   h.events.CountByChannel,
	}
	for name, count := range counts {
		n, err := count(dbc, channelID)
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != 0 {
			t.Fatalf("%s left after cascade: %d", name, n)
		}
	}
}

func (h *harness) eventTypes(t *testing.T, channelID uuid.UUID) map[types.EventType]int {
	t.Helper()
	rows, err := h.events.RangeForChannel(dbctx.New(context.Background()), channelID, channelrepos.EventRange{})
	if err != nil {
		t.Fatalf("RangeForChannel: %v", err)
	}
	out := map[types.EventType]int{}
	for _, ev := range rows {
		out[ev.Type]++
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
