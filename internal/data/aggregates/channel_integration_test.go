package aggregates_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/bonfires-backend/internal/data/aggregates/testutil"
	channelrepos "github.com/yungbote/bonfires-backend/internal/data/repos/channel"
	repotest "github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

func TestChannelCreateSeedsOwnerMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.seedUsers(t, "create", 1)[0]

	ch, err := h.channelAgg.Create(ctx, domainagg.CreateChannelInput{Title: "  campfire  ", CreatorID: u.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ch.Title != "campfire" {
		t.Fatalf("title: want=campfire got=%q", ch.Title)
	}
	got := h.reload(t, ch.ID)
	if got.OwnerID != u.ID || len(got.MemberIDs) != 1 || got.MemberIDs[0] != u.ID {
		t.Fatalf("unexpected channel: owner=%v members=%v", got.OwnerID, got.MemberIDs)
	}
	h.assertSettingsMatchMembers(t, ch.ID)
	if n, _ := h.events.CountByChannel(dbctx.New(ctx), ch.ID); n != 0 {
		t.Fatalf("create should not record events, got %d", n)
	}
	if len(h.pub.Notices()) != 0 {
		t.Fatalf("create should not publish, got %v", h.pub.Kinds())
	}
}

func TestChannelCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.seedUsers(t, "create-invalid", 1)[0]

	_, err := h.channelAgg.Create(ctx, domainagg.CreateChannelInput{Title: " a ", CreatorID: u.ID})
	requireCode(t, err, domainagg.CodeValidation)

	_, err = h.channelAgg.Create(ctx, domainagg.CreateChannelInput{Title: strings.Repeat("x", 33), CreatorID: u.ID})
	requireCode(t, err, domainagg.CodeValidation)

	_, err = h.channelAgg.Create(ctx, domainagg.CreateChannelInput{Title: "campfire", CreatorID: uuid.New()})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestChannelInviteRecordsEventAndSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "invite", 3)
	ch := h.seedChannel(t, "camp", users[0])

	res, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{
		ChannelID: ch.ID,
		InviteeID: users[1].ID,
		ActorID:   users[0].ID,
	})
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if res.Event == nil || res.Event.Type != types.EventUserInvite {
		t.Fatalf("invite event: %+v", res.Event)
	}
	if res.Event.TargetUserID == nil || *res.Event.TargetUserID != users[1].ID || res.Event.ActorID != users[0].ID {
		t.Fatalf("invite event target/actor mismatch: %+v", res.Event)
	}
	if kinds := h.pub.Kinds(); len(kinds) != 1 || kinds[0] != domainagg.NoticeMemberJoined {
		t.Fatalf("notices: %v", kinds)
	}
	h.assertSettingsMatchMembers(t, ch.ID)

	// Any member may invite, not just the owner.
	if _, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{
		ChannelID: ch.ID,
		InviteeID: users[2].ID,
		ActorID:   users[1].ID,
	}); err != nil {
		t.Fatalf("Invite by member: %v", err)
	}

	members, err := h.members.ListByChannel(dbctx.New(ctx), ch.ID)
	if err != nil {
		t.Fatalf("ListByChannel: %v", err)
	}
	for i, m := range members {
		if m.JoinSeq != int64(i) {
			t.Fatalf("member %d join seq: want=%d got=%d", i, i, m.JoinSeq)
		}
	}
	if got := h.eventTypes(t, ch.ID); got[types.EventUserInvite] != 2 {
		t.Fatalf("invite events: %v", got)
	}
}

func TestChannelInviteRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "invite-reject", 3)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	_, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: users[1].ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeConflict)

	_, err = h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: users[0].ID, ActorID: users[2].ID})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: uuid.New(), ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeNotFound)

	_, err = h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: uuid.New(), InviteeID: users[2].ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeNotFound)

	if n, _ := h.events.CountByChannel(dbctx.New(ctx), ch.ID); n != 1 {
		t.Fatalf("rejected invites must not record events, got %d", n)
	}
	if len(h.pub.Notices()) != 0 {
		t.Fatalf("rejected invites must not publish, got %v", h.pub.Kinds())
	}
}

func TestChannelOwnerLeavingPassesOwnershipInJoinOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "succession", 3)
	ch := h.seedChannel(t, "camp", users[0], users[1], users[2])

	res, err := h.channelAgg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: ch.ID, ActorID: users[0].ID})
	if err != nil {
		t.Fatalf("Leave owner: %v", err)
	}
	if res.Destroyed || res.NewOwnerID == nil || *res.NewOwnerID != users[1].ID {
		t.Fatalf("expected ownership to pass to earliest joiner, got %+v", res)
	}
	if res.Event.Type != types.EventUserLeave || res.Event.ActorID != users[0].ID {
		t.Fatalf("leave event: %+v", res.Event)
	}
	if got := h.reload(t, ch.ID); got.OwnerID != users[1].ID {
		t.Fatalf("persisted owner: want=%v got=%v", users[1].ID, got.OwnerID)
	}

	res, err = h.channelAgg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: ch.ID, ActorID: users[1].ID})
	if err != nil {
		t.Fatalf("Leave second owner: %v", err)
	}
	if res.NewOwnerID == nil || *res.NewOwnerID != users[2].ID {
		t.Fatalf("expected ownership to pass to last member, got %+v", res)
	}
	h.assertSettingsMatchMembers(t, ch.ID)

	notices := h.pub.Notices()
	if len(notices) != 2 || notices[0].Kind != domainagg.NoticeMemberRemoved || notices[0].NewOwnerID == nil {
		t.Fatalf("unexpected notices: %+v", notices)
	}
}

func TestChannelLastLeaveDestroysChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "last-leave", 2)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	if _, err := h.messageAgg.Create(ctx, domainagg.CreateMessageInput{ChannelID: ch.ID, AuthorID: users[1].ID, Content: "bye"}); err != nil {
		t.Fatalf("Create message: %v", err)
	}
	if _, err := h.channelAgg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: ch.ID, ActorID: users[1].ID}); err != nil {
		t.Fatalf("Leave first: %v", err)
	}
	h.pub.Reset()

	res, err := h.channelAgg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: ch.ID, ActorID: users[0].ID})
	if err != nil {
		t.Fatalf("Leave last: %v", err)
	}
	if !res.Destroyed || res.Channel != nil || res.NewOwnerID != nil {
		t.Fatalf("expected destroyed result, got %+v", res)
	}
	if res.Event == nil || res.Event.Type != types.EventUserLeave {
		t.Fatalf("destroying leave still reports its event, got %+v", res.Event)
	}
	h.assertChannelGone(t, ch.ID)

	notices := h.pub.Notices()
	if len(notices) != 1 || !notices[0].Destroyed {
		t.Fatalf("expected one destroyed notice, got %+v", notices)
	}
}

func TestChannelKickRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "kick", 4)
	ch := h.seedChannel(t, "camp", users[0], users[1], users[2])
	owner := users[0].ID

	_, err := h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: users[2].ID, KickerID: &users[1].ID})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: owner, KickerID: &owner})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: users[3].ID, KickerID: &owner})
	requireCode(t, err, domainagg.CodeConflict)

	res, err := h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: users[2].ID, KickerID: &owner})
	if err != nil {
		t.Fatalf("Kick: %v", err)
	}
	if res.Event.Type != types.EventUserKick || res.Event.ActorID != owner || *res.Event.TargetUserID != users[2].ID {
		t.Fatalf("kick event: %+v", res.Event)
	}
	if res.Channel == nil || res.Channel.IsMember(users[2].ID) || res.NewOwnerID != nil {
		t.Fatalf("unexpected kick result: %+v", res)
	}

	_, err = h.channelAgg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: ch.ID, ActorID: users[2].ID})
	requireCode(t, err, domainagg.CodeForbidden)

	h.assertSettingsMatchMembers(t, ch.ID)
}

func TestChannelUpdateTitle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "title", 2)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	_, err := h.channelAgg.UpdateTitle(ctx, domainagg.UpdateTitleInput{ChannelID: ch.ID, Title: "lodge", ActorID: users[1].ID})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.channelAgg.UpdateTitle(ctx, domainagg.UpdateTitleInput{ChannelID: ch.ID, Title: "camp", ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeConflict)

	_, err = h.channelAgg.UpdateTitle(ctx, domainagg.UpdateTitleInput{ChannelID: ch.ID, Title: strings.Repeat("x", 65), ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeValidation)

	long := strings.Repeat("y", 64)
	res, err := h.channelAgg.UpdateTitle(ctx, domainagg.UpdateTitleInput{ChannelID: ch.ID, Title: long, ActorID: users[0].ID})
	if err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if res.Event.NewChannelTitle == nil || *res.Event.NewChannelTitle != long {
		t.Fatalf("title event: %+v", res.Event)
	}
	got := h.reload(t, ch.ID)
	if got.Title != long || got.Version != ch.Version+1 {
		t.Fatalf("persisted title/version: %q v%d", got.Title, got.Version)
	}
}

func TestChannelUpdateAvatarAlwaysRecordsEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "avatar", 2)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	for i := 0; i < 2; i++ {
		res, err := h.channelAgg.UpdateAvatar(ctx, domainagg.UpdateAvatarInput{ChannelID: ch.ID, ActorID: users[1].ID})
		if err != nil {
			t.Fatalf("UpdateAvatar %d: %v", i, err)
		}
		if !res.Channel.HasAvatar {
			t.Fatalf("expected has_avatar after update %d", i)
		}
	}
	got := h.reload(t, ch.ID)
	if got.Version != ch.Version+1 {
		t.Fatalf("avatar flag should flip once: version want=%d got=%d", ch.Version+1, got.Version)
	}
	if n := h.eventTypes(t, ch.ID)[types.EventChannelAvatar]; n != 2 {
		t.Fatalf("avatar events: want=2 got=%d", n)
	}
}

func TestChannelDeleteCascades(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "delete", 6)
	ch := h.seedChannel(t, "camp", users...)

	for i := 0; i < 10; i++ {
		author := users[i%len(users)]
		msg, err := h.messageAgg.Create(ctx, domainagg.CreateMessageInput{ChannelID: ch.ID, AuthorID: author.ID, Content: fmt.Sprintf("m%d", i)})
		if err != nil {
			t.Fatalf("Create message %d: %v", i, err)
		}
		if i%3 == 0 {
			if _, err := h.messageAgg.SetPinned(ctx, domainagg.SetPinnedInput{ChannelID: ch.ID, MessageID: msg.ID, ActorID: author.ID, Pinned: true}); err != nil {
				t.Fatalf("SetPinned %d: %v", i, err)
			}
		}
	}

	err := h.channelAgg.Delete(ctx, domainagg.DeleteChannelInput{ChannelID: ch.ID, ActorID: users[1].ID})
	requireCode(t, err, domainagg.CodeForbidden)

	if err := h.channelAgg.Delete(ctx, domainagg.DeleteChannelInput{ChannelID: ch.ID, ActorID: users[0].ID}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	h.assertChannelGone(t, ch.ID)

	dbc := dbctx.New(ctx)
	settings, err := h.settings.ListByChannel(dbc, ch.ID)
	if err != nil {
		t.Fatalf("ListByChannel settings: %v", err)
	}
	if len(settings) != 0 {
		t.Fatalf("settings after delete: want=0 got=%d", len(settings))
	}
	events, err := h.events.RangeForChannel(dbc, ch.ID, channelrepos.EventRange{})
	if err != nil {
		t.Fatalf("RangeForChannel: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events after delete: want=0 got=%d", len(events))
	}

	err = h.channelAgg.Delete(ctx, domainagg.DeleteChannelInput{ChannelID: ch.ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestChannelPromote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "promote", 3)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	_, err := h.channelAgg.Promote(ctx, domainagg.PromoteOwnerInput{ChannelID: ch.ID, TargetID: users[0].ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.channelAgg.Promote(ctx, domainagg.PromoteOwnerInput{ChannelID: ch.ID, TargetID: users[2].ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeConflict)

	got, err := h.channelAgg.Promote(ctx, domainagg.PromoteOwnerInput{ChannelID: ch.ID, TargetID: users[1].ID, ActorID: users[0].ID})
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if got.OwnerID != users[1].ID {
		t.Fatalf("owner: want=%v got=%v", users[1].ID, got.OwnerID)
	}
	if kinds := h.pub.Kinds(); len(kinds) != 1 || kinds[0] != domainagg.NoticeChannelOwnerChanged {
		t.Fatalf("notices: %v", kinds)
	}

	// The former owner can no longer kick.
	_, err = h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: users[1].ID, KickerID: &users[0].ID})
	requireCode(t, err, domainagg.CodeForbidden)
}

func TestChannelUpdateSettings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "settings", 3)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	nick := channel.ParseOverride("sparky")
	hidden := true
	res, err := h.channelAgg.UpdateSettings(ctx, domainagg.UpdateSettingsInput{
		ChannelID:   ch.ID,
		UserID:      users[1].ID,
		DisplayName: &nick,
		Invisible:   &hidden,
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if v, ok := res.Settings.DisplayName.Get(); !ok || v != "sparky" {
		t.Fatalf("display name: want=sparky got=%q set=%v", v, ok)
	}
	if !res.Settings.Invisible || !res.VisibilityChanged {
		t.Fatalf("invisible flip: settings=%v changed=%v", res.Settings.Invisible, res.VisibilityChanged)
	}
	if kinds := h.pub.Kinds(); len(kinds) != 1 || kinds[0] != domainagg.NoticeMemberSettingsChanged {
		t.Fatalf("notices: %v", kinds)
	}

	res, err = h.channelAgg.UpdateSettings(ctx, domainagg.UpdateSettingsInput{ChannelID: ch.ID, UserID: users[1].ID, Invisible: &hidden})
	if err != nil {
		t.Fatalf("UpdateSettings again: %v", err)
	}
	if res.VisibilityChanged {
		t.Fatalf("unchanged flag should not report a visibility change")
	}

	_, err = h.channelAgg.UpdateSettings(ctx, domainagg.UpdateSettingsInput{ChannelID: ch.ID, UserID: users[2].ID, Invisible: &hidden})
	requireCode(t, err, domainagg.CodeForbidden)
	_, err = h.channelAgg.UpdateSettings(ctx, domainagg.UpdateSettingsInput{ChannelID: uuid.New(), UserID: users[1].ID, Invisible: &hidden})
	requireCode(t, err, domainagg.CodeNotFound)
	h.assertSettingsMatchMembers(t, ch.ID)

	// A member whose row went missing gets it back from their defaults.
	if _, err := h.settings.Delete(dbctx.New(ctx), users[0].ID, ch.ID); err != nil {
		t.Fatalf("Delete settings: %v", err)
	}
	res, err = h.channelAgg.UpdateSettings(ctx, domainagg.UpdateSettingsInput{ChannelID: ch.ID, UserID: users[0].ID})
	if err != nil {
		t.Fatalf("UpdateSettings recreate: %v", err)
	}
	if res.Settings.DisplayName.IsSet() {
		t.Fatalf("recreated row should carry no overrides")
	}
	h.assertSettingsMatchMembers(t, ch.ID)
}

func TestChannelSettingsUpdatesRaceKicks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "settings-race", 6)
	ch := h.seedChannel(t, "camp", users...)

	var wg sync.WaitGroup
	for _, u := range users[1:] {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: id, KickerID: &users[0].ID})
		}(u.ID)
		go func(id uuid.UUID) {
			defer wg.Done()
			hidden := true
			_, err := h.channelAgg.UpdateSettings(ctx, domainagg.UpdateSettingsInput{ChannelID: ch.ID, UserID: id, Invisible: &hidden})
			if err != nil && !domainagg.IsCode(err, domainagg.CodeForbidden) {
				t.Errorf("UpdateSettings: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	got := h.reload(t, ch.ID)
	if len(got.MemberIDs) != 1 {
		t.Fatalf("members after kicks: want=1 got=%d", len(got.MemberIDs))
	}
	h.assertSettingsMatchMembers(t, ch.ID)
}

func TestChannelConcurrentInvitesGetDistinctJoinSeqs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.seedUsers(t, "concurrent-owner", 1)[0]
	invitees := h.seedUsers(t, "concurrent", 8)
	ch := h.seedChannel(t, "camp", owner)

	var wg sync.WaitGroup
	errs := make(chan error, len(invitees))
	for _, u := range invitees {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: id, ActorID: owner.ID})
			errs <- err
		}(u.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent invite: %v", err)
		}
	}

	members, err := h.members.ListByChannel(dbctx.New(ctx), ch.ID)
	if err != nil {
		t.Fatalf("ListByChannel: %v", err)
	}
	if len(members) != len(invitees)+1 {
		t.Fatalf("members: want=%d got=%d", len(invitees)+1, len(members))
	}
	seen := map[int64]bool{}
	for _, m := range members {
		if seen[m.JoinSeq] {
			t.Fatalf("duplicate join seq %d", m.JoinSeq)
		}
		seen[m.JoinSeq] = true
	}
	h.assertSettingsMatchMembers(t, ch.ID)
	if n := h.eventTypes(t, ch.ID)[types.EventUserInvite]; n != len(invitees) {
		t.Fatalf("invite events: want=%d got=%d", len(invitees), n)
	}
}

func TestChannelConcurrentKicksAndLeavesKeepOneOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "churn", 6)
	ch := h.seedChannel(t, "camp", users...)

	var wg sync.WaitGroup
	for _, u := range users[1:] {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			// Either the owner kicks first or the member leaves first; both end the membership.
			_, _ = h.channelAgg.Kick(ctx, domainagg.KickMemberInput{ChannelID: ch.ID, TargetID: id, KickerID: &users[0].ID})
			_, _ = h.channelAgg.Leave(ctx, domainagg.LeaveChannelInput{ChannelID: ch.ID, ActorID: id})
		}(u.ID)
	}
	wg.Wait()

	got := h.reload(t, ch.ID)
	if len(got.MemberIDs) != 1 || got.MemberIDs[0] != users[0].ID || got.OwnerID != users[0].ID {
		t.Fatalf("unexpected survivors: owner=%v members=%v", got.OwnerID, got.MemberIDs)
	}
	h.assertSettingsMatchMembers(t, ch.ID)
	removals := h.eventTypes(t, ch.ID)
	if removals[types.EventUserKick]+removals[types.EventUserLeave] != len(users)-1 {
		t.Fatalf("each departure records exactly one event: %v", removals)
	}
}

func TestChannelWriteRetriesAfterRollback(t *testing.T) {
	runner := &aggtest.InjectedTxRunner{
		FailCommit: aggregates.RetryableError("injected lock timeout"),
		FailTimes:  2,
	}
	h := newHarnessWithRunner(t, runner)
	runner.Inner = aggregates.NewGormTxRunner(h.db)
	ctx := context.Background()
	users := h.seedUsers(t, "retry", 2)

	owner := users[0]
	ch := repoSeedChannel(t, h, "camp", owner.ID)

	res, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: users[1].ID, ActorID: owner.ID})
	if err != nil {
		t.Fatalf("Invite after injected failures: %v", err)
	}
	if res.Channel.NextJoinSeq != ch.NextJoinSeq+1 {
		t.Fatalf("next join seq: want=%d got=%d", ch.NextJoinSeq+1, res.Channel.NextJoinSeq)
	}
	if b, c, r := runner.Counts(); b != 3 || c != 1 || r != 2 {
		t.Fatalf("runner counters begin=%d commit=%d rollback=%d", b, c, r)
	}
	if h.hooks.RetryCount() != 2 {
		t.Fatalf("retry hooks: want=2 got=%d", h.hooks.RetryCount())
	}
	// Rolled back attempts leave no trace.
	if n, _ := h.events.CountByChannel(dbctx.New(ctx), ch.ID); n != 1 {
		t.Fatalf("events after retries: want=1 got=%d", n)
	}
	h.assertSettingsMatchMembers(t, ch.ID)
	if len(h.pub.Notices()) != 1 {
		t.Fatalf("notices after retries: want=1 got=%d", len(h.pub.Notices()))
	}
}

func TestChannelWriteGivesUpAfterMaxRetries(t *testing.T) {
	runner := &aggtest.InjectedTxRunner{FailCommit: aggregates.RetryableError("injected lock timeout")}
	h := newHarnessWithRunner(t, runner)
	runner.Inner = aggregates.NewGormTxRunner(h.db)
	ctx := context.Background()
	users := h.seedUsers(t, "retry-exhaust", 2)
	ch := repoSeedChannel(t, h, "camp", users[0].ID)

	_, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: users[1].ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeRetryable)
	if b, _, _ := runner.Counts(); b != aggregates.DefaultMaxRetries+1 {
		t.Fatalf("attempts: want=%d got=%d", aggregates.DefaultMaxRetries+1, b)
	}
	if got := h.reload(t, ch.ID); len(got.MemberIDs) != 1 {
		t.Fatalf("failed invite must not persist members: %v", got.MemberIDs)
	}
	if len(h.pub.Notices()) != 0 {
		t.Fatalf("failed writes must not publish")
	}
}

func TestChannelWriteDoesNotRetryConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	users := h.seedUsers(t, "no-retry", 2)
	ch := h.seedChannel(t, "camp", users[0], users[1])

	_, err := h.channelAgg.Invite(ctx, domainagg.InviteMemberInput{ChannelID: ch.ID, InviteeID: users[1].ID, ActorID: users[0].ID})
	requireCode(t, err, domainagg.CodeConflict)
	if h.hooks.RetryCount() != 0 {
		t.Fatalf("conflicts must not retry, got %d", h.hooks.RetryCount())
	}
	if errors.Is(err, aggregates.ErrRetryable) {
		t.Fatalf("conflict must not be tagged retryable: %v", err)
	}
}

// repoSeedChannel inserts a channel directly, bypassing the aggregate runner.
func repoSeedChannel(t *testing.T, h *harness, title string, members ...uuid.UUID) *types.Channel {
	t.Helper()
	return repotest.SeedChannel(t, context.Background(), h.db, title, members...)
}
