package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/realtime"
)

func TestMessageLifecycle(t *testing.T) {
	h := newSvcHarness(t)
	users := h.seedUsers(t, "msg", 3)
	ch := h.seedChannel(t, "campfire", users[0], users[1])

	m, err := h.messageSvc.Create(as(users[1]), ch.ID, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, h.framesFor(realtime.SSEEventMessageCreated))

	_, err = h.messageSvc.Create(as(users[2]), ch.ID, "let me in")
	requireCode(t, err, domainagg.CodeForbidden)

	_, err = h.messageSvc.Edit(as(users[0]), ch.ID, m.ID, "hijacked")
	requireCode(t, err, domainagg.CodeForbidden)

	edited, err := h.messageSvc.Edit(as(users[1]), ch.ID, m.ID, "hello there")
	require.NoError(t, err)
	require.Equal(t, "hello there", edited.Content)

	res, err := h.messageSvc.SetPinned(as(users[0]), ch.ID, m.ID, true)
	require.NoError(t, err)
	require.True(t, res.Message.Pinned)
	require.NotNil(t, res.Event)

	pins, err := h.messageSvc.Pins(as(users[1]), ch.ID)
	require.NoError(t, err)
	require.Len(t, pins, 1)

	require.NoError(t, h.messageSvc.Delete(as(users[0]), ch.ID, m.ID))
	deleted := h.framesFor(realtime.SSEEventMessageDeleted)
	require.Len(t, deleted, 1)

	page, err := h.messageSvc.List(as(users[1]), ch.ID, pagination.Request{})
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func TestMessageFeedInterleavesEvents(t *testing.T) {
	h := newSvcHarness(t)
	users := h.seedUsers(t, "feed", 3)
	ch := h.seedChannel(t, "campfire", users[0], users[1])

	for _, body := range []string{"one", "two"} {
		_, err := h.messageSvc.Create(as(users[0]), ch.ID, body)
		require.NoError(t, err)
	}
	_, err := h.channelSvc.Invite(as(users[0]), ch.ID, users[2].Username)
	require.NoError(t, err)
	_, err = h.messageSvc.Create(as(users[2]), ch.ID, "three")
	require.NoError(t, err)

	feed, err := h.messageSvc.Feed(as(users[0]), ch.ID, pagination.Request{})
	require.NoError(t, err)
	require.Len(t, feed.Messages, 3)
	require.Nil(t, feed.NextCursor)
	kinds := map[types.EventType]int{}
	for _, ev := range feed.Events {
		kinds[ev.Type]++
	}
	require.Equal(t, 2, kinds[types.EventUserInvite])

	page, err := h.messageSvc.Feed(as(users[0]), ch.ID, pagination.Request{Take: 1})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.NotNil(t, page.NextCursor)
	for _, ev := range page.Events {
		if !ev.Timestamp.After(page.Messages[0].Timestamp) {
			t.Fatalf("event %s falls outside the page window", ev.ID)
		}
	}
}

func TestMessageEventsRange(t *testing.T) {
	h := newSvcHarness(t)
	users := h.seedUsers(t, "events", 3)
	ch := h.seedChannel(t, "campfire", users...)

	all, err := h.messageSvc.Events(as(users[0]), ch.ID, repos.EventRange{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	now := time.Now()
	empty, err := h.messageSvc.Events(as(users[0]), ch.ID, repos.EventRange{Before: &now, After: &now})
	require.NoError(t, err)
	require.Empty(t, empty)

	one, err := h.messageSvc.Events(as(users[0]), ch.ID, repos.EventRange{Take: 1})
	require.NoError(t, err)
	require.Len(t, one, 1)
}
