package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("channel.invite", "success", 10*time.Millisecond)
	h.IncConflict("channel.invite")
	h.IncRetry("channel.invite")

	if len(h.Operations) != 1 {
		t.Fatalf("expected 1 op event, got %d", len(h.Operations))
	}
	if h.Operations[0].Name != "channel.invite" || h.Operations[0].Status != "success" {
		t.Fatalf("unexpected op event: %+v", h.Operations[0])
	}
	if len(h.Conflicts) != 1 || h.Conflicts[0] != "channel.invite" {
		t.Fatalf("unexpected conflicts: %+v", h.Conflicts)
	}
	if h.RetryCount() != 1 {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}

func TestPublisherRecorder_KeepsOrder(t *testing.T) {
	p := &PublisherRecorder{}
	id := uuid.New()
	p.PublishChannelNotice(context.Background(), domainagg.ChannelNotice{Kind: domainagg.NoticeMemberJoined, ChannelID: id})
	p.PublishChannelNotice(context.Background(), domainagg.ChannelNotice{Kind: domainagg.NoticeMemberRemoved, ChannelID: id})

	kinds := p.Kinds()
	if len(kinds) != 2 || kinds[0] != domainagg.NoticeMemberJoined || kinds[1] != domainagg.NoticeMemberRemoved {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	p.Reset()
	if len(p.Notices()) != 0 {
		t.Fatalf("expected reset to clear notices")
	}
}
