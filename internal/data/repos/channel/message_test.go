package channel

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

func seedMessages(t *testing.T, repo MessageRepo, dbc dbctx.Context, channelID, authorID uuid.UUID, n int, base time.Time) []*types.Message {
	t.Helper()
	out := make([]*types.Message, 0, n)
	for i := 0; i < n; i++ {
		m := &types.Message{
			ID:        uuid.New(),
			ChannelID: channelID,
			AuthorID:  authorID,
			Content:   "hello",
			// Runs of three messages share a timestamp.
			Timestamp: base.Add(time.Duration(i/3) * time.Millisecond),
		}
		if err := repo.Create(dbc, m); err != nil {
			t.Fatalf("Create message: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestMessageRepoPagesAreCompleteAndOrdered(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "pager-"+uuid.NewString()[:8])
	c := testutil.SeedChannel(t, ctx, db, "camp", u.ID)
	repo := NewMessageRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	base := time.Now().UTC().Truncate(time.Microsecond)
	msgs := seedMessages(t, repo, dbc, c.ID, u.ID, 17, base)

	for _, take := range []int{1, 2, 3, 4, 5, 17, 30} {
		seen := map[uuid.UUID]bool{}
		var prev *pagination.Cursor
		req := pagination.Request{Take: take}
		for guard := 0; ; guard++ {
			if guard > len(msgs)+1 {
				t.Fatalf("take=%d: pagination did not terminate", take)
			}
			page, err := repo.ListPage(dbc, c.ID, req)
			if err != nil {
				t.Fatalf("ListPage: %v", err)
			}
			if len(page.Items) > take {
				t.Fatalf("take=%d: page size %d", take, len(page.Items))
			}
			for _, m := range page.Items {
				if seen[m.ID] {
					t.Fatalf("take=%d: duplicate %v", take, m.ID)
				}
				seen[m.ID] = true
				cur := pagination.Cursor{Time: m.Timestamp, ID: m.ID}
				if prev != nil && !before(cur, *prev) {
					t.Fatalf("take=%d: order violated", take)
				}
				prev = &cur
			}
			if page.Next == nil {
				break
			}
			req.Before = page.Next
		}
		if len(seen) != len(msgs) {
			t.Fatalf("take=%d: want=%d distinct got=%d", take, len(msgs), len(seen))
		}
	}
}

func TestMessageRepoTimeOnlyCursorIsInclusive(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "inclusive-"+uuid.NewString()[:8])
	c := testutil.SeedChannel(t, ctx, db, "camp", u.ID)
	repo := NewMessageRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	base := time.Now().UTC().Truncate(time.Microsecond)
	seedMessages(t, repo, dbc, c.ID, u.ID, 6, base)

	cutoff := base
	page, err := repo.ListPage(dbc, c.ID, pagination.Request{Take: 10, Before: &pagination.Cursor{Time: cutoff}})
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("inclusive bound: want=3 got=%d", len(page.Items))
	}
	for _, m := range page.Items {
		if m.Timestamp.After(cutoff) {
			t.Fatalf("row newer than cursor: %v", m.Timestamp)
		}
	}
}

func TestMessageRepoPinnedQueries(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "pins-"+uuid.NewString()[:8])
	c := testutil.SeedChannel(t, ctx, db, "camp", u.ID)
	repo := NewMessageRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	msgs := seedMessages(t, repo, dbc, c.ID, u.ID, 4, time.Now().UTC().Truncate(time.Microsecond))
	for _, m := range msgs[:2] {
		if err := repo.UpdateFields(dbc, m.ID, map[string]interface{}{"pinned": true}); err != nil {
			t.Fatalf("UpdateFields: %v", err)
		}
	}
	n, err := repo.CountPinned(dbc, c.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountPinned: want=2 got=%d err=%v", n, err)
	}
	pinned, err := repo.ListPinned(dbc, c.ID)
	if err != nil || len(pinned) != 2 {
		t.Fatalf("ListPinned: want=2 got=%d err=%v", len(pinned), err)
	}
	if _, err := repo.GetByID(dbc, uuid.New(), msgs[0].ID); err == nil {
		t.Fatalf("GetByID with foreign channel: expected not found")
	}
}
