package channel

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

func TestChannelRepoHydratesMembersInJoinOrder(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	users := testutil.SeedUsers(t, ctx, db, "hydrate", 3)
	// Join order deliberately differs from id order.
	c := testutil.SeedChannel(t, ctx, db, "camp", users[2].ID, users[0].ID, users[1].ID)

	repo := NewChannelRepo(db, testutil.Logger(t))
	got, err := repo.GetByID(dbctx.New(ctx), c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	want := []uuid.UUID{users[2].ID, users[0].ID, users[1].ID}
	if len(got.MemberIDs) != len(want) {
		t.Fatalf("members: want=%v got=%v", want, got.MemberIDs)
	}
	for i := range want {
		if got.MemberIDs[i] != want[i] {
			t.Fatalf("member[%d]: want=%v got=%v", i, want[i], got.MemberIDs[i])
		}
	}
	if got.OwnerID != users[2].ID {
		t.Fatalf("owner: want=%v got=%v", users[2].ID, got.OwnerID)
	}
}

func TestChannelRepoLockByIDRequiresTx(t *testing.T) {
	db := testutil.DB(t)
	repo := NewChannelRepo(db, testutil.Logger(t))
	if _, err := repo.LockByID(dbctx.New(context.Background()), uuid.New()); err == nil {
		t.Fatalf("LockByID without tx: expected error")
	}
}

func TestChannelRepoBumpLastActivityIsMonotonic(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "bump-"+uuid.NewString()[:8])
	c := testutil.SeedChannel(t, ctx, db, "camp", u.ID)
	repo := NewChannelRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	later := c.LastActivity.Add(time.Minute)
	if err := repo.BumpLastActivity(dbc, c.ID, later); err != nil {
		t.Fatalf("BumpLastActivity: %v", err)
	}
	if err := repo.BumpLastActivity(dbc, c.ID, c.LastActivity.Add(-time.Hour)); err != nil {
		t.Fatalf("BumpLastActivity older: %v", err)
	}
	got, err := repo.GetByID(dbc, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.LastActivity.Equal(later) {
		t.Fatalf("last_activity: want=%v got=%v", later, got.LastActivity)
	}
}

func TestChannelRepoListForUserPagesByActivity(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	users := testutil.SeedUsers(t, ctx, db, "list", 2)
	me, other := users[0].ID, users[1].ID
	repo := NewChannelRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	base := time.Now().UTC().Truncate(time.Microsecond)
	mine := map[uuid.UUID]bool{}
	for i := 0; i < 7; i++ {
		c := testutil.SeedChannel(t, ctx, db, "mine", me, other)
		// Pairs share a timestamp to exercise the id tie-break.
		at := base.Add(-time.Duration(i/2) * time.Second)
		if err := db.Model(c).Update("last_activity", at).Error; err != nil {
			t.Fatalf("set last_activity: %v", err)
		}
		mine[c.ID] = true
	}
	testutil.SeedChannel(t, ctx, db, "theirs", other)

	seen := map[uuid.UUID]bool{}
	var prev *pagination.Cursor
	req := pagination.Request{Take: 3}
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatalf("pagination did not terminate")
		}
		page, err := repo.ListForUser(dbc, me, req)
		if err != nil {
			t.Fatalf("ListForUser: %v", err)
		}
		for _, c := range page.Items {
			if seen[c.ID] {
				t.Fatalf("duplicate channel %v", c.ID)
			}
			if !mine[c.ID] {
				t.Fatalf("foreign channel %v listed", c.ID)
			}
			if len(c.MemberIDs) != 2 {
				t.Fatalf("members not hydrated for %v: %v", c.ID, c.MemberIDs)
			}
			cur := pagination.Cursor{Time: c.LastActivity, ID: c.ID}
			if prev != nil && !before(cur, *prev) {
				t.Fatalf("order violated: %v after %v", cur, *prev)
			}
			prev = &cur
			seen[c.ID] = true
		}
		if page.Next == nil {
			break
		}
		req.Before = page.Next
	}
	if len(seen) != len(mine) {
		t.Fatalf("listed: want=%d got=%d", len(mine), len(seen))
	}
}

func TestChannelRepoListShared(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	users := testutil.SeedUsers(t, ctx, db, "shared", 3)
	a, b, c := users[0].ID, users[1].ID, users[2].ID
	both := testutil.SeedChannel(t, ctx, db, "both", a, b)
	testutil.SeedChannel(t, ctx, db, "only-a", a, c)

	got, err := NewChannelRepo(db, testutil.Logger(t)).ListShared(dbctx.New(ctx), a, b)
	if err != nil {
		t.Fatalf("ListShared: %v", err)
	}
	if len(got) != 1 || got[0].ID != both.ID {
		t.Fatalf("ListShared: want=[%v] got=%+v", both.ID, got)
	}
}

// before reports whether a sorts strictly after b in (time desc, id desc) order.
func before(a, b pagination.Cursor) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.ID.String() < b.ID.String()
}
