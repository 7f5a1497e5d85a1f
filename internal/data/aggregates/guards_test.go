package aggregates

import (
	"context"
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := MapError("op", RequireCASSuccess(false, "stale"))
	if !domainagg.IsCode(err, domainagg.CodeRetryable) {
		t.Fatalf("expected retryable code, got %q", domainagg.CodeOf(err))
	}
}

func TestCASGuardUpdateByVersion(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	u := repotest.SeedUser(t, ctx, db, "cas-"+uuid.NewString()[:8])
	c := repotest.SeedChannel(t, ctx, db, "camp", u.ID)
	g := NewCASGuard(db)
	dbc := dbctx.New(ctx)

	ok, err := g.UpdateByVersion(dbc, "channel", c.ID, c.Version, map[string]any{"title": "renamed"})
	if err != nil || !ok {
		t.Fatalf("UpdateByVersion: ok=%v err=%v", ok, err)
	}
	ok, err = g.UpdateByVersion(dbc, "channel", c.ID, c.Version, map[string]any{"title": "stale"})
	if err != nil {
		t.Fatalf("UpdateByVersion stale: %v", err)
	}
	if ok {
		t.Fatalf("UpdateByVersion stale: expected miss")
	}
	var version int64
	if err := db.Table("channel").Select("version").Where("id = ?", c.ID).Scan(&version).Error; err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != c.Version+1 {
		t.Fatalf("version: want=%d got=%d", c.Version+1, version)
	}
}
