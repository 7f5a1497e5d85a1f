package channel

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	domainch "github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

func TestSettingsRepoGetOrCreateConverges(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "settings-"+uuid.NewString()[:8])
	channelID := uuid.New()
	repo := NewSettingsRepo(db, testutil.Logger(t))

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := repo.GetOrCreate(dbctx.New(ctx), u.ID, channelID, true)
			errs[i] = err
			if s != nil {
				ids[i] = s.ID
			}
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("GetOrCreate[%d]: %v", i, err)
		}
		if ids[i] != ids[0] {
			t.Fatalf("GetOrCreate[%d]: want id=%v got=%v", i, ids[0], ids[i])
		}
	}
	n, err := repo.CountByChannel(dbctx.New(ctx), channelID)
	if err != nil || n != 1 {
		t.Fatalf("CountByChannel: want=1 got=%d err=%v", n, err)
	}
	s, err := repo.Get(dbctx.New(ctx), u.ID, channelID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !s.Invisible || s.DisplayName.IsSet() || s.NameColor.IsSet() {
		t.Fatalf("defaults: unexpected %+v", s)
	}
}

func TestSettingsRepoOverrideRoundTrip(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "override-"+uuid.NewString()[:8])
	c := testutil.SeedChannel(t, ctx, db, "camp", u.ID)
	repo := NewSettingsRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	if err := repo.Update(dbc, u.ID, c.ID, map[string]interface{}{
		"display_name": domainch.Custom("Ada"),
		"name_color":   domainch.Custom("#abc"),
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	s, err := repo.Get(dbc, u.ID, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := s.DisplayName.Or(""); got != "Ada" {
		t.Fatalf("display_name: want=Ada got=%q", got)
	}

	if err := repo.Update(dbc, u.ID, c.ID, map[string]interface{}{"display_name": domainch.Unset()}); err != nil {
		t.Fatalf("Update clear: %v", err)
	}
	s, err = repo.Get(dbc, u.ID, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.DisplayName.IsSet() {
		t.Fatalf("display_name should be unset, got %v", s.DisplayName)
	}
	if got := s.NameColor.Or(""); got != "#abc" {
		t.Fatalf("name_color untouched: want=#abc got=%q", got)
	}
}

func TestSettingsRepoListForUser(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, ctx, db, "listfor-"+uuid.NewString()[:8])
	repo := NewSettingsRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx)

	a, b, missing := uuid.New(), uuid.New(), uuid.New()
	for _, ch := range []uuid.UUID{a, b} {
		if _, err := repo.GetOrCreate(dbc, u.ID, ch, false); err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
	}
	rows, err := repo.ListForUser(dbc, u.ID, []uuid.UUID{a, missing})
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(rows) != 1 || rows[0].ChannelID != a {
		t.Fatalf("ListForUser: want only channel %v got %+v", a, rows)
	}
	if rows, _ := repo.ListForUser(dbc, u.ID, nil); len(rows) != 0 {
		t.Fatalf("ListForUser(nil): want empty got %d", len(rows))
	}
}
