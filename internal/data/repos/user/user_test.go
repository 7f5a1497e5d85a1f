package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background())
	name := "userrepo-" + uuid.NewString()[:8]

	created, err := repo.Create(dbc, []*types.User{
		{
			ID:               uuid.New(),
			Username:         name,
			PasswordHash:     "pw",
			DefaultNameColor: "#ffffff",
			JoinedAt:         time.Now().UTC(),
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("Create: expected 1 user, got %d", len(created))
	}

	got, err := repo.GetByUsername(dbc, "  "+name+" ")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != created[0].ID {
		t.Fatalf("GetByUsername: want=%v got=%v", created[0].ID, got.ID)
	}

	exists, err := repo.UsernameExists(dbc, name)
	if err != nil || !exists {
		t.Fatalf("UsernameExists: want=true got=%v err=%v", exists, err)
	}
	exists, err = repo.UsernameExists(dbc, "does-not-exist-"+uuid.NewString()[:8])
	if err != nil || exists {
		t.Fatalf("UsernameExists missing: want=false got=%v err=%v", exists, err)
	}

	if err := repo.UpdateFields(dbc, got.ID, map[string]interface{}{"status": "on a hike", "default_invisible": true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err = repo.GetByID(dbc, got.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != "on a hike" || !got.DefaultInvisible {
		t.Fatalf("UpdateFields: unexpected %+v", got)
	}

	if _, err := repo.GetByID(dbc, uuid.New()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByID missing: want ErrRecordNotFound got %v", err)
	}
}
