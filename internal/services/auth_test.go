package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	repotest "github.com/yungbote/bonfires-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/platform/apierr"
	"github.com/yungbote/bonfires-backend/internal/platform/ctxutil"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()
	name := "Ember-" + uuid.NewString()[:8]

	u, err := h.auth.Register(ctx, name, "correct-horse")
	require.NoError(t, err)
	if u.Username != strings.ToLower(name) {
		t.Fatalf("username: want=%s got=%s", strings.ToLower(name), u.Username)
	}
	if u.PasswordHash == "correct-horse" {
		t.Fatalf("password stored in clear")
	}

	_, err = h.auth.Register(ctx, name, "another-password")
	requireCode(t, err, domainagg.CodeConflict)

	tok, got, err := h.auth.Login(ctx, u.Username, "correct-horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	authed, err := h.auth.SetContextFromToken(ctx, tok)
	require.NoError(t, err)
	if ctxutil.UserID(authed) != u.ID {
		t.Fatalf("token subject: want=%s got=%s", u.ID, ctxutil.UserID(authed))
	}
}

func TestAuthRegisterValidation(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	_, err := h.auth.Register(ctx, "x", "long-enough")
	requireCode(t, err, domainagg.CodeValidation)

	_, err = h.auth.Register(ctx, "no spaces allowed", "long-enough")
	requireCode(t, err, domainagg.CodeValidation)

	_, err = h.auth.Register(ctx, "short-pw-"+uuid.NewString()[:4], "short")
	requireCode(t, err, domainagg.CodeValidation)
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()
	name := "login-" + uuid.NewString()[:8]
	_, err := h.auth.Register(ctx, name, "correct-horse")
	require.NoError(t, err)

	for _, tc := range []struct{ user, pass string }{
		{name, "wrong-password"},
		{"nobody-" + uuid.NewString()[:8], "correct-horse"},
	} {
		_, _, err := h.auth.Login(ctx, tc.user, tc.pass)
		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
			t.Fatalf("login %s: want 401 got %v", tc.user, err)
		}
	}
}

func TestAuthRejectsForeignTokens(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()
	name := "foreign-" + uuid.NewString()[:8]
	_, err := h.auth.Register(ctx, name, "correct-horse")
	require.NoError(t, err)
	tok, _, err := h.auth.Login(ctx, name, "correct-horse")
	require.NoError(t, err)

	_, err = h.auth.SetContextFromToken(ctx, "not-a-token")
	require.Error(t, err)

	other := NewAuthService(h.db, repotest.Logger(t), h.users, "other-secret", 0)
	_, err = other.SetContextFromToken(ctx, tok)
	require.Error(t, err)

	out, err := other.SetContextFromToken(ctx, "")
	require.NoError(t, err)
	if ctxutil.UserID(out) != uuid.Nil {
		t.Fatalf("empty token should stay anonymous")
	}
}

func TestServicesRequireCaller(t *testing.T) {
	h := newSvcHarness(t)
	ctx := context.Background()

	_, err := h.channelSvc.Create(ctx, "campfire")
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("anonymous create: want 401 got %v", err)
	}
	_, err = h.userSvc.GetMe(ctx)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("anonymous me: want 401 got %v", err)
	}
}
