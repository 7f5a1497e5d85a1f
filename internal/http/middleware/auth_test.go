package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

type stubAuth struct {
	tokens map[string]uuid.UUID
}

func (s stubAuth) Register(context.Context, string, string) (*types.User, error) { return nil, nil }

func (s stubAuth) Login(context.Context, string, string) (string, *types.User, error) {
	return "", nil, nil
}

func (s stubAuth) SetContextFromToken(ctx context.Context, tok string) (context.Context, error) {
	uid, ok := s.tokens[tok]
	if !ok {
		return ctx, errors.New("invalid token")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{TokenString: tok, UserID: uid}), nil
}

func (s stubAuth) GetAccessTTL() time.Duration { return time.Hour }

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	require.NoError(t, err)

	uid := uuid.New()
	am := NewAuthMiddleware(log, stubAuth{tokens: map[string]uuid.UUID{"good": uid}})
	r := gin.New()
	r.GET("/api/me", am.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, ctxutil.UserID(c.Request.Context()).String())
	})

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer good", "", http.StatusOK},
		{"query token", "", "?token=good", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/me"+tc.query, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: want=%d got=%d", tc.name, tc.status, rec.Code)
		}
		if tc.status == http.StatusOK && rec.Body.String() != uid.String() {
			t.Fatalf("%s: user id not attached, got %q", tc.name, rec.Body.String())
		}
	}
}
