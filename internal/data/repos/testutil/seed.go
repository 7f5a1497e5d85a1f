package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/bonfires-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:               uuid.New(),
		Username:         username,
		PasswordHash:     "pw",
		DefaultNameColor: "#ffffff",
		JoinedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedUsers creates n users with unique usernames derived from prefix.
func SeedUsers(tb testing.TB, ctx context.Context, tx *gorm.DB, prefix string, n int) []*types.User {
	tb.Helper()
	out := make([]*types.User, 0, n)
	suffix := uuid.NewString()[:8]
	for i := 0; i < n; i++ {
		out = append(out, SeedUser(tb, ctx, tx, fmt.Sprintf("%s-%d-%s", prefix, i, suffix)))
	}
	return out
}

// SeedChannel inserts a channel whose members join in the given order. The
// first user owns it. Settings rows are created for every member.
func SeedChannel(tb testing.TB, ctx context.Context, tx *gorm.DB, title string, members ...uuid.UUID) *types.Channel {
	tb.Helper()
	if len(members) == 0 {
		tb.Fatalf("seed channel: at least one member required")
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &types.Channel{
		ID:           uuid.New(),
		Title:        title,
		OwnerID:      members[0],
		LastActivity: now,
		NextJoinSeq:  int64(len(members)),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	db := tx.WithContext(ctx)
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed channel: %v", err)
	}
	for i, uid := range members {
		if err := db.Create(&types.ChannelMember{ChannelID: c.ID, UserID: uid, JoinSeq: int64(i), JoinedAt: now}).Error; err != nil {
			tb.Fatalf("seed member: %v", err)
		}
		if err := db.Create(types.NewChannelSettings(uid, c.ID, false)).Error; err != nil {
			tb.Fatalf("seed settings: %v", err)
		}
	}
	c.MemberIDs = append([]uuid.UUID(nil), members...)
	return c
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
