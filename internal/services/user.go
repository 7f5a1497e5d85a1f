package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/domain/user"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

// UpdateUserInput patches the caller's profile. Nil fields are left alone.
type UpdateUserInput struct {
	Status           *string
	DefaultNameColor *string
	DefaultInvisible *bool
}

type UserService interface {
	GetMe(ctx context.Context) (*types.User, error)
	UpdateMe(ctx context.Context, in UpdateUserInput) (*types.User, error)
	// Lookup resolves a user by id or by username.
	Lookup(ctx context.Context, ref string) (*types.User, error)
}

type userService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(log *logger.Logger, userRepo repos.UserRepo) UserService {
	return &userService{
		log:      log.With("service", "UserService"),
		userRepo: userRepo,
	}
}

func (us *userService) GetMe(ctx context.Context) (*types.User, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	u, err := us.userRepo.GetByID(dbctx.New(ctx), uid)
	if err != nil {
		return nil, lookupErr("user.me", "user", err)
	}
	return u, nil
}

func (us *userService) UpdateMe(ctx context.Context, in UpdateUserInput) (*types.User, error) {
	const op = "user.update"
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Status != nil {
		status := strings.TrimSpace(*in.Status)
		if utf8.RuneCountInString(status) > user.StatusMaxLen {
			return nil, validationErr(op, fmt.Sprintf("status must be at most %d characters", user.StatusMaxLen))
		}
		updates["status"] = status
	}
	if in.DefaultNameColor != nil {
		c := strings.TrimSpace(*in.DefaultNameColor)
		if !channel.ValidNameColor(c) {
			return nil, validationErr(op, "default_name_color must be a hex color")
		}
		updates["default_name_color"] = normalizeColor(c)
	}
	if in.DefaultInvisible != nil {
		updates["default_invisible"] = *in.DefaultInvisible
	}

	dbc := dbctx.New(ctx)
	if err := us.userRepo.UpdateFields(dbc, uid, updates); err != nil {
		return nil, lookupErr(op, "user", err)
	}
	u, err := us.userRepo.GetByID(dbc, uid)
	if err != nil {
		return nil, lookupErr(op, "user", err)
	}
	return u, nil
}

func (us *userService) Lookup(ctx context.Context, ref string) (*types.User, error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	u, err := lookupUser(dbctx.New(ctx), us.userRepo, ref)
	if err != nil {
		return nil, lookupErr("user.lookup", "user", err)
	}
	return u, nil
}

func lookupUser(dbc dbctx.Context, userRepo repos.UserRepo, ref string) (*types.User, error) {
	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		return userRepo.GetByID(dbc, id)
	}
	return userRepo.GetByUsername(dbc, ref)
}

// normalizeColor lowercases a validated color and ensures the leading '#'.
func normalizeColor(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	if !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	return c
}
