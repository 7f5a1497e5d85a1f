package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/domain/channel"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

// EffectiveDisplayName resolves the name shown for u in a channel:
// the override, then the user's status, then the username.
func EffectiveDisplayName(u *types.User, s *types.ChannelSettings) string {
	if s != nil {
		if v, ok := s.DisplayName.Get(); ok {
			return v
		}
	}
	if u == nil {
		return ""
	}
	if t := u.Tagline(); t != "" {
		return t
	}
	return u.Username
}

func EffectiveNameColor(u *types.User, s *types.ChannelSettings) string {
	if s != nil {
		if v, ok := s.NameColor.Get(); ok {
			return v
		}
	}
	if u != nil && u.DefaultNameColor != "" {
		return u.DefaultNameColor
	}
	return channel.DefaultNameColor
}

// UpdateSettingsInput patches one member's overrides. A nil field is left
// unchanged; an Unset override clears back to the user's default.
type UpdateSettingsInput struct {
	DisplayName *types.Override
	NameColor   *types.Override
	Invisible   *bool
}

// VisibilityListener is told when a member's invisibility flips.
type VisibilityListener interface {
	VisibilityChanged(ctx context.Context, channelID uuid.UUID)
}

type SettingsService interface {
	Get(ctx context.Context, channelID uuid.UUID) (SettingsView, error)
	Update(ctx context.Context, channelID uuid.UUID, in UpdateSettingsInput) (SettingsView, error)
}

type settingsService struct {
	log          *logger.Logger
	agg          domainagg.ChannelAggregate
	access       channelAccess
	userRepo     repos.UserRepo
	settingsRepo repos.SettingsRepo
	visibility   VisibilityListener
}

func NewSettingsService(
	log *logger.Logger,
	agg domainagg.ChannelAggregate,
	channelRepo repos.ChannelRepo,
	memberRepo repos.MemberRepo,
	userRepo repos.UserRepo,
	settingsRepo repos.SettingsRepo,
	visibility VisibilityListener,
) SettingsService {
	return &settingsService{
		log:          log.With("service", "SettingsService"),
		agg:          agg,
		access:       channelAccess{channels: channelRepo, members: memberRepo},
		userRepo:     userRepo,
		settingsRepo: settingsRepo,
		visibility:   visibility,
	}
}

// Get never writes. A member whose row is missing sees the defaults the next
// update would create.
func (ss *settingsService) Get(ctx context.Context, channelID uuid.UUID) (SettingsView, error) {
	const op = "settings.get"
	uid, err := callerID(ctx)
	if err != nil {
		return SettingsView{}, err
	}
	dbc := dbctx.New(ctx)
	if err := ss.access.requireMember(dbc, op, channelID, uid); err != nil {
		return SettingsView{}, err
	}
	u, err := ss.userRepo.GetByID(dbc, uid)
	if err != nil {
		return SettingsView{}, lookupErr(op, "user", err)
	}
	row, err := ss.settingsRepo.Get(dbc, uid, channelID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = types.NewChannelSettings(uid, channelID, u.DefaultInvisible)
	} else if err != nil {
		return SettingsView{}, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return newSettingsView(u, row), nil
}

func (ss *settingsService) Update(ctx context.Context, channelID uuid.UUID, in UpdateSettingsInput) (SettingsView, error) {
	const op = "settings.update"
	uid, err := callerID(ctx)
	if err != nil {
		return SettingsView{}, err
	}
	patch, err := settingsPatch(op, in)
	if err != nil {
		return SettingsView{}, err
	}
	patch.ChannelID = channelID
	patch.UserID = uid

	res, err := ss.agg.UpdateSettings(ctx, patch)
	if err != nil {
		return SettingsView{}, err
	}
	if res.VisibilityChanged && ss.visibility != nil {
		ss.visibility.VisibilityChanged(ctx, channelID)
	}
	return newSettingsView(res.User, res.Settings), nil
}

// settingsPatch validates and normalizes the requested overrides.
func settingsPatch(op string, in UpdateSettingsInput) (domainagg.UpdateSettingsInput, error) {
	var out domainagg.UpdateSettingsInput
	if in.DisplayName != nil {
		o := *in.DisplayName
		if v, ok := o.Get(); ok {
			v = strings.TrimSpace(v)
			if utf8.RuneCountInString(v) > channel.DisplayNameMaxLen {
				return out, validationErr(op, fmt.Sprintf("display_name must be at most %d characters", channel.DisplayNameMaxLen))
			}
			o = channel.ParseOverride(v)
		}
		out.DisplayName = &o
	}
	if in.NameColor != nil {
		o := *in.NameColor
		if v, ok := o.Get(); ok {
			if !channel.ValidNameColor(strings.TrimSpace(v)) {
				return out, validationErr(op, "name_color must be a hex color")
			}
			o = channel.Custom(normalizeColor(v))
		}
		out.NameColor = &o
	}
	out.Invisible = in.Invisible
	return out, nil
}

func newSettingsView(u *types.User, s *types.ChannelSettings) SettingsView {
	return SettingsView{
		UserID:               s.UserID,
		ChannelID:            s.ChannelID,
		DisplayName:          s.DisplayName,
		NameColor:            s.NameColor,
		Invisible:            s.Invisible,
		EffectiveDisplayName: EffectiveDisplayName(u, s),
		EffectiveNameColor:   EffectiveNameColor(u, s),
	}
}
