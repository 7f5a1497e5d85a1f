package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"unicode"

	"github.com/fogleman/gg"
	"github.com/gabriel-vasile/mimetype"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/bonfires-backend/internal/data/repos"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	domainagg "github.com/yungbote/bonfires-backend/internal/domain/aggregates"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/apierr"
	"github.com/yungbote/bonfires-backend/internal/platform/dbctx"
	"github.com/yungbote/bonfires-backend/internal/platform/gcp"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
)

const (
	AvatarSize                  = 128
	DefaultAvatarMaxUploadBytes = 5 << 20
	// MaxAvatarDimension bounds either side of an upload before it is decoded.
	MaxAvatarDimension = 4096
)

var avatarPalette = []string{"#eb6f92", "#f6c177", "#ebbcba", "#31748f", "#9ccfd8", "#c4a7e7"}

var allowedAvatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/tiff": true,
}

type AvatarKind string

const (
	AvatarKindUser    AvatarKind = "user"
	AvatarKindChannel AvatarKind = "channel"
)

func AvatarKey(kind AvatarKind, id uuid.UUID) string {
	return fmt.Sprintf("%s_avatar/%s.png", kind, id)
}

type AvatarService interface {
	SetUserAvatar(ctx context.Context, raw []byte) (*types.User, error)
	SetChannelAvatar(ctx context.Context, channelID uuid.UUID, raw []byte) (*types.Channel, error)
	// UserAvatar resolves ref as an id or username and returns PNG bytes.
	UserAvatar(ctx context.Context, ref string) ([]byte, error)
	ChannelAvatar(ctx context.Context, channelID uuid.UUID) ([]byte, error)

	ChannelJanitor
}

type avatarService struct {
	log       *logger.Logger
	blobs     gcp.BlobStore
	cache     AvatarCache
	agg       domainagg.ChannelAggregate
	access    channelAccess
	userRepo  repos.UserRepo
	metrics   *observability.Metrics
	maxUpload int64
	fontFace  font.Face
	flights   singleflight.Group
}

func NewAvatarService(
	log *logger.Logger,
	blobs gcp.BlobStore,
	cache AvatarCache,
	agg domainagg.ChannelAggregate,
	channelRepo repos.ChannelRepo,
	memberRepo repos.MemberRepo,
	userRepo repos.UserRepo,
	metrics *observability.Metrics,
	maxUpload int64,
) (AvatarService, error) {
	serviceLog := log.With("service", "AvatarService")
	face, err := loadFontFace(goregular.TTF, 52)
	if err != nil {
		return nil, fmt.Errorf("could not load avatar font: %w", err)
	}
	if cache == nil {
		cache = NopAvatarCache{}
	}
	if maxUpload <= 0 {
		maxUpload = DefaultAvatarMaxUploadBytes
	}
	return &avatarService{
		log:       serviceLog,
		blobs:     blobs,
		cache:     cache,
		agg:       agg,
		access:    channelAccess{channels: channelRepo, members: memberRepo},
		userRepo:  userRepo,
		metrics:   metrics,
		maxUpload: maxUpload,
		fontFace:  face,
	}, nil
}

func (as *avatarService) SetUserAvatar(ctx context.Context, raw []byte) (*types.User, error) {
	const op = "avatar.user"
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	processed, err := as.processUpload(op, raw)
	if err != nil {
		return nil, err
	}
	key := AvatarKey(AvatarKindUser, uid)
	if err := as.store(ctx, key, processed); err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)
	if err := as.userRepo.UpdateFields(dbc, uid, map[string]interface{}{"has_avatar": true}); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	u, err := as.userRepo.GetByID(dbc, uid)
	if err != nil {
		return nil, lookupErr(op, "user", err)
	}
	return u, nil
}

func (as *avatarService) SetChannelAvatar(ctx context.Context, channelID uuid.UUID, raw []byte) (*types.Channel, error) {
	const op = "avatar.channel"
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := as.access.requireMember(dbctx.New(ctx), op, channelID, uid); err != nil {
		return nil, err
	}
	processed, err := as.processUpload(op, raw)
	if err != nil {
		return nil, err
	}
	if err := as.store(ctx, AvatarKey(AvatarKindChannel, channelID), processed); err != nil {
		return nil, err
	}
	res, err := as.agg.UpdateAvatar(ctx, domainagg.UpdateAvatarInput{ChannelID: channelID, ActorID: uid})
	if err != nil {
		return nil, err
	}
	return res.Channel, nil
}

func (as *avatarService) store(ctx context.Context, key string, png []byte) error {
	if err := as.blobs.Put(ctx, key, bytes.NewReader(png)); err != nil {
		return domainagg.Wrap(domainagg.CodeInternal, "avatar.store", err)
	}
	if err := as.cache.Delete(ctx, key); err != nil {
		as.log.Warn("Avatar cache invalidation failed", "key", key, "error", err)
	}
	return nil
}

func (as *avatarService) UserAvatar(ctx context.Context, ref string) ([]byte, error) {
	if _, err := callerID(ctx); err != nil {
		return nil, err
	}
	u, err := lookupUser(dbctx.New(ctx), as.userRepo, ref)
	if err != nil {
		return nil, lookupErr("avatar.user", "user", err)
	}
	return as.fetch(ctx, AvatarKey(AvatarKindUser, u.ID), u.HasAvatar, u.ID, u.Username)
}

func (as *avatarService) ChannelAvatar(ctx context.Context, channelID uuid.UUID) ([]byte, error) {
	const op = "avatar.channel"
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := as.access.channels.GetByID(dbctx.New(ctx), channelID)
	if err != nil {
		return nil, lookupErr(op, "channel", err)
	}
	if !ch.IsMember(uid) {
		return nil, forbiddenErr(op, "not a member of this channel")
	}
	return as.fetch(ctx, AvatarKey(AvatarKindChannel, ch.ID), ch.HasAvatar, ch.ID, ch.Title)
}

// fetch serves from the cache, then the blob store, then a rendered default.
// Concurrent misses for one key share a single load.
func (as *avatarService) fetch(ctx context.Context, key string, uploaded bool, id uuid.UUID, label string) ([]byte, error) {
	if raw, ok, err := as.cache.Get(ctx, key); err != nil {
		as.log.Warn("Avatar cache read failed", "key", key, "error", err)
	} else if ok {
		as.metrics.IncAvatarLookup("cache")
		return raw, nil
	}

	v, err, _ := as.flights.Do(key, func() (interface{}, error) {
		if uploaded {
			raw, err := as.readBlob(ctx, key)
			switch {
			case err == nil:
				if err := as.cache.Set(ctx, key, raw); err != nil {
					as.log.Warn("Avatar cache write failed", "key", key, "error", err)
				}
				as.metrics.IncAvatarLookup("blob")
				return raw, nil
			case !errors.Is(err, gcp.ErrObjectNotFound):
				return nil, err
			}
			as.log.Warn("Avatar flagged but missing from storage", "key", key)
		}
		raw, err := as.renderDefault(id, label)
		if err != nil {
			return nil, err
		}
		as.metrics.IncAvatarLookup("default")
		return raw, nil
	})
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "avatar.fetch", err)
	}
	return v.([]byte), nil
}

func (as *avatarService) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := as.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (as *avatarService) ChannelDestroyed(ctx context.Context, channelID uuid.UUID) {
	key := AvatarKey(AvatarKindChannel, channelID)
	if err := as.blobs.Delete(ctx, key); err != nil {
		as.log.Warn("Failed to delete channel avatar (ignored)", "key", key, "error", err)
	}
	if err := as.cache.Delete(ctx, key); err != nil {
		as.log.Warn("Avatar cache invalidation failed", "key", key, "error", err)
	}
}

func (as *avatarService) processUpload(op string, raw []byte) ([]byte, error) {
	if int64(len(raw)) > as.maxUpload {
		return nil, apierr.TooLarge("avatar_too_large", fmt.Errorf("avatar exceeds %d bytes", as.maxUpload))
	}
	if len(raw) == 0 {
		return nil, validationErr(op, "avatar image is empty")
	}
	mt := mimetype.Detect(raw)
	if !allowedAvatarTypes[mt.String()] {
		return nil, validationErr(op, fmt.Sprintf("unsupported image type %q", mt.String()))
	}
	out, err := processUploadedAvatar(raw, AvatarSize)
	if err != nil {
		return nil, validationErr(op, err.Error())
	}
	return out, nil
}

// processUploadedAvatar center-crops to a square and scales to size x size.
func processUploadedAvatar(raw []byte, size int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width > MaxAvatarDimension || cfg.Height > MaxAvatarDimension {
		return nil, fmt.Errorf("image is %dx%d; each side must be at most %d pixels", cfg.Width, cfg.Height, MaxAvatarDimension)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	side := min(w, h)
	if side == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}
	origin := image.Pt(b.Min.X+(w-side)/2, b.Min.Y+(h-side)/2)
	src := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(side, side))}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	var out bytes.Buffer
	if err := gg.NewContextForRGBA(dst).EncodePNG(&out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// renderDefault draws a palette circle with the label's initials.
func (as *avatarService) renderDefault(id uuid.UUID, label string) ([]byte, error) {
	const size = AvatarSize
	dc := gg.NewContext(size, size)
	dc.DrawCircle(size/2, size/2, size/2)
	dc.SetHexColor(paletteColor(id))
	dc.Fill()

	dc.SetFontFace(as.fontFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored(initials(label), size/2, size/2, 0.5, 0.35)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func paletteColor(id uuid.UUID) string {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
}

// initials takes the first letter of up to two words, or the first two letters
// of a single word.
func initials(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []rune
	switch len(words) {
	case 0:
		return "?"
	case 1:
		out = []rune(words[0])
		if len(out) > 2 {
			out = out[:2]
		}
	default:
		out = []rune{[]rune(words[0])[0], []rune(words[1])[0]}
	}
	return strings.ToUpper(string(out))
}

func loadFontFace(ttf []byte, size float64) (font.Face, error) {
	parsedFont, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
