package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	types "github.com/yungbote/bonfires-backend/internal/domain"
)

type UserView struct {
	ID               uuid.UUID `json:"id"`
	Username         string    `json:"username"`
	Status           string    `json:"status"`
	DefaultNameColor string    `json:"default_name_color"`
	DefaultInvisible bool      `json:"default_invisible"`
	HasAvatar        bool      `json:"has_avatar"`
	JoinedAt         time.Time `json:"joined_at"`
}

func NewUserView(u *types.User) UserView {
	return UserView{
		ID:               u.ID,
		Username:         u.Username,
		Status:           u.Status,
		DefaultNameColor: u.DefaultNameColor,
		DefaultInvisible: u.DefaultInvisible,
		HasAvatar:        u.HasAvatar,
		JoinedAt:         u.JoinedAt,
	}
}

// MemberView is a user as seen inside one channel, with overrides applied.
type MemberView struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	NameColor   string    `json:"name_color"`
	HasAvatar   bool      `json:"has_avatar"`
	IsOwner     bool      `json:"is_owner"`
}

type ChannelSummary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	OwnerID        uuid.UUID `json:"owner_id"`
	HasAvatar      bool      `json:"has_avatar"`
	LastActivity   time.Time `json:"last_activity"`
	MemberCount    int       `json:"member_count"`
	OwnDisplayName string    `json:"own_display_name"`
}

type ChannelDetail struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	HasAvatar    bool         `json:"has_avatar"`
	LastActivity time.Time    `json:"last_activity"`
	CreatedAt    time.Time    `json:"created_at"`
	Owner        MemberView   `json:"owner"`
	Members      []MemberView `json:"members"`
}

type ChannelPage struct {
	Items      []ChannelSummary `json:"items"`
	NextCursor *string          `json:"next_cursor"`
}

type MessagePage struct {
	Items      []*types.Message `json:"items"`
	NextCursor *string          `json:"next_cursor"`
}

// Feed is a message page with the audit events that fall inside the same
// time window, so a client can interleave them without gaps.
type Feed struct {
	Messages   []*types.Message `json:"messages"`
	Events     []*types.Event   `json:"events"`
	NextCursor *string          `json:"next_cursor"`
}

type SettingsView struct {
	UserID               uuid.UUID      `json:"user_id"`
	ChannelID            uuid.UUID      `json:"channel_id"`
	DisplayName          types.Override `json:"display_name"`
	NameColor            types.Override `json:"name_color"`
	Invisible            bool           `json:"invisible"`
	EffectiveDisplayName string         `json:"effective_display_name"`
	EffectiveNameColor   string         `json:"effective_name_color"`
}

type PresenceView struct {
	ChannelID uuid.UUID    `json:"channel_id"`
	Viewers   []MemberView `json:"viewers"`
}

func cursorString(c *pagination.Cursor) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func memberViews(users []*types.User, ownerID uuid.UUID, settings map[uuid.UUID]*types.ChannelSettings) []MemberView {
	return lo.Map(users, func(u *types.User, _ int) MemberView {
		return newMemberView(u, ownerID, settings[u.ID])
	})
}

func newMemberView(u *types.User, ownerID uuid.UUID, s *types.ChannelSettings) MemberView {
	return MemberView{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: EffectiveDisplayName(u, s),
		NameColor:   EffectiveNameColor(u, s),
		HasAvatar:   u.HasAvatar,
		IsOwner:     u.ID == ownerID,
	}
}

// Payloads carried in SSE frames.

type MemberJoinedPayload struct {
	ChannelID uuid.UUID      `json:"channel_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Channel   *types.Channel `json:"channel,omitempty"`
	Event     *types.Event   `json:"event,omitempty"`
}

type MemberRemovedPayload struct {
	ChannelID  uuid.UUID    `json:"channel_id"`
	UserID     uuid.UUID    `json:"user_id"`
	NewOwnerID *uuid.UUID   `json:"new_owner_id,omitempty"`
	Destroyed  bool         `json:"destroyed"`
	Event      *types.Event `json:"event,omitempty"`
}

type ChannelOwnerChangedPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
}

type ChannelChangedPayload struct {
	ChannelID uuid.UUID    `json:"channel_id"`
	Title     string       `json:"title,omitempty"`
	HasAvatar bool         `json:"has_avatar"`
	Event     *types.Event `json:"event,omitempty"`
}

type ChannelDeletedPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	ActorID   uuid.UUID `json:"actor_id"`
}

type MessagePayload struct {
	ChannelID uuid.UUID      `json:"channel_id"`
	Message   *types.Message `json:"message"`
	Event     *types.Event   `json:"event,omitempty"`
}

type MessageDeletedPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	MessageID uuid.UUID `json:"message_id"`
}

type MemberSettingsPayload struct {
	ChannelID uuid.UUID              `json:"channel_id"`
	UserID    uuid.UUID              `json:"user_id"`
	Settings  *types.ChannelSettings `json:"settings"`
}

type PresencePayload struct {
	ChannelID uuid.UUID   `json:"channel_id"`
	Viewers   []uuid.UUID `json:"viewers"`
}

type TypingPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
}
