package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type AvatarHandler struct {
	avatarService services.AvatarService
	maxUpload     int64
}

func NewAvatarHandler(avatarService services.AvatarService, maxUpload int64) *AvatarHandler {
	if maxUpload <= 0 {
		maxUpload = services.DefaultAvatarMaxUploadBytes
	}
	return &AvatarHandler{avatarService: avatarService, maxUpload: maxUpload}
}

// readUpload takes the "avatar" part of a multipart form, or the raw body.
// One byte past the limit is read so the service can reject oversize input.
func (ah *AvatarHandler) readUpload(c *gin.Context) ([]byte, error) {
	var src io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("avatar")
		if err != nil {
			return nil, fmt.Errorf("missing avatar file: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		src = f
	}
	return io.ReadAll(io.LimitReader(src, ah.maxUpload+1))
}

// PUT /me/avatar
func (ah *AvatarHandler) UploadMine(c *gin.Context) {
	raw, err := ah.readUpload(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	u, err := ah.avatarService.SetUserAvatar(c.Request.Context(), raw)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"me": services.NewUserView(u)})
}

// PUT /channels/:id/avatar
func (ah *AvatarHandler) UploadChannel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	raw, err := ah.readUpload(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	ch, err := ah.avatarService.SetChannelAvatar(c.Request.Context(), id, raw)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"channel": ch})
}

// GET /users/:id/avatar
func (ah *AvatarHandler) User(c *gin.Context) {
	raw, err := ah.avatarService.UserAvatar(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	writePNG(c, raw)
}

// GET /channels/:id/avatar
func (ah *AvatarHandler) Channel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	raw, err := ah.avatarService.ChannelAvatar(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	writePNG(c, raw)
}

func writePNG(c *gin.Context, raw []byte) {
	c.Header("Cache-Control", "private, max-age=60")
	c.Data(http.StatusOK, "image/png", raw)
}
