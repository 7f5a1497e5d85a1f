package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	"github.com/yungbote/bonfires-backend/internal/data/repos"
	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type MessageHandler struct {
	messageService services.MessageService
}

func NewMessageHandler(messageService services.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type contentRequest struct {
	Content string `json:"content" binding:"required"`
}

// GET /channels/:id/messages?take&before
func (mh *MessageHandler) List(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := mh.messageService.List(c.Request.Context(), id, req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, page)
}

// GET /channels/:id/feed?take&before
func (mh *MessageHandler) Feed(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	feed, err := mh.messageService.Feed(c.Request.Context(), id, req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, feed)
}

// GET /channels/:id/pins
func (mh *MessageHandler) Pins(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	pins, err := mh.messageService.Pins(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": pins})
}

// GET /channels/:id/events?before&after&take
// before/after accept RFC 3339 timestamps or cursors.
func (mh *MessageHandler) Events(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var rng repos.EventRange
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"before", &rng.Before}, {"after", &rng.After}} {
		raw := strings.TrimSpace(c.Query(bound.name))
		if raw == "" {
			continue
		}
		t, err := parseBound(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_"+bound.name, err)
			return
		}
		*bound.dst = &t
	}
	if raw := strings.TrimSpace(c.Query("take")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_take", errors.New("take must be an integer"))
			return
		}
		rng.Take = n
	}
	events, err := mh.messageService.Events(c.Request.Context(), id, rng)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"items": events})
}

func parseBound(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	cur, err := pagination.ParseCursor(raw)
	if err != nil {
		return time.Time{}, err
	}
	return cur.Time, nil
}

// POST /channels/:id/messages
func (mh *MessageHandler) Create(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := mh.messageService.Create(c.Request.Context(), id, req.Content)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"message": msg})
}

// PATCH /channels/:id/messages/:messageId
func (mh *MessageHandler) Edit(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	var req contentRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := mh.messageService.Edit(c.Request.Context(), id, messageID, req.Content)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": msg})
}

// DELETE /channels/:id/messages/:messageId
func (mh *MessageHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	if err := mh.messageService.Delete(c.Request.Context(), id, messageID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// PUT /channels/:id/messages/:messageId/pin
// body: { "pinned": bool }
func (mh *MessageHandler) SetPinned(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}
	var req struct {
		Pinned *bool `json:"pinned" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := mh.messageService.SetPinned(c.Request.Context(), id, messageID, *req.Pinned)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": res.Message, "event": res.Event})
}
