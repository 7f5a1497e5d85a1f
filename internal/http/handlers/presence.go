package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type PresenceHandler struct {
	presenceService services.PresenceService
	typingService   services.TypingService
}

func NewPresenceHandler(presenceService services.PresenceService, typingService services.TypingService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService, typingService: typingService}
}

// GET /channels/:id/presence
func (ph *PresenceHandler) Presence(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, err := ph.presenceService.Viewers(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /channels/:id/typing
// body: { "typing": bool }
func (ph *PresenceHandler) Typing(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Typing *bool `json:"typing" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := ph.typingService.Signal(c.Request.Context(), id, *req.Typing); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}
