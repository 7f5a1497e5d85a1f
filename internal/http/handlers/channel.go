package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type ChannelHandler struct {
	channelService services.ChannelService
}

func NewChannelHandler(channelService services.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

// GET /channels?take&before
func (ch *ChannelHandler) List(c *gin.Context) {
	req, ok := pageRequest(c)
	if !ok {
		return
	}
	page, err := ch.channelService.List(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, page)
}

type titleRequest struct {
	Title string `json:"title" binding:"required"`
}

// POST /channels
func (ch *ChannelHandler) Create(c *gin.Context) {
	var req titleRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := ch.channelService.Create(c.Request.Context(), req.Title)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"channel": out})
}

// GET /channels/:id
func (ch *ChannelHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	out, err := ch.channelService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"channel": out})
}

// PATCH /channels/:id
func (ch *ChannelHandler) UpdateTitle(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req titleRequest
	if !bindJSON(c, &req) {
		return
	}
	out, err := ch.channelService.UpdateTitle(c.Request.Context(), id, req.Title)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"channel": out})
}

// DELETE /channels/:id
func (ch *ChannelHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := ch.channelService.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// POST /channels/:id/members
// body: { "user": "<id or username>" }
func (ch *ChannelHandler) Invite(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		User string `json:"user" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	out, err := ch.channelService.Invite(c.Request.Context(), id, req.User)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"channel": out})
}

// DELETE /channels/:id/members/:userId
func (ch *ChannelHandler) Kick(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	target, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	res, err := ch.channelService.Kick(c.Request.Context(), id, target)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, removalBody(res.Destroyed, res.NewOwnerID))
}

// POST /channels/:id/leave
func (ch *ChannelHandler) Leave(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	res, err := ch.channelService.Leave(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, removalBody(res.Destroyed, res.NewOwnerID))
}

func removalBody(destroyed bool, newOwner *uuid.UUID) gin.H {
	body := gin.H{"destroyed": destroyed}
	if newOwner != nil {
		body["new_owner_id"] = *newOwner
	}
	return body
}

// POST /channels/:id/owner
// body: { "user_id": "<uuid>" }
func (ch *ChannelHandler) Promote(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	out, err := ch.channelService.Promote(c.Request.Context(), id, req.UserID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"channel": out})
}
