package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type UserHandler struct {
	userService    services.UserService
	channelService services.ChannelService
}

func NewUserHandler(userService services.UserService, channelService services.ChannelService) *UserHandler {
	return &UserHandler{userService: userService, channelService: channelService}
}

// GET /me
func (uh *UserHandler) GetMe(c *gin.Context) {
	me, err := uh.userService.GetMe(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"me": services.NewUserView(me)})
}

// PATCH /me
// body: { "status": "...", "default_name_color": "#rrggbb", "default_invisible": bool }
func (uh *UserHandler) UpdateMe(c *gin.Context) {
	var req struct {
		Status           *string `json:"status"`
		DefaultNameColor *string `json:"default_name_color" binding:"omitempty,namecolor"`
		DefaultInvisible *bool   `json:"default_invisible"`
	}
	if !bindJSON(c, &req) {
		return
	}
	me, err := uh.userService.UpdateMe(c.Request.Context(), services.UpdateUserInput{
		Status:           req.Status,
		DefaultNameColor: req.DefaultNameColor,
		DefaultInvisible: req.DefaultInvisible,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"me": services.NewUserView(me)})
}

// GET /users/:id, where id is a uuid or a username.
func (uh *UserHandler) GetUser(c *gin.Context) {
	u, err := uh.userService.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user": services.NewUserView(u)})
}

// GET /users/:id/mutual-channels
func (uh *UserHandler) MutualChannels(c *gin.Context) {
	out, err := uh.channelService.Mutual(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"channels": out})
}
