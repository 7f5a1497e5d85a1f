package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type SettingsHandler struct {
	settingsService services.SettingsService
}

func NewSettingsHandler(settingsService services.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GET /channels/:id/settings
func (sh *SettingsHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	view, err := sh.settingsService.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"settings": view})
}

// PATCH /channels/:id/settings
// body: { "display_name": string|null, "name_color": string|null, "invisible": bool }
// A null or empty override clears it; an absent field is left alone.
func (sh *SettingsHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		DisplayName json.RawMessage `json:"display_name"`
		NameColor   json.RawMessage `json:"name_color"`
		Invisible   *bool           `json:"invisible"`
	}
	if !bindJSON(c, &req) {
		return
	}
	displayName, err := overrideField(req.DisplayName)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_display_name", err)
		return
	}
	nameColor, err := overrideField(req.NameColor)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_name_color", err)
		return
	}
	view, err := sh.settingsService.Update(c.Request.Context(), id, services.UpdateSettingsInput{
		DisplayName: displayName,
		NameColor:   nameColor,
		Invisible:   req.Invisible,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"settings": view})
}
