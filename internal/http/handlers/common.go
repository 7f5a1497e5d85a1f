package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/data/pagination"
	types "github.com/yungbote/bonfires-backend/internal/domain"
	"github.com/yungbote/bonfires-backend/internal/http/response"
)

// pathUUID parses a uuid path parameter, answering 400 when it is malformed.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, fmt.Errorf("%s must be a uuid", name))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}

// pageRequest reads ?take and ?before. Normalization happens in the services.
func pageRequest(c *gin.Context) (pagination.Request, bool) {
	var req pagination.Request
	if raw := strings.TrimSpace(c.Query("take")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_take", errors.New("take must be an integer"))
			return req, false
		}
		req.Take = n
	}
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		cur, err := pagination.ParseCursor(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_cursor", err)
			return req, false
		}
		req.Before = cur
	}
	return req, true
}

// overrideField reads a nullable override from a patch body. An absent field
// yields nil; null or "" clears the override.
func overrideField(raw json.RawMessage) (*types.Override, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var o types.Override
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
