package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bonfires-backend/internal/http/response"
	"github.com/yungbote/bonfires-backend/internal/observability"
	"github.com/yungbote/bonfires-backend/internal/platform/ctxutil"
	"github.com/yungbote/bonfires-backend/internal/platform/logger"
	"github.com/yungbote/bonfires-backend/internal/realtime"
	"github.com/yungbote/bonfires-backend/internal/services"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	presence services.PresenceService
	metrics  *observability.Metrics
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, presence services.PresenceService, metrics *observability.Metrics) *RealtimeHandler {
	return &RealtimeHandler{
		log:      log.With("handler", "RealtimeHandler"),
		hub:      hub,
		presence: presence,
		metrics:  metrics,
	}
}

// GET /sse/stream
// Every connection is subscribed to its user's topic. The first frame is
// Connected, carrying the connection id used by subscribe/unsubscribe.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	ctx := c.Request.Context()
	userID := ctxutil.UserID(ctx)

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, realtime.UserTopic(userID))
	h.metrics.SSEConnectionOpened()
	h.log.Debug("SSE stream open", "user_id", userID, "connection_id", client.ID)
	defer h.presence.Disconnect(ctx, client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}

type subscriptionRequest struct {
	ConnectionID uuid.UUID `json:"connection_id" binding:"required"`
	ChannelID    uuid.UUID `json:"channel_id" binding:"required"`
}

// POST /sse/subscribe
func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	var req subscriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.presence.Subscribe(c.Request.Context(), req.ConnectionID, req.ChannelID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"subscribed": realtime.ChannelTopic(req.ChannelID)})
}

// POST /sse/unsubscribe
func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	var req subscriptionRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.presence.Unsubscribe(c.Request.Context(), req.ConnectionID, req.ChannelID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"unsubscribed": realtime.ChannelTopic(req.ChannelID)})
}
