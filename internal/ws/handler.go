package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/auth"
	"messenger-service/internal/chatkey"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
)

// Handler upgrades websocket subscriptions to live channels.
type Handler struct {
	hub    *Hub
	jwt    *auth.JWTManager
	groups repositories.GroupRepository
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, jwt *auth.JWTManager, groups repositories.GroupRepository) *Handler {
	return &Handler{hub: hub, jwt: jwt, groups: groups}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authorizes the caller for the requested channel, upgrades the
// connection and keeps it registered until it closes. Conversation
// channels require participation or membership; personal channels are
// only subscribable by their owner.
func (h *Handler) Handle(c *gin.Context) {
	channel := c.Query("channel")
	if channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
		return
	}

	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}
	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	allowed, err := h.authorize(c, channel, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify access"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for channel"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	kind := channelKind(channel)
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(channel, conn, info)

	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(kind, channel, "ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	// Keep connection alive and clean up on close
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(channel, conn)
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsEventPayload(kind, channel, "ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
					_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
						EventType: "ws_events",
						EventName: "ws_error",
						Payload:   wsEventPayload(kind, channel, "ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
					}, observability.BuildHeaders(requestID, traceID))
				}
				return
			}
		}
	}()
}

// authorize maps channel names to their access rule.
func (h *Handler) authorize(c *gin.Context, channel, userID string) (bool, error) {
	name := strings.TrimSuffix(channel, ":typing")

	switch {
	case chatkey.IsGroup(name):
		return h.groups.IsMember(c.Request.Context(), chatkey.GroupID(name), userID)
	case strings.HasPrefix(name, "chat:"):
		return chatkey.IsDirectParticipant(strings.TrimPrefix(name, "chat:"), userID), nil
	case strings.HasPrefix(name, "user:"):
		rest := strings.TrimPrefix(name, "user:")
		owner, _, ok := strings.Cut(rest, ":")
		return ok && owner == userID, nil
	default:
		return false, nil
	}
}

func (h *Handler) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return h.jwt.Verify(parts[1])
	}
	return "", auth.ErrInvalidToken
}

func wsEventPayload(kind, channel, event string, info ConnInfo, durationMS int64, reason string) map[string]any {
	return map[string]any{
		"ws": map[string]any{
			"kind":        kind,
			"channel":     channel,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
