package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"messenger-service/internal/chatkey"
	"messenger-service/internal/observability"
)

// envelope is the wire frame delivered to subscribers.
type envelope struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	Payload any    `json:"payload,omitempty"`
}

// Hub maintains live websocket subscriptions keyed by channel name and
// fans events out to them. It satisfies notify.Notifier, so the HTTP
// layer publishes through the same interface whether the subscriber is
// local or absent. Delivery is best-effort; a failed write drops the
// connection.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient subscribes a connection to a channel.
func (h *Hub) AddClient(channel string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[channel]; !ok {
		h.rooms[channel] = make(map[*websocket.Conn]bool)
	}
	h.rooms[channel][conn] = true
	if _, ok := h.connInfo[channel]; !ok {
		h.connInfo[channel] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[channel][conn] = info
}

// RemoveClient drops a connection's subscription to a channel.
func (h *Hub) RemoveClient(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, channel)
		}
	}
	if infos, ok := h.connInfo[channel]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, channel)
		}
	}
}

// Subscribers reports the current subscriber count for a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channel])
}

// Publish delivers one event to every current subscriber of each
// channel. Write failures close and unsubscribe the connection; the
// publish itself never fails.
func (h *Hub) Publish(ctx context.Context, channels []string, event string, payload any) error {
	for _, channel := range channels {
		frame, err := json.Marshal(envelope{Event: event, Channel: channel, Payload: payload})
		if err != nil {
			return err
		}

		h.mu.RLock()
		conns := make([]*websocket.Conn, 0, len(h.rooms[channel]))
		for conn := range h.rooms[channel] {
			conns = append(conns, conn)
		}
		h.mu.RUnlock()

		for _, conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn().Err(err).Str("channel", channel).Str("event", event).Msg("websocket write failed")
				conn.Close()
				h.RemoveClient(channel, conn)
				h.publishWSError(channel, conn, err)
			}
		}
	}
	return nil
}

func (h *Hub) publishWSError(channel string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(channel, conn)
	if !ok {
		return
	}

	kind := channelKind(channel)
	payload := map[string]any{
		"ws": map[string]any{
			"kind":        kind,
			"channel":     channel,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(channel string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[channel]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

// channelKind classifies a channel name for metrics and audit events.
func channelKind(channel string) string {
	switch {
	case chatkey.IsGroup(channel):
		return "group"
	case len(channel) > 5 && channel[:5] == "user:":
		return "user"
	default:
		return "chat"
	}
}

func wsRoutingKey(kind string) string {
	switch kind {
	case "group":
		return "ws_events.groups"
	case "user":
		return "ws_events.users"
	default:
		return "ws_events.chats"
	}
}
