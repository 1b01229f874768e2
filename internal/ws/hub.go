package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-delivery-service/internal/observability"
)

// ErrUserUnreachable is returned when a push finds no writable connection.
var ErrUserUnreachable = errors.New("user has no live connection")

// Hub is the connection registry: it tracks every live websocket per user and
// is the delivery coordinator's answer to "is this user reachable right now".
type Hub struct {
	userConns map[string]map[*websocket.Conn]ConnInfo
	mu        sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		userConns: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection for a user. A user may hold
// several connections, one per device.
func (h *Hub) AddClient(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.userConns[userID]; !ok {
		h.userConns[userID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.userConns[userID][conn] = info
}

// RemoveClient removes a websocket connection.
func (h *Hub) RemoveClient(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.userConns[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.userConns, userID)
		}
	}
}

// IsReachable reports whether the user has at least one live connection.
func (h *Hub) IsReachable(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userConns[userID]) > 0
}

// ConnectedUsers lists users with at least one live connection.
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.userConns))
	for userID := range h.userConns {
		users = append(users, userID)
	}
	return users
}

// PushToUser writes the payload to every connection the user holds. The push
// succeeds when at least one write lands; dead connections are closed and
// dropped along the way.
func (h *Hub) PushToUser(userID string, payload []byte) error {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.userConns[userID]))
	for conn := range h.userConns[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return ErrUserUnreachable
	}

	delivered := false
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			info, known := h.getConnInfo(userID, conn)
			conn.Close()
			h.RemoveClient(userID, conn)
			if known {
				h.publishWSError(info, err)
			}
			continue
		}
		delivered = true
	}
	if !delivered {
		return ErrUserUnreachable
	}
	return nil
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("ws_error")
}

func (h *Hub) getConnInfo(userID string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conns, ok := h.userConns[userID]; ok {
		info, exists := conns[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
