package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"chat-delivery-service/internal/observability"
	"chat-delivery-service/internal/repositories"
)

// TokenVerifier validates a raw bearer token and returns the user id.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// RoomReader bulk-acknowledges room history for a reader.
type RoomReader interface {
	BulkMarkAsRead(ctx context.Context, roomID int64, readerID string, upTo time.Time) (int64, error)
}

// RoomWebSocketHandler handles room websocket connections.
type RoomWebSocketHandler struct {
	hub      *Hub
	roomRepo repositories.RoomRepository
	reader   RoomReader
	verifier TokenVerifier
	log      *zap.Logger
}

// NewRoomWebSocketHandler constructs a RoomWebSocketHandler.
func NewRoomWebSocketHandler(hub *Hub, roomRepo repositories.RoomRepository, reader RoomReader, verifier TokenVerifier, log *zap.Logger) *RoomWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoomWebSocketHandler{hub: hub, roomRepo: roomRepo, reader: reader, verifier: verifier, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, records presence in the room, and registers
// the client with the hub. Opening a room acknowledges its prior history.
func (h *RoomWebSocketHandler) Handle(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	ctx, span := otel.Tracer("chat-delivery-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.roomRepo.IsParticipant(ctx, roomID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for room"})
		return
	}

	now := time.Now()
	if err := h.roomRepo.MarkJoined(ctx, roomID, userID, now); err != nil {
		h.log.Warn("ws: mark joined failed", zap.Error(err), zap.Int64("room_id", roomID))
	}
	if _, err := h.reader.BulkMarkAsRead(ctx, roomID, userID, now); err != nil {
		h.log.Warn("ws: bulk mark read failed", zap.Error(err), zap.Int64("room_id", roomID))
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	meta := observability.ClientMetaFromRequest(c.Request)
	requestID := meta.RequestID
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(roomID, "ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	// Keep connection alive and clean on close
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(userID, conn)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.rooms", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsEventPayload(roomID, "ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
					_ = observability.PublishEvent(ctx, "ws_events.rooms", observability.EventEnvelope{
						EventType: "ws_events",
						EventName: "ws_error",
						Payload:   wsEventPayload(roomID, "ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
					}, observability.BuildHeaders(requestID, traceID))
				}
				return
			}
		}
	}()
}

func (h *RoomWebSocketHandler) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return h.verifier.Verify(parts[1])
	}
	return "", fmt.Errorf("invalid token")
}

func wsEventPayload(roomID int64, event string, info ConnInfo, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"room_id":     roomID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
