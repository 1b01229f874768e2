package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-delivery-service/internal/delivery"
	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/observability"
	"chat-delivery-service/internal/repositories"
)

// MessageHandler manages message endpoints: persisting a message is the only
// operation that may fail the sender; fan-out happens off the request path.
type MessageHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	coordinator *delivery.Coordinator
	log         *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, coordinator *delivery.Coordinator, log *zap.Logger) *MessageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageHandler{roomRepo: roomRepo, messageRepo: messageRepo, coordinator: coordinator, log: log}
}

// PostRoomMessage persists a message and dispatches it to the room.
func (h *MessageHandler) PostRoomMessage(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	member, err := h.roomRepo.IsParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), roomID, userID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	participants, err := h.roomRepo.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		// The durable write already succeeded; the sender never sees fan-out
		// trouble. The sweep picks reachable users back up later.
		h.log.Warn("post message: list participants failed", zap.Error(err), zap.Int64("room_id", roomID))
	} else {
		go h.coordinator.Dispatch(context.Background(), msg, participants)
	}

	_ = observability.PublishEvent(c.Request.Context(), "delivery.sent", observability.EventEnvelope{
		EventType: "delivery_events",
		EventName: "message_sent",
		Payload: map[string]interface{}{
			"message_id": msg.ID,
			"room_id":    msg.RoomID,
			"sender_id":  msg.SenderID,
		},
	}, observability.BuildHeaders(requestIDFromContext(c), traceIDFromContext(c)))

	c.JSON(http.StatusCreated, msg)
}

// GetRoomMessages returns room history in creation order.
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	member, err := h.roomRepo.IsParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	msgs, err := h.messageRepo.ListRoomMessages(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
