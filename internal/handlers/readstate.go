package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/readstate"
	"chat-delivery-service/internal/repositories"
)

// ReadStateHandler exposes read acknowledgement and unread-count queries.
type ReadStateHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	tracker     *readstate.Tracker
}

// NewReadStateHandler builds a ReadStateHandler.
func NewReadStateHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, tracker *readstate.Tracker) *ReadStateHandler {
	return &ReadStateHandler{roomRepo: roomRepo, messageRepo: messageRepo, tracker: tracker}
}

// MarkRoomRead bulk-acknowledges room history up to a point in time.
func (h *ReadStateHandler) MarkRoomRead(c *gin.Context) {
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
		UpTo *time.Time `json:"up_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	upTo := time.Now()
	if req.UpTo != nil {
		upTo = *req.UpTo
	}

	marked, err := h.tracker.BulkMarkAsRead(c.Request.Context(), roomID, userID, upTo)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark room read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// GetUnreadSummary returns the caller's global unread badge with its per-room
// breakdown.
func (h *ReadStateHandler) GetUnreadSummary(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	summary, err := h.tracker.UnreadSummary(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetReadReceipt returns who has read a message and who has not.
func (h *ReadStateHandler) GetReadReceipt(c *gin.Context) {
	roomID, messageID, ok := parseRoomMessageIDs(c)
	if !ok {
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

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.RoomID != roomID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to room"})
		return
	}

	receipt, err := h.tracker.ReadReceipt(c.Request.Context(), msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipt"})
		return
	}

	c.JSON(http.StatusOK, receipt)
}

func parseRoomMessageIDs(c *gin.Context) (int64, int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, 0, false
	}
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, 0, false
	}
	return roomID, messageID, true
}
