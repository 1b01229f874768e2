package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-delivery-service/internal/delivery"
	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/readstate"
	"chat-delivery-service/internal/repositories"
)

// RoomHandler manages room endpoints.
type RoomHandler struct {
	roomRepo    repositories.RoomRepository
	coordinator *delivery.Coordinator
	tracker     *readstate.Tracker
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, coordinator *delivery.Coordinator, tracker *readstate.Tracker) *RoomHandler {
	return &RoomHandler{roomRepo: roomRepo, coordinator: coordinator, tracker: tracker}
}

// CreateRoom creates a room with an initial participant set. The caller is
// always included.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name           string   `json:"name" binding:"required"`
		ParticipantIDs []string `json:"participant_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString(middleware.UserIDKey)
	participants := []string{userID}
	for _, id := range req.ParticipantIDs {
		if _, err := uuid.Parse(id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
			return
		}
		if id != userID {
			participants = append(participants, id)
		}
	}

	room, err := h.roomRepo.CreateRoom(c.Request.Context(), req.Name, participants)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// ListRooms returns the rooms visible to the authenticated user.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	rooms, err := h.roomRepo.ListRoomsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GetRoomUnread returns both unread views of a room for the caller: the
// precise read-state count and the coarse authored-by-others total.
func (h *RoomHandler) GetRoomUnread(c *gin.Context) {
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

	lastRead := time.Time{}
	if raw := c.Query("last_read"); raw != "" {
		lastRead, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_read"})
			return
		}
	}

	unread, err := h.tracker.CountUnreadInRoom(c.Request.Context(), roomID, userID, lastRead)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
		return
	}
	total, err := h.coordinator.GetUnreadMessageCount(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": unread, "messages_from_others": total})
}
