package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-delivery-service/internal/delivery"
	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/observability"
)

// MailboxHandler serves the offline mailbox on reconnect.
type MailboxHandler struct {
	coordinator *delivery.Coordinator
}

// NewMailboxHandler builds a MailboxHandler.
func NewMailboxHandler(coordinator *delivery.Coordinator) *MailboxHandler {
	return &MailboxHandler{coordinator: coordinator}
}

// FlushMailbox returns every buffered message for the caller in FIFO order and
// wipes the mailbox. Returning the batch is the delivery; there is no
// partial-ack protocol.
func (h *MailboxHandler) FlushMailbox(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	msgs, err := h.coordinator.GetOfflineMessages(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load mailbox"})
		return
	}

	if err := h.coordinator.ClearOfflineMessages(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear mailbox"})
		return
	}

	observability.IncMailboxFlush()
	for range msgs {
		observability.IncRedelivery("mailbox")
	}

	_ = observability.PublishEvent(c.Request.Context(), "delivery.mailbox_flushed", observability.EventEnvelope{
		EventType: "delivery_events",
		EventName: "mailbox_flushed",
		Payload: map[string]interface{}{
			"user_id":  userID,
			"messages": len(msgs),
		},
	}, observability.BuildHeaders(requestIDFromContext(c), traceIDFromContext(c)))

	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
