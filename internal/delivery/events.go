package delivery

import (
	"encoding/json"

	"chat-delivery-service/internal/models"
)

func encodeRoomEvent(msg models.ChatMessage) ([]byte, error) {
	return json.Marshal(models.RoomEvent{Type: "message", Message: &msg})
}
