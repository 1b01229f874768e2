package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chat-delivery-service/internal/buffer"
	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, name string, participantIDs []string) (models.ChatRoom, error) {
	args := m.Called(ctx, name, participantIDs)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	args := m.Called(ctx, userID)
	var rooms []models.ChatRoom
	if val := args.Get(0); val != nil {
		rooms = val.([]models.ChatRoom)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepositoryMock) ListParticipants(ctx context.Context, roomID int64) ([]models.ChatRoomParticipant, error) {
	args := m.Called(ctx, roomID)
	var parts []models.ChatRoomParticipant
	if val := args.Get(0); val != nil {
		parts = val.([]models.ChatRoomParticipant)
	}
	return parts, args.Error(1)
}

func (m *RoomRepositoryMock) IsParticipant(ctx context.Context, roomID int64, userID string) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) AddParticipant(ctx context.Context, roomID int64, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) MarkJoined(ctx context.Context, roomID int64, userID string, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID int64, senderID string, content string) (models.ChatMessage, error) {
	args := m.Called(ctx, roomID, senderID, content)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID int64) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountMessagesFromOthers(ctx context.Context, roomID int64, userID string) (int64, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Get(0).(int64), args.Error(1)
}

type ReadStatusRepositoryMock struct {
	mock.Mock
}

func (m *ReadStatusRepositoryMock) InsertIfAbsent(ctx context.Context, messageID int64, readerID string, readAt time.Time) (bool, error) {
	args := m.Called(ctx, messageID, readerID, readAt)
	return args.Bool(0), args.Error(1)
}

func (m *ReadStatusRepositoryMock) BulkMarkAsRead(ctx context.Context, roomID int64, readerID string, upTo time.Time) (int64, error) {
	args := m.Called(ctx, roomID, readerID, upTo)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ReadStatusRepositoryMock) CountUnreadInRoom(ctx context.Context, roomID int64, userID string, lastReadTime time.Time) (int64, error) {
	args := m.Called(ctx, roomID, userID, lastReadTime)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ReadStatusRepositoryMock) CountUnreadByRoom(ctx context.Context, userID string) ([]models.RoomUnread, error) {
	args := m.Called(ctx, userID)
	var rows []models.RoomUnread
	if val := args.Get(0); val != nil {
		rows = val.([]models.RoomUnread)
	}
	return rows, args.Error(1)
}

func (m *ReadStatusRepositoryMock) FindUnreadUsersByMessage(ctx context.Context, messageID int64, roomID int64, senderID string) ([]string, error) {
	args := m.Called(ctx, messageID, roomID, senderID)
	var userIDs []string
	if val := args.Get(0); val != nil {
		userIDs = val.([]string)
	}
	return userIDs, args.Error(1)
}

func (m *ReadStatusRepositoryMock) CountReaders(ctx context.Context, messageID int64) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ReadStatusRepositoryMock) CountJoinedParticipants(ctx context.Context, roomID int64, excludeUserID string) (int64, error) {
	args := m.Called(ctx, roomID, excludeUserID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ReadStatusRepositoryMock) SoftDeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type DeliveryBufferMock struct {
	mock.Mock
}

func (m *DeliveryBufferMock) PushRetry(ctx context.Context, roomID int64, userID string, ref buffer.MessageRef, ttl time.Duration) error {
	args := m.Called(ctx, roomID, userID, ref, ttl)
	return args.Error(0)
}

func (m *DeliveryBufferMock) PopRetry(ctx context.Context, roomID int64, userID string) (buffer.MessageRef, bool, error) {
	args := m.Called(ctx, roomID, userID)
	var ref buffer.MessageRef
	if val := args.Get(0); val != nil {
		ref = val.(buffer.MessageRef)
	}
	return ref, args.Bool(1), args.Error(2)
}

func (m *DeliveryBufferMock) IncrRetryCount(ctx context.Context, messageID int64, ttl time.Duration) (int64, error) {
	args := m.Called(ctx, messageID, ttl)
	return args.Get(0).(int64), args.Error(1)
}

func (m *DeliveryBufferMock) RetryCount(ctx context.Context, messageID int64) (int64, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *DeliveryBufferMock) PushMailbox(ctx context.Context, userID string, ref buffer.MessageRef, ttl time.Duration) error {
	args := m.Called(ctx, userID, ref, ttl)
	return args.Error(0)
}

func (m *DeliveryBufferMock) ListMailbox(ctx context.Context, userID string) ([]buffer.MessageRef, error) {
	args := m.Called(ctx, userID)
	var refs []buffer.MessageRef
	if val := args.Get(0); val != nil {
		refs = val.([]buffer.MessageRef)
	}
	return refs, args.Error(1)
}

func (m *DeliveryBufferMock) ClearMailbox(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type ConnectionRegistryMock struct {
	mock.Mock
}

func (m *ConnectionRegistryMock) IsReachable(userID string) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

func (m *ConnectionRegistryMock) PushToUser(userID string, payload []byte) error {
	args := m.Called(userID, payload)
	return args.Error(0)
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReadStatusRepository = (*ReadStatusRepositoryMock)(nil)
var _ buffer.DeliveryBuffer = (*DeliveryBufferMock)(nil)
