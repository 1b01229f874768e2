package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-delivery-service/internal/buffer"
	"chat-delivery-service/internal/mocks"
	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/repositories"
)

const (
	senderID  = "6f1e1d5a-1111-4a5f-9e6b-000000000001"
	offlineID = "6f1e1d5a-1111-4a5f-9e6b-000000000002"
	onlineID  = "6f1e1d5a-1111-4a5f-9e6b-000000000003"
)

func joined(t time.Time) *time.Time { return &t }

func testMessage() models.ChatMessage {
	return models.ChatMessage{ID: 42, RoomID: 7, SenderID: senderID, Content: "hola", CreatedAt: time.Now()}
}

func testParticipants() []models.ChatRoomParticipant {
	now := time.Now()
	return []models.ChatRoomParticipant{
		{RoomID: 7, UserID: senderID, JoinedAt: joined(now)},
		{RoomID: 7, UserID: offlineID, JoinedAt: joined(now)},
		{RoomID: 7, UserID: onlineID, JoinedAt: joined(now)},
	}
}

func TestDispatchPushesOnlineAndBuffersOffline(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	registry := new(mocks.ConnectionRegistryMock)
	coordinator := NewCoordinator(messageRepo, buf, registry, Options{}, nil)

	msg := testMessage()
	ref := buffer.MessageRef{MessageID: msg.ID, RoomID: msg.RoomID, SenderID: msg.SenderID}

	registry.On("IsReachable", onlineID).Return(true).Once()
	registry.On("PushToUser", onlineID, mock.Anything).Return(nil).Once()
	registry.On("IsReachable", offlineID).Return(false).Once()
	buf.On("PushRetry", mock.Anything, int64(7), offlineID, ref, mock.Anything).Return(nil).Once()
	buf.On("PushMailbox", mock.Anything, offlineID, ref, mock.Anything).Return(nil).Once()

	coordinator.Dispatch(context.Background(), msg, testParticipants())

	registry.AssertExpectations(t)
	buf.AssertExpectations(t)
	registry.AssertNotCalled(t, "IsReachable", senderID)
}

func TestDispatchTreatsPushFailureLikeOffline(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	registry := new(mocks.ConnectionRegistryMock)
	coordinator := NewCoordinator(messageRepo, buf, registry, Options{}, nil)

	msg := testMessage()
	now := time.Now()
	participants := []models.ChatRoomParticipant{
		{RoomID: 7, UserID: senderID, JoinedAt: joined(now)},
		{RoomID: 7, UserID: onlineID, JoinedAt: joined(now)},
	}

	registry.On("IsReachable", onlineID).Return(true).Once()
	registry.On("PushToUser", onlineID, mock.Anything).Return(assert.AnError).Once()
	buf.On("PushRetry", mock.Anything, int64(7), onlineID, mock.Anything, mock.Anything).Return(nil).Once()
	buf.On("PushMailbox", mock.Anything, onlineID, mock.Anything, mock.Anything).Return(nil).Once()

	coordinator.Dispatch(context.Background(), msg, participants)

	registry.AssertExpectations(t)
	buf.AssertExpectations(t)
}

func TestDispatchSwallowsBufferErrors(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	registry := new(mocks.ConnectionRegistryMock)
	coordinator := NewCoordinator(messageRepo, buf, registry, Options{}, nil)

	msg := testMessage()
	now := time.Now()
	participants := []models.ChatRoomParticipant{
		{RoomID: 7, UserID: senderID, JoinedAt: joined(now)},
		{RoomID: 7, UserID: offlineID, JoinedAt: joined(now)},
	}

	registry.On("IsReachable", offlineID).Return(false).Once()
	buf.On("PushRetry", mock.Anything, int64(7), offlineID, mock.Anything, mock.Anything).Return(assert.AnError).Once()
	buf.On("PushMailbox", mock.Anything, offlineID, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	// Buffer trouble never surfaces to the sender.
	coordinator.Dispatch(context.Background(), msg, participants)

	buf.AssertExpectations(t)
}

func TestDispatchSenderOnlyRoomFansOutNothing(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	registry := new(mocks.ConnectionRegistryMock)
	coordinator := NewCoordinator(messageRepo, buf, registry, Options{}, nil)

	now := time.Now()
	coordinator.Dispatch(context.Background(), testMessage(), []models.ChatRoomParticipant{
		{RoomID: 7, UserID: senderID, JoinedAt: joined(now)},
	})

	registry.AssertNotCalled(t, "IsReachable", mock.Anything)
	buf.AssertNotCalled(t, "PushRetry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRetryQueueEmpty(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	coordinator := NewCoordinator(messageRepo, buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

	buf.On("PopRetry", mock.Anything, int64(7), offlineID).Return(nil, false, nil).Once()

	_, ok, err := coordinator.ProcessRetryQueue(context.Background(), 7, offlineID)
	require.NoError(t, err)
	assert.False(t, ok)
	messageRepo.AssertNotCalled(t, "GetMessage", mock.Anything, mock.Anything)
}

func TestProcessRetryQueueRehydratesFromDurableStore(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	coordinator := NewCoordinator(messageRepo, buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

	ref := buffer.MessageRef{MessageID: 42, RoomID: 7, SenderID: senderID}
	durable := models.ChatMessage{ID: 42, RoomID: 7, SenderID: senderID, Content: "authoritative"}

	buf.On("PopRetry", mock.Anything, int64(7), offlineID).Return(ref, true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(42)).Return(durable, nil).Once()

	msg, ok, err := coordinator.ProcessRetryQueue(context.Background(), 7, offlineID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "authoritative", msg.Content)
	messageRepo.AssertExpectations(t)
}

func TestProcessRetryQueueDropsVanishedMessages(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	coordinator := NewCoordinator(messageRepo, buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

	ref := buffer.MessageRef{MessageID: 42, RoomID: 7, SenderID: senderID}
	buf.On("PopRetry", mock.Anything, int64(7), offlineID).Return(ref, true, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(42)).Return(models.ChatMessage{}, repositories.ErrMessageNotFound).Once()

	_, ok, err := coordinator.ProcessRetryQueue(context.Background(), 7, offlineID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetRetryCountZeroForNeverRetried(t *testing.T) {
	buf := new(mocks.DeliveryBufferMock)
	coordinator := NewCoordinator(new(mocks.MessageRepositoryMock), buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

	buf.On("RetryCount", mock.Anything, int64(42)).Return(int64(0), nil).Once()

	count, err := coordinator.GetRetryCount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestIsMaxRetryExceededBoundary(t *testing.T) {
	for count := int64(0); count <= 5; count++ {
		buf := new(mocks.DeliveryBufferMock)
		coordinator := NewCoordinator(new(mocks.MessageRepositoryMock), buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

		buf.On("RetryCount", mock.Anything, int64(42)).Return(count, nil).Once()

		exceeded, err := coordinator.IsMaxRetryExceeded(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, count >= 4, exceeded, "count=%d", count)
	}
}

func TestGetOfflineMessagesRehydratesInFIFOOrder(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	coordinator := NewCoordinator(messageRepo, buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

	refs := []buffer.MessageRef{
		{MessageID: 1, RoomID: 7, SenderID: senderID},
		{MessageID: 2, RoomID: 7, SenderID: senderID},
		{MessageID: 3, RoomID: 9, SenderID: onlineID},
	}
	buf.On("ListMailbox", mock.Anything, offlineID).Return(refs, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(1)).Return(models.ChatMessage{ID: 1}, nil).Once()
	// Entry 2 vanished from the durable store; it is skipped, not an error.
	messageRepo.On("GetMessage", mock.Anything, int64(2)).Return(models.ChatMessage{}, repositories.ErrMessageNotFound).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(3)).Return(models.ChatMessage{ID: 3}, nil).Once()

	msgs, err := coordinator.GetOfflineMessages(context.Background(), offlineID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, int64(3), msgs[1].ID)
}

func TestClearOfflineMessages(t *testing.T) {
	buf := new(mocks.DeliveryBufferMock)
	coordinator := NewCoordinator(new(mocks.MessageRepositoryMock), buf, new(mocks.ConnectionRegistryMock), Options{}, nil)

	buf.On("ClearMailbox", mock.Anything, offlineID).Return(nil).Once()

	require.NoError(t, coordinator.ClearOfflineMessages(context.Background(), offlineID))
	buf.AssertExpectations(t)
}

func TestGetUnreadMessageCountDelegates(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	coordinator := NewCoordinator(messageRepo, new(mocks.DeliveryBufferMock), new(mocks.ConnectionRegistryMock), Options{}, nil)

	messageRepo.On("CountMessagesFromOthers", mock.Anything, int64(7), offlineID).Return(int64(12), nil).Once()

	count, err := coordinator.GetUnreadMessageCount(context.Background(), 7, offlineID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}
