package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-delivery-service/internal/buffer"
	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/mocks"
	"chat-delivery-service/internal/models"
)

func setupMailboxRouter(handler *MailboxHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, callerID)
		c.Next()
	})
	r.POST("/mailbox/flush", handler.FlushMailbox)
	return r
}

func TestFlushMailboxReturnsAndClears(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	handler := NewMailboxHandler(newTestCoordinator(messageRepo, buf))
	router := setupMailboxRouter(handler)

	buf.On("ListMailbox", mock.Anything, callerID).Return([]buffer.MessageRef{
		{MessageID: 1, RoomID: 5, SenderID: callerID},
		{MessageID: 2, RoomID: 5, SenderID: callerID},
	}, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(1)).Return(models.ChatMessage{ID: 1, RoomID: 5}, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(2)).Return(models.ChatMessage{ID: 2, RoomID: 5}, nil).Once()
	buf.On("ClearMailbox", mock.Anything, callerID).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/mailbox/flush", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, int64(1), resp.Messages[0].ID)
	buf.AssertExpectations(t)
}

func TestFlushMailboxEmpty(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	handler := NewMailboxHandler(newTestCoordinator(messageRepo, buf))
	router := setupMailboxRouter(handler)

	buf.On("ListMailbox", mock.Anything, callerID).Return(nil, nil).Once()
	buf.On("ClearMailbox", mock.Anything, callerID).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/mailbox/flush", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Messages)
	assert.Empty(t, resp.Messages)
}

func TestFlushMailboxListError(t *testing.T) {
	messageRepo := new(mocks.MessageRepositoryMock)
	buf := new(mocks.DeliveryBufferMock)
	handler := NewMailboxHandler(newTestCoordinator(messageRepo, buf))
	router := setupMailboxRouter(handler)

	buf.On("ListMailbox", mock.Anything, callerID).Return(nil, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/mailbox/flush", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	buf.AssertNotCalled(t, "ClearMailbox", mock.Anything, mock.Anything)
}
