package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-delivery-service/internal/middleware"
	"chat-delivery-service/internal/mocks"
	"chat-delivery-service/internal/models"
	"chat-delivery-service/internal/readstate"
)

const otherUserID = "b4f0c9d8-3333-4e5f-8a6b-000000000032"

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, callerID)
		c.Next()
	})
	r.POST("/rooms", handler.CreateRoom)
	r.GET("/rooms", handler.ListRooms)
	r.GET("/rooms/:room_id/unread", handler.GetRoomUnread)
	return r
}

func TestCreateRoomIncludesCaller(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewRoomHandler(roomRepo, newTestCoordinator(messageRepo, new(mocks.DeliveryBufferMock)), readstate.NewTracker(new(mocks.ReadStatusRepositoryMock), nil))
	router := setupRoomRouter(handler)

	roomRepo.On("CreateRoom", mock.Anything, "general", []string{callerID, otherUserID}).
		Return(models.ChatRoom{ID: 3, Name: "general"}, nil).Once()

	body := bytes.NewBufferString(`{"name":"general","participant_ids":["` + otherUserID + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomDeduplicatesCaller(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewRoomHandler(roomRepo, newTestCoordinator(messageRepo, new(mocks.DeliveryBufferMock)), readstate.NewTracker(new(mocks.ReadStatusRepositoryMock), nil))
	router := setupRoomRouter(handler)

	roomRepo.On("CreateRoom", mock.Anything, "solo", []string{callerID}).
		Return(models.ChatRoom{ID: 4, Name: "solo"}, nil).Once()

	body := bytes.NewBufferString(`{"name":"solo","participant_ids":["` + callerID + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestCreateRoomRejectsMalformedParticipant(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewRoomHandler(roomRepo, newTestCoordinator(messageRepo, new(mocks.DeliveryBufferMock)), readstate.NewTracker(new(mocks.ReadStatusRepositoryMock), nil))
	router := setupRoomRouter(handler)

	body := bytes.NewBufferString(`{"name":"general","participant_ids":["not-a-uuid"]}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	roomRepo.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestListRoomsSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewRoomHandler(roomRepo, newTestCoordinator(messageRepo, new(mocks.DeliveryBufferMock)), readstate.NewTracker(new(mocks.ReadStatusRepositoryMock), nil))
	router := setupRoomRouter(handler)

	roomRepo.On("ListRoomsForUser", mock.Anything, callerID).Return([]models.ChatRoom{
		{ID: 1, Name: "general"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestGetRoomUnreadBothCounts(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	readRepo := new(mocks.ReadStatusRepositoryMock)
	handler := NewRoomHandler(roomRepo, newTestCoordinator(messageRepo, new(mocks.DeliveryBufferMock)), readstate.NewTracker(readRepo, nil))
	router := setupRoomRouter(handler)

	lastRead := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	roomRepo.On("IsParticipant", mock.Anything, int64(5), callerID).Return(true, nil).Once()
	readRepo.On("CountUnreadInRoom", mock.Anything, int64(5), callerID, lastRead).Return(int64(4), nil).Once()
	messageRepo.On("CountMessagesFromOthers", mock.Anything, int64(5), callerID).Return(int64(9), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/unread?last_read=2026-08-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(4), resp["unread"])
	assert.Equal(t, int64(9), resp["messages_from_others"])
}

func TestGetRoomUnreadInvalidLastRead(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewRoomHandler(roomRepo, newTestCoordinator(messageRepo, new(mocks.DeliveryBufferMock)), readstate.NewTracker(new(mocks.ReadStatusRepositoryMock), nil))
	router := setupRoomRouter(handler)

	roomRepo.On("IsParticipant", mock.Anything, int64(5), callerID).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/5/unread?last_read=yesterday", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
