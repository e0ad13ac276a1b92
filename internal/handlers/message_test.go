package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/messages/send", handler.SendMessage)
	r.POST("/messages/unsend", handler.UnsendMessage)
	r.POST("/messages/react", handler.ReactToMessage)
	r.GET("/chats/:chat_id/messages", handler.GetMessages)
	r.POST("/typing", handler.Typing)
	r.POST("/polls/vote", handler.VotePoll)
	return r
}

func TestSendMessageDirectSuccess(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewMessageHandler(messages, groups, users, notifier, nil)
	router := setupMessageRouter(handler)

	users.On("AreFriends", mock.Anything, "alice", "bob").Return(true, nil).Once()
	messages.On("SendMessage", mock.Anything, "alice--bob", "alice", "hi", "").
		Return(models.Message{ID: "m1", SenderID: "alice", Text: "hi", Timestamp: 1000}, nil).Once()
	users.On("GetUser", mock.Anything, "alice").Return(models.User{ID: "alice", Name: "Alice"}, nil).Once()
	notifier.On("Publish", mock.Anything, []string{"chat:alice--bob"}, models.EventIncomingMessageDirect, mock.Anything).Return(nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:bob:chats"}, models.EventNewMessage, mock.Anything).Return(nil).Once()

	body := bytes.NewBufferString(`{"chatId":"alice--bob","text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/send", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messages.AssertExpectations(t)
	users.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendMessageNotParticipant(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	body := bytes.NewBufferString(`{"chatId":"bob--carol","text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/send", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendMessageMalformedChatID(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	// Neither a group id nor a pair key: invalid input, not forbidden.
	body := bytes.NewBufferString(`{"chatId":"alice","text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/send", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageNotFriends(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.GroupRepositoryMock), users, nil, nil)
	router := setupMessageRouter(handler)

	users.On("AreFriends", mock.Anything, "alice", "bob").Return(false, nil).Once()

	body := bytes.NewBufferString(`{"chatId":"alice--bob","text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/send", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	users.AssertExpectations(t)
}

func TestSendMessageGroupMembershipChecked(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	groups := new(mocks.GroupRepositoryMock)
	handler := NewMessageHandler(messages, groups, new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	groups.On("IsMember", mock.Anything, "g1", "alice").Return(false, nil).Once()

	body := bytes.NewBufferString(`{"chatId":"group:g1","text":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/send", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groups.AssertExpectations(t)
}

func TestUnsendMessageForbiddenForNonSender(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messages, new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	messages.On("UnsendMessage", mock.Anything, "alice--bob", "alice", "m9").
		Return(models.Message{}, repositories.ErrNotSender).Once()

	body := bytes.NewBufferString(`{"chatId":"alice--bob","messageId":"m9"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/unsend", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertExpectations(t)
}

func TestReactInvalidEmojiRejected(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messages, new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	messages.On("ReactToMessage", mock.Anything, "alice--bob", "alice", "m1", "x").
		Return(models.Message{}, repositories.ErrInvalidEmoji).Once()

	body := bytes.NewBufferString(`{"chatId":"alice--bob","messageId":"m1","emoji":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/messages/react", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesSuccess(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messages, new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	messages.On("ListMessages", mock.Anything, "alice--bob").
		Return([]models.Message{{ID: "m1", SenderID: "alice", Text: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/alice--bob/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	messages.AssertExpectations(t)
}

func TestTypingPublishesAndStoresNothing(t *testing.T) {
	notifier := new(mocks.NotifierMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), notifier, nil)
	router := setupMessageRouter(handler)

	notifier.On("Publish", mock.Anything, []string{"chat:alice--bob:typing"}, models.EventTyping,
		models.TypingEvent{UserID: "alice", IsTyping: true}).Return(nil).Once()

	body := bytes.NewBufferString(`{"chatId":"alice--bob","isTyping":true}`)
	req := httptest.NewRequest(http.MethodPost, "/typing", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	notifier.AssertExpectations(t)
}

func TestVotePollExpiredConflict(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(messages, new(mocks.GroupRepositoryMock), new(mocks.UserRepositoryMock), nil, nil)
	router := setupMessageRouter(handler)

	messages.On("VotePoll", mock.Anything, "alice--bob", "alice", "m1", []string{"o1"}).
		Return(models.Message{}, repositories.ErrPollExpired).Once()

	body := bytes.NewBufferString(`{"chatId":"alice--bob","messageId":"m1","optionIds":["o1"]}`)
	req := httptest.NewRequest(http.MethodPost, "/polls/vote", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}
