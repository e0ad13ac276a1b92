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

func setupFriendRouter(handler *FriendHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/friends/add", handler.AddFriend)
	r.POST("/friends/accept", handler.AcceptFriend)
	r.POST("/friends/deny", handler.DenyFriend)
	r.GET("/friends", handler.ListFriends)
	r.GET("/friends/requests", handler.FriendRequests)
	return r
}

func TestAddFriendByIDNotifiesTarget(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewFriendHandler(users, notifier, nil)
	router := setupFriendRouter(handler)

	users.On("RequestFriend", mock.Anything, "alice", "bob").
		Return(models.User{ID: "alice", Email: "alice@example.com"}, nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:bob:incoming_friend_requests"},
		models.EventIncomingFriendRequest,
		models.FriendRequestEvent{SenderID: "alice", SenderEmail: "alice@example.com"}).Return(nil).Once()

	body := bytes.NewBufferString(`{"friendId":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/add", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	users.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAddFriendByEmailResolvesTarget(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewFriendHandler(users, nil, nil)
	router := setupFriendRouter(handler)

	users.On("ResolveEmail", mock.Anything, "bob@example.com").Return("bob", nil).Once()
	users.On("RequestFriend", mock.Anything, "alice", "bob").
		Return(models.User{ID: "alice"}, nil).Once()

	body := bytes.NewBufferString(`{"email":"bob@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/add", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	users.AssertExpectations(t)
}

func TestAddFriendUnknownEmail(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewFriendHandler(users, nil, nil)
	router := setupFriendRouter(handler)

	users.On("ResolveEmail", mock.Anything, "ghost@example.com").
		Return("", repositories.ErrUserNotFound).Once()

	body := bytes.NewBufferString(`{"email":"ghost@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/add", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddFriendAlreadyRequested(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewFriendHandler(users, nil, nil)
	router := setupFriendRouter(handler)

	users.On("RequestFriend", mock.Anything, "alice", "bob").
		Return(models.User{}, repositories.ErrAlreadyRequested).Once()

	body := bytes.NewBufferString(`{"friendId":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/add", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAcceptFriendNotifiesBothSides(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewFriendHandler(users, notifier, nil)
	router := setupFriendRouter(handler)

	friendship := repositories.Friendship{
		User:   models.User{ID: "alice", Name: "Alice"},
		Friend: models.User{ID: "bob", Name: "Bob"},
	}
	users.On("AcceptFriend", mock.Anything, "alice", "bob").Return(friendship, nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:alice:friends"},
		models.EventNewFriend, friendship.Friend).Return(nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:bob:friends"},
		models.EventNewFriend, friendship.User).Return(nil).Once()

	body := bytes.NewBufferString(`{"requesterId":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/accept", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertExpectations(t)
}

func TestAcceptFriendAlreadyFriendsIsQuiet(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewFriendHandler(users, notifier, nil)
	router := setupFriendRouter(handler)

	users.On("AcceptFriend", mock.Anything, "alice", "bob").
		Return(repositories.Friendship{Already: true}, nil).Once()

	body := bytes.NewBufferString(`{"requesterId":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/accept", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptFriendWithoutRequestIs404(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewFriendHandler(users, nil, nil)
	router := setupFriendRouter(handler)

	users.On("AcceptFriend", mock.Anything, "alice", "bob").
		Return(repositories.Friendship{}, repositories.ErrNoFriendRequest).Once()

	body := bytes.NewBufferString(`{"requesterId":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/accept", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDenyFriend(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewFriendHandler(users, nil, nil)
	router := setupFriendRouter(handler)

	users.On("DenyFriend", mock.Anything, "alice", "bob").Return(nil).Once()

	body := bytes.NewBufferString(`{"requesterId":"bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/friends/deny", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	users.AssertExpectations(t)
}

func TestFriendRequestsList(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	handler := NewFriendHandler(users, nil, nil)
	router := setupFriendRouter(handler)

	users.On("ListFriendRequests", mock.Anything, "alice").
		Return([]models.User{{ID: "bob", Name: "Bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/friends/requests", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"incoming"`)
	users.AssertExpectations(t)
}
