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

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/groups", handler.CreateGroup)
	r.GET("/groups", handler.ListGroups)
	r.POST("/groups/:group_id/delete", handler.DeleteGroup)
	r.POST("/groups/:group_id/members/remove", handler.RemoveMember)
	r.POST("/groups/:group_id/leave", handler.LeaveGroup)
	r.POST("/groups/:group_id/join/request", handler.RequestJoin)
	r.POST("/groups/:group_id/join/approve", handler.ApproveJoin)
	return r
}

func TestCreateGroupSuccess(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), notifier, nil)
	router := setupGroupRouter(handler)

	created := models.Group{ID: "g1", Name: "team", Members: []string{"alice", "bob", "carol"}, Admins: []string{"alice"}}
	groups.On("CreateGroup", mock.Anything, "alice", "team", "", []string{"bob", "carol"}).Return(created, nil).Once()
	notifier.On("Publish", mock.Anything,
		[]string{"user:alice:groups", "user:bob:groups", "user:carol:groups"},
		models.EventGroupCreated, created).Return(nil).Once()

	body := bytes.NewBufferString(`{"name":"team","members":["bob","carol"]}`)
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groups.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestCreateGroupTooSmall(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), nil, nil)
	router := setupGroupRouter(handler)

	groups.On("CreateGroup", mock.Anything, "alice", "team", "", []string{"bob"}).
		Return(models.Group{}, repositories.ErrTooFewMembers).Once()

	body := bytes.NewBufferString(`{"name":"team","members":["bob"]}`)
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveMemberDissolutionFanout(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), notifier, nil)
	router := setupGroupRouter(handler)

	groups.On("RemoveMember", mock.Anything, "g1", "alice", "carol").Return(repositories.MembershipChange{
		Removed:   "carol",
		Remaining: []string{"alice", "bob"},
		Dissolved: true,
	}, nil).Once()
	notifier.On("Publish", mock.Anything,
		[]string{"group:g1", "user:carol:groups", "user:alice:groups", "user:bob:groups"},
		models.EventGroupDeleted, models.GroupDeletedEvent{GroupID: "g1"}).Return(nil).Once()

	body := bytes.NewBufferString(`{"memberId":"carol"}`)
	req := httptest.NewRequest(http.MethodPost, "/groups/g1/members/remove", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groups.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRemoveMemberSelf(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), nil, nil)
	router := setupGroupRouter(handler)

	groups.On("RemoveMember", mock.Anything, "g1", "alice", "alice").
		Return(repositories.MembershipChange{}, repositories.ErrSelfRemoval).Once()

	body := bytes.NewBufferString(`{"memberId":"alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/groups/g1/members/remove", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveGroupSurvivorFanout(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), notifier, nil)
	router := setupGroupRouter(handler)

	after := models.Group{ID: "g1", Members: []string{"bob", "carol", "dave"}, Admins: []string{"bob"}}
	groups.On("LeaveGroup", mock.Anything, "g1", "alice").Return(repositories.MembershipChange{
		Group:     after,
		Removed:   "alice",
		Remaining: []string{"bob", "carol", "dave"},
	}, nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:alice:groups"},
		models.EventGroupLeft, models.GroupLeftEvent{GroupID: "g1"}).Return(nil).Once()
	notifier.On("Publish", mock.Anything,
		[]string{"user:bob:groups", "user:carol:groups", "user:dave:groups"},
		models.EventGroupUpdated, after).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/g1/leave", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertExpectations(t)
}

func TestDeleteGroupNotAdmin(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), nil, nil)
	router := setupGroupRouter(handler)

	groups.On("DeleteGroup", mock.Anything, "g1", "alice").Return(nil, repositories.ErrNotAdmin).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/g1/delete", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestJoinNotifiesAdmins(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewGroupHandler(groups, users, notifier, nil)
	router := setupGroupRouter(handler)

	requester := models.User{ID: "alice", Name: "Alice"}
	request := models.JoinRequest{GroupID: "g1", RequesterID: "alice", GroupName: "team"}
	users.On("GetUser", mock.Anything, "alice").Return(requester, nil).Once()
	groups.On("RequestJoin", mock.Anything, "g1", requester).Return(request, true, []string{"bob"}, nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:bob:group_entry_requests"},
		models.EventGroupJoinRequested, request).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/g1/join/request", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	notifier.AssertExpectations(t)
}

func TestRequestJoinDuplicateIsQuiet(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewGroupHandler(groups, users, notifier, nil)
	router := setupGroupRouter(handler)

	requester := models.User{ID: "alice"}
	users.On("GetUser", mock.Anything, "alice").Return(requester, nil).Once()
	groups.On("RequestJoin", mock.Anything, "g1", requester).
		Return(models.JoinRequest{}, false, []string{"bob"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/g1/join/request", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApproveJoinFanout(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	notifier := new(mocks.NotifierMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), notifier, nil)
	router := setupGroupRouter(handler)

	updated := models.Group{ID: "g1", Members: []string{"alice", "bob", "carol", "dave"}, Admins: []string{"alice"}}
	groups.On("ApproveJoin", mock.Anything, "g1", "alice", "dave").Return(updated, 2, nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:dave:groups"},
		models.EventGroupCreated, updated).Return(nil).Once()
	notifier.On("Publish", mock.Anything,
		[]string{"user:alice:groups", "user:bob:groups", "user:carol:groups", "user:dave:groups"},
		models.EventGroupUpdated, updated).Return(nil).Once()
	notifier.On("Publish", mock.Anything, []string{"user:alice:group_entry_requests"},
		models.EventGroupJoinInboxUpdated,
		models.JoinInboxUpdate{Count: 2, Action: "approved", GroupID: "g1", RequesterID: "dave"}).Return(nil).Once()

	body := bytes.NewBufferString(`{"requesterId":"dave"}`)
	req := httptest.NewRequest(http.MethodPost, "/groups/g1/join/approve", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertExpectations(t)
}

func TestListGroups(t *testing.T) {
	groups := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groups, new(mocks.UserRepositoryMock), nil, nil)
	router := setupGroupRouter(handler)

	groups.On("ListGroupsForUser", mock.Anything, "alice").
		Return([]models.Group{{ID: "g1", Name: "team"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groups.AssertExpectations(t)
}
