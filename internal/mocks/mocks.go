package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) SendMessage(ctx context.Context, conversationID, senderID, text, image string) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, text, image)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UnsendMessage(ctx context.Context, conversationID, actorID, messageID string) (models.Message, error) {
	args := m.Called(ctx, conversationID, actorID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ReactToMessage(ctx context.Context, conversationID, actorID, messageID, emoji string) (models.Message, error) {
	args := m.Called(ctx, conversationID, actorID, messageID, emoji)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) CreatePoll(ctx context.Context, conversationID, senderID string, def repositories.PollDefinition) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, def)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) VotePoll(ctx context.Context, conversationID, actorID, messageID string, optionIDs []string) (models.Message, error) {
	args := m.Called(ctx, conversationID, actorID, messageID, optionIDs)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, description, memberIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID, actorID, name, description string) (models.Group, error) {
	args := m.Called(ctx, groupID, actorID, name, description)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) AddMembers(ctx context.Context, groupID, actorID string, memberIDs []string) (models.Group, []string, error) {
	args := m.Called(ctx, groupID, actorID, memberIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	var added []string
	if val := args.Get(1); val != nil {
		added = val.([]string)
	}
	return group, added, args.Error(2)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, actorID, targetID string) (repositories.MembershipChange, error) {
	args := m.Called(ctx, groupID, actorID, targetID)
	var change repositories.MembershipChange
	if val := args.Get(0); val != nil {
		change = val.(repositories.MembershipChange)
	}
	return change, args.Error(1)
}

func (m *GroupRepositoryMock) LeaveGroup(ctx context.Context, groupID, actorID string) (repositories.MembershipChange, error) {
	args := m.Called(ctx, groupID, actorID)
	var change repositories.MembershipChange
	if val := args.Get(0); val != nil {
		change = val.(repositories.MembershipChange)
	}
	return change, args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID, actorID string) ([]string, error) {
	args := m.Called(ctx, groupID, actorID)
	var members []string
	if val := args.Get(0); val != nil {
		members = val.([]string)
	}
	return members, args.Error(1)
}

func (m *GroupRepositoryMock) RequestJoin(ctx context.Context, groupID string, requester models.User) (models.JoinRequest, bool, []string, error) {
	args := m.Called(ctx, groupID, requester)
	var request models.JoinRequest
	if val := args.Get(0); val != nil {
		request = val.(models.JoinRequest)
	}
	var admins []string
	if val := args.Get(2); val != nil {
		admins = val.([]string)
	}
	return request, args.Bool(1), admins, args.Error(3)
}

func (m *GroupRepositoryMock) ApproveJoin(ctx context.Context, groupID, adminID, requesterID string) (models.Group, int, error) {
	args := m.Called(ctx, groupID, adminID, requesterID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Int(1), args.Error(2)
}

func (m *GroupRepositoryMock) DenyJoin(ctx context.Context, groupID, adminID, requesterID string) (int, error) {
	args := m.Called(ctx, groupID, adminID, requesterID)
	return args.Int(0), args.Error(1)
}

func (m *GroupRepositoryMock) PendingRequests(ctx context.Context, adminID string) ([]models.JoinRequest, error) {
	args := m.Called(ctx, adminID)
	var requests []models.JoinRequest
	if val := args.Get(0); val != nil {
		requests = val.([]models.JoinRequest)
	}
	return requests, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ResolveEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *UserRepositoryMock) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	args := m.Called(ctx, userID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) RequestFriend(ctx context.Context, userID, targetID string) (models.User, error) {
	args := m.Called(ctx, userID, targetID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) AcceptFriend(ctx context.Context, userID, requesterID string) (repositories.Friendship, error) {
	args := m.Called(ctx, userID, requesterID)
	var friendship repositories.Friendship
	if val := args.Get(0); val != nil {
		friendship = val.(repositories.Friendship)
	}
	return friendship, args.Error(1)
}

func (m *UserRepositoryMock) DenyFriend(ctx context.Context, userID, requesterID string) error {
	args := m.Called(ctx, userID, requesterID)
	return args.Error(0)
}

func (m *UserRepositoryMock) ListFriendRequests(ctx context.Context, userID string) ([]models.User, error) {
	args := m.Called(ctx, userID)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type ImageRepositoryMock struct {
	mock.Mock
}

func (m *ImageRepositoryMock) SaveImage(ctx context.Context, mime string, data []byte) (string, error) {
	args := m.Called(ctx, mime, data)
	return args.String(0), args.Error(1)
}

func (m *ImageRepositoryMock) GetImage(ctx context.Context, id string) (string, []byte, error) {
	args := m.Called(ctx, id)
	var data []byte
	if val := args.Get(1); val != nil {
		data = val.([]byte)
	}
	return args.String(0), data, args.Error(2)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Publish(ctx context.Context, channels []string, event string, payload any) error {
	args := m.Called(ctx, channels, event, payload)
	return args.Error(0)
}
