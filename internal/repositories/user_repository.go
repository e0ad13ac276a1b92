package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrSelfFriend       = errors.New("cannot befriend yourself")
	ErrAlreadyFriends   = errors.New("already friends")
	ErrAlreadyRequested = errors.New("friend request already pending")
	ErrNoFriendRequest  = errors.New("no pending friend request")
)

// Friendship is the outcome of accepting a friend request. Already is
// set when the pair was friends before the call; the pending request
// is still cleaned up, but no announcement is due.
type Friendship struct {
	User    models.User
	Friend  models.User
	Already bool
}

// UserRepository owns account reads and the friendship graph. Account
// records themselves belong to the auth layer; friend sets and the
// friend-request inbox are mutated here.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	ResolveEmail(ctx context.Context, email string) (string, error)
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
	ListFriends(ctx context.Context, userID string) ([]models.User, error)
	RequestFriend(ctx context.Context, userID, targetID string) (models.User, error)
	AcceptFriend(ctx context.Context, userID, requesterID string) (Friendship, error)
	DenyFriend(ctx context.Context, userID, requesterID string) error
	ListFriendRequests(ctx context.Context, userID string) ([]models.User, error)
}

// UserRepo is the Store-backed UserRepository.
type UserRepo struct {
	store store.Store
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(st store.Store) *UserRepo {
	return &UserRepo{store: st}
}

func friendsKey(userID string) string        { return "user:" + userID + ":friends" }
func friendRequestsKey(userID string) string { return "user:" + userID + ":incoming_friend_requests" }

// GetUser loads user:{id}.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	raw, err := r.store.Get(ctx, "user:"+userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return models.User{}, ErrUserNotFound
	}
	if user.ID == "" {
		user.ID = userID
	}
	return user, nil
}

// ResolveEmail maps an email address to a user id via the
// user:email:{email} lookup record.
func (r *UserRepo) ResolveEmail(ctx context.Context, email string) (string, error) {
	id, err := r.store.Get(ctx, "user:email:"+email)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrUserNotFound
	}
	return id, nil
}

// AreFriends checks the caller's friend set.
func (r *UserRepo) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	return r.store.SIsMember(ctx, friendsKey(userID), otherID)
}

// ListFriends returns the caller's friends as display records.
func (r *UserRepo) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	ids, err := r.store.SMembers(ctx, friendsKey(userID))
	if err != nil {
		return nil, err
	}
	return r.loadUsers(ctx, ids)
}

// RequestFriend records a pending request in the target's inbox and
// returns the sender's display record for the fan-out event. Repeat
// requests and requests between existing friends are rejected.
func (r *UserRepo) RequestFriend(ctx context.Context, userID, targetID string) (models.User, error) {
	if targetID == userID {
		return models.User{}, ErrSelfFriend
	}

	requested, err := r.store.SIsMember(ctx, friendRequestsKey(targetID), userID)
	if err != nil {
		return models.User{}, err
	}
	if requested {
		return models.User{}, ErrAlreadyRequested
	}

	friends, err := r.AreFriends(ctx, userID, targetID)
	if err != nil {
		return models.User{}, err
	}
	if friends {
		return models.User{}, ErrAlreadyFriends
	}

	if err := r.store.SAdd(ctx, friendRequestsKey(targetID), userID); err != nil {
		return models.User{}, fmt.Errorf("record friend request: %w", err)
	}

	sender, err := r.GetUser(ctx, userID)
	if err != nil {
		sender = models.User{ID: userID}
	}
	return sender, nil
}

// AcceptFriend makes the friendship symmetric and clears the pending
// request. Accepting a requester who is already a friend only cleans
// up the request.
func (r *UserRepo) AcceptFriend(ctx context.Context, userID, requesterID string) (Friendship, error) {
	already, err := r.AreFriends(ctx, userID, requesterID)
	if err != nil {
		return Friendship{}, err
	}
	if already {
		if err := r.store.SRem(ctx, friendRequestsKey(userID), requesterID); err != nil {
			return Friendship{}, fmt.Errorf("clear friend request: %w", err)
		}
		return Friendship{Already: true}, nil
	}

	pending, err := r.store.SIsMember(ctx, friendRequestsKey(userID), requesterID)
	if err != nil {
		return Friendship{}, err
	}
	if !pending {
		return Friendship{}, ErrNoFriendRequest
	}

	if err := r.store.SAdd(ctx, friendsKey(userID), requesterID); err != nil {
		return Friendship{}, fmt.Errorf("record friendship: %w", err)
	}
	if err := r.store.SAdd(ctx, friendsKey(requesterID), userID); err != nil {
		return Friendship{}, fmt.Errorf("record friendship: %w", err)
	}
	if err := r.store.SRem(ctx, friendRequestsKey(userID), requesterID); err != nil {
		return Friendship{}, fmt.Errorf("clear friend request: %w", err)
	}

	result := Friendship{User: models.User{ID: userID}, Friend: models.User{ID: requesterID}}
	if user, err := r.GetUser(ctx, userID); err == nil {
		result.User = user
	}
	if friend, err := r.GetUser(ctx, requesterID); err == nil {
		result.Friend = friend
	}
	return result, nil
}

// DenyFriend drops a pending request. Denying a request that never
// existed is a successful no-op.
func (r *UserRepo) DenyFriend(ctx context.Context, userID, requesterID string) error {
	return r.store.SRem(ctx, friendRequestsKey(userID), requesterID)
}

// ListFriendRequests returns the caller's pending requesters as
// display records.
func (r *UserRepo) ListFriendRequests(ctx context.Context, userID string) ([]models.User, error) {
	ids, err := r.store.SMembers(ctx, friendRequestsKey(userID))
	if err != nil {
		return nil, err
	}
	return r.loadUsers(ctx, ids)
}

// loadUsers resolves ids to display records, keeping a bare id record
// for accounts whose payload is missing or malformed.
func (r *UserRepo) loadUsers(ctx context.Context, ids []string) ([]models.User, error) {
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		user, err := r.GetUser(ctx, id)
		if err != nil {
			user = models.User{ID: id}
		}
		users = append(users, user)
	}
	return users, nil
}

var _ UserRepository = (*UserRepo)(nil)
