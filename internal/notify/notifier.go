package notify

import "context"

// Notifier delivers an event to the live subscribers of the named
// channels. Delivery is best-effort: nothing is persisted and only
// currently connected subscribers receive the event. Callers must
// complete all store mutations before publishing.
type Notifier interface {
	Publish(ctx context.Context, channels []string, event string, payload any) error
}

// Noop discards every publish. Useful in tests and tooling.
type Noop struct{}

func (Noop) Publish(context.Context, []string, string, any) error { return nil }

// UserChatsChannel is the personal channel carrying chat-list preview
// updates for a user.
func UserChatsChannel(userID string) string {
	return "user:" + userID + ":chats"
}

// UserGroupsChannel carries group-list lifecycle events for a user.
func UserGroupsChannel(userID string) string {
	return "user:" + userID + ":groups"
}

// UserEntryRequestsChannel carries join-request inbox events for a
// group admin.
func UserEntryRequestsChannel(userID string) string {
	return "user:" + userID + ":group_entry_requests"
}

// UserFriendsChannel carries friend-list updates for a user.
func UserFriendsChannel(userID string) string {
	return "user:" + userID + ":friends"
}

// UserFriendRequestsChannel carries friend-request inbox events for a
// user.
func UserFriendRequestsChannel(userID string) string {
	return "user:" + userID + ":incoming_friend_requests"
}
