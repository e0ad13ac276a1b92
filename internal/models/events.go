package models

// Event names published on conversation and per-user channels. These
// strings are a client compatibility surface; do not rename casually.
// Direct chats use kebab-case, groups snake_case.
const (
	EventIncomingMessageDirect = "incoming-message"
	EventMessageUpdatedDirect  = "message-updated"
	EventPollUpdatedDirect     = "poll-updated"

	EventIncomingMessageGroup = "incoming_message"
	EventMessageUpdatedGroup  = "message_updated"
	EventPollUpdatedGroup     = "poll_updated"

	EventNewMessage = "new_message"

	EventGroupCreated = "group_created"
	EventGroupUpdated = "group_updated"
	EventGroupDeleted = "group_deleted"
	EventGroupLeft    = "group_left"

	EventGroupJoinRequested    = "group_join_requested"
	EventGroupJoinInboxUpdated = "group_join_inbox_updated"

	EventIncomingFriendRequest = "incoming_friend_requests"
	EventNewFriend             = "new_friend"

	EventTyping = "typing"
)

// IncomingMessageEvent picks the "new message" event name for a
// conversation kind.
func IncomingMessageEvent(group bool) string {
	if group {
		return EventIncomingMessageGroup
	}
	return EventIncomingMessageDirect
}

// MessageUpdatedEvent picks the replace-in-place event name for a
// conversation kind.
func MessageUpdatedEvent(group bool) string {
	if group {
		return EventMessageUpdatedGroup
	}
	return EventMessageUpdatedDirect
}

// PollUpdatedEvent picks the poll update event name for a conversation
// kind.
func PollUpdatedEvent(group bool) string {
	if group {
		return EventPollUpdatedGroup
	}
	return EventPollUpdatedDirect
}

// InboxMessage decorates a message with sender display metadata for
// chat-list previews on the recipient's personal channel.
type InboxMessage struct {
	Message
	SenderName string `json:"senderName,omitempty"`
	SenderImg  string `json:"senderImg,omitempty"`
}

// FriendRequestEvent lands on the target's friend-request inbox
// channel when someone asks to connect.
type FriendRequestEvent struct {
	SenderID    string `json:"senderId"`
	SenderEmail string `json:"senderEmail"`
}

// TypingEvent is the fire-and-forget typing indicator payload.
type TypingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// GroupDeletedEvent tells subscribers a group ceased to exist.
type GroupDeletedEvent struct {
	GroupID string `json:"groupId"`
}

// GroupLeftEvent tells a removed member which group they left.
type GroupLeftEvent struct {
	GroupID string `json:"groupId"`
}

// JoinInboxUpdate carries the admin's remaining pending-request count.
type JoinInboxUpdate struct {
	Count       int    `json:"count"`
	Action      string `json:"action"`
	GroupID     string `json:"groupId"`
	RequesterID string `json:"requesterId"`
}
