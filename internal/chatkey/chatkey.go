package chatkey

import (
	"fmt"
	"strings"
)

// GroupPrefix marks a conversation id as belonging to a group.
const GroupPrefix = "group:"

// DirectChatKey derives the conversation id for a pair of users. The
// ids are sorted first so both participants derive the same key.
func DirectChatKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "--" + userB
}

// IsGroup reports whether a conversation id names a group chat.
func IsGroup(conversationID string) bool {
	return strings.HasPrefix(conversationID, GroupPrefix)
}

// GroupID extracts the group id from a group conversation id.
func GroupID(conversationID string) string {
	return strings.TrimPrefix(conversationID, GroupPrefix)
}

// GroupConversationID builds the conversation id for a group.
func GroupConversationID(groupID string) string {
	return GroupPrefix + groupID
}

// DirectParticipants splits a direct conversation id into its two
// participant ids.
func DirectParticipants(conversationID string) (string, string, error) {
	parts := strings.Split(conversationID, "--")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid direct chat id %q", conversationID)
	}
	return parts[0], parts[1], nil
}

// IsDirectParticipant reports whether userID is one of the two
// participants encoded in a direct conversation id.
func IsDirectParticipant(conversationID, userID string) bool {
	a, b, err := DirectParticipants(conversationID)
	if err != nil {
		return false
	}
	return userID == a || userID == b
}

// MessagesKey returns the sorted-set key holding the conversation log.
func MessagesKey(conversationID string) string {
	if IsGroup(conversationID) {
		return GroupPrefix + GroupID(conversationID) + ":messages"
	}
	return "chat:" + conversationID + ":messages"
}

// Channel returns the live fan-out channel for a conversation.
func Channel(conversationID string) string {
	if IsGroup(conversationID) {
		return GroupPrefix + GroupID(conversationID)
	}
	return "chat:" + conversationID
}

// TypingChannel returns the ephemeral typing-indicator channel.
func TypingChannel(conversationID string) string {
	return Channel(conversationID) + ":typing"
}
