package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/chatkey"
	"messenger-service/internal/models"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// MessageHandler manages conversation log endpoints for both direct
// and group chats. Every mutation writes the store first and fans out
// events after; a subscriber that misses an event reconciles on the
// next full read.
type MessageHandler struct {
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	notifier notify.Notifier
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages repositories.MessageRepository, groups repositories.GroupRepository, users repositories.UserRepository, notifier notify.Notifier, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		groups:   groups,
		users:    users,
		notifier: notifier,
		audit:    audit,
	}
}

// GetMessages returns the conversation log for a chat the caller
// participates in.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("chat_id")
	userID := c.GetString("userID")

	if _, ok := h.authorizeConversation(c, conversationID, userID); !ok {
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage stores a message and notifies the conversation channel
// plus each recipient's chat-list channel.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ChatID string `json:"chatId" binding:"required"`
		Text   string `json:"text"`
		Image  string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	isGroup, ok := h.authorizeConversation(c, req.ChatID, userID)
	if !ok {
		return
	}
	if !isGroup && !h.authorizeFriendship(c, req.ChatID, userID) {
		return
	}

	msg, err := h.messages.SendMessage(c.Request.Context(), req.ChatID, userID, req.Text, req.Image)
	if err != nil {
		if errors.Is(err, models.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.publish(c, []string{chatkey.Channel(req.ChatID)}, models.IncomingMessageEvent(isGroup), msg)
	h.notifyRecipients(c, req.ChatID, isGroup, userID, msg)
	h.emitAudit(c, "INFO", "message sent")
	c.JSON(http.StatusCreated, msg)
}

// UnsendMessage tombstones a message for everyone. Sender only.
func (h *MessageHandler) UnsendMessage(c *gin.Context) {
	var req struct {
		ChatID    string `json:"chatId" binding:"required"`
		MessageID string `json:"messageId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	isGroup, ok := h.authorizeConversation(c, req.ChatID, userID)
	if !ok {
		return
	}

	msg, err := h.messages.UnsendMessage(c.Request.Context(), req.ChatID, userID, req.MessageID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrNotSender):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can unsend"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unsend message"})
		}
		return
	}

	h.publish(c, []string{chatkey.Channel(req.ChatID)}, models.MessageUpdatedEvent(isGroup), msg)
	h.emitAudit(c, "INFO", "message unsent")
	c.JSON(http.StatusOK, msg)
}

// ReactToMessage toggles the caller's emoji reaction on a message.
func (h *MessageHandler) ReactToMessage(c *gin.Context) {
	var req struct {
		ChatID    string `json:"chatId" binding:"required"`
		MessageID string `json:"messageId" binding:"required"`
		Emoji     string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	isGroup, ok := h.authorizeConversation(c, req.ChatID, userID)
	if !ok {
		return
	}

	msg, err := h.messages.ReactToMessage(c.Request.Context(), req.ChatID, userID, req.MessageID, req.Emoji)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case errors.Is(err, repositories.ErrInvalidEmoji):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emoji"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to react"})
		}
		return
	}

	h.publish(c, []string{chatkey.Channel(req.ChatID)}, models.MessageUpdatedEvent(isGroup), msg)
	c.JSON(http.StatusOK, msg)
}

// Typing forwards a typing indicator to the conversation's typing
// channel. Nothing is stored.
func (h *MessageHandler) Typing(c *gin.Context) {
	var req struct {
		ChatID   string `json:"chatId" binding:"required"`
		IsTyping bool   `json:"isTyping"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if _, ok := h.authorizeConversation(c, req.ChatID, userID); !ok {
		return
	}

	h.publish(c, []string{chatkey.TypingChannel(req.ChatID)}, models.EventTyping, models.TypingEvent{UserID: userID, IsTyping: req.IsTyping})
	c.Status(http.StatusNoContent)
}

// CreatePoll appends a poll message to the conversation log.
func (h *MessageHandler) CreatePoll(c *gin.Context) {
	var req struct {
		ChatID             string   `json:"chatId" binding:"required"`
		Question           string   `json:"question" binding:"required"`
		Options            []string `json:"options" binding:"required"`
		AllowMultipleVotes bool     `json:"allowMultipleVotes"`
		Anonymous          bool     `json:"anonymous"`
		ExpiresIn          int      `json:"expiresIn"` // seconds
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	isGroup, ok := h.authorizeConversation(c, req.ChatID, userID)
	if !ok {
		return
	}

	msg, err := h.messages.CreatePoll(c.Request.Context(), req.ChatID, userID, repositories.PollDefinition{
		Question:           req.Question,
		Options:            req.Options,
		AllowMultipleVotes: req.AllowMultipleVotes,
		Anonymous:          req.Anonymous,
		ExpiresIn:          time.Duration(req.ExpiresIn) * time.Second,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrPollInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a poll needs a question and at least two options"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create poll"})
		return
	}

	h.publish(c, []string{chatkey.Channel(req.ChatID)}, models.IncomingMessageEvent(isGroup), msg)
	h.notifyRecipients(c, req.ChatID, isGroup, userID, msg)
	h.emitAudit(c, "INFO", "poll created")
	c.JSON(http.StatusCreated, msg)
}

// VotePoll replaces the caller's poll selection.
func (h *MessageHandler) VotePoll(c *gin.Context) {
	var req struct {
		ChatID    string   `json:"chatId" binding:"required"`
		MessageID string   `json:"messageId" binding:"required"`
		OptionIDs []string `json:"optionIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	isGroup, ok := h.authorizeConversation(c, req.ChatID, userID)
	if !ok {
		return
	}

	msg, err := h.messages.VotePoll(c.Request.Context(), req.ChatID, userID, req.MessageID, req.OptionIDs)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrMessageNotFound), errors.Is(err, repositories.ErrPollNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "poll not found"})
		case errors.Is(err, repositories.ErrPollExpired):
			c.JSON(http.StatusConflict, gin.H{"error": "poll has expired"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to vote"})
		}
		return
	}

	h.publish(c, []string{chatkey.Channel(req.ChatID)}, models.PollUpdatedEvent(isGroup), msg)
	c.JSON(http.StatusOK, msg)
}

// authorizeConversation classifies the conversation id and verifies
// the caller may act in it. On failure the response is already
// written.
func (h *MessageHandler) authorizeConversation(c *gin.Context, conversationID, userID string) (bool, bool) {
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return false, false
	}

	if chatkey.IsGroup(conversationID) {
		member, err := h.groups.IsMember(c.Request.Context(), chatkey.GroupID(conversationID), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
			return true, false
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
			return true, false
		}
		return true, true
	}

	a, b, err := chatkey.DirectParticipants(conversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return false, false
	}
	if userID != a && userID != b {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return false, false
	}
	return false, true
}

// authorizeFriendship rejects direct sends to users outside the
// caller's friend set.
func (h *MessageHandler) authorizeFriendship(c *gin.Context, conversationID, userID string) bool {
	a, b, err := chatkey.DirectParticipants(conversationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return false
	}
	other := a
	if other == userID {
		other = b
	}

	friends, err := h.users.AreFriends(c.Request.Context(), userID, other)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate friendship"})
		return false
	}
	if !friends {
		c.JSON(http.StatusForbidden, gin.H{"error": "users are not friends"})
		return false
	}
	return true
}

// notifyRecipients pushes a chat-list preview to every recipient's
// personal channel.
func (h *MessageHandler) notifyRecipients(c *gin.Context, conversationID string, isGroup bool, senderID string, msg models.Message) {
	if h.notifier == nil {
		return
	}
	inbox := models.InboxMessage{Message: msg}
	if sender, err := h.users.GetUser(c.Request.Context(), senderID); err == nil {
		inbox.SenderName = sender.Name
		inbox.SenderImg = sender.Image
	}

	var recipients []string
	if isGroup {
		group, err := h.groups.GetGroup(c.Request.Context(), chatkey.GroupID(conversationID))
		if err != nil {
			return
		}
		for _, id := range group.Members {
			if id != senderID {
				recipients = append(recipients, id)
			}
		}
	} else {
		a, b, err := chatkey.DirectParticipants(conversationID)
		if err != nil {
			return
		}
		other := a
		if other == senderID {
			other = b
		}
		recipients = []string{other}
	}

	channels := make([]string, 0, len(recipients))
	for _, id := range recipients {
		channels = append(channels, notify.UserChatsChannel(id))
	}
	h.publish(c, channels, models.EventNewMessage, inbox)
}

func (h *MessageHandler) publish(c *gin.Context, channels []string, event string, payload any) {
	if h.notifier == nil {
		return
	}
	observability.IncEventPublished(event)
	_ = h.notifier.Publish(c.Request.Context(), channels, event, payload)
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
