package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/models"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// FriendHandler manages the friendship graph endpoints: sending,
// accepting and denying friend requests, and listing both sides.
type FriendHandler struct {
	users    repositories.UserRepository
	notifier notify.Notifier
	audit    *telemetry.AuditEmitter
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(users repositories.UserRepository, notifier notify.Notifier, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{users: users, notifier: notifier, audit: audit}
}

// AddFriend sends a friend request to a user named by id or email and
// alerts the target's request inbox.
func (h *FriendHandler) AddFriend(c *gin.Context) {
	var req struct {
		FriendID string `json:"friendId"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	targetID := req.FriendID
	if targetID == "" && req.Email != "" {
		id, err := h.users.ResolveEmail(c.Request.Context(), req.Email)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "this person does not exist"})
			return
		}
		targetID = id
	}
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide friendId or email"})
		return
	}

	sender, err := h.users.RequestFriend(c.Request.Context(), userID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrSelfFriend):
			c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot add yourself as a friend"})
		case errors.Is(err, repositories.ErrAlreadyRequested):
			c.JSON(http.StatusConflict, gin.H{"error": "already requested this user"})
		case errors.Is(err, repositories.ErrAlreadyFriends):
			c.JSON(http.StatusConflict, gin.H{"error": "already friends with this user"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send friend request"})
		}
		return
	}

	h.publish(c, []string{notify.UserFriendRequestsChannel(targetID)},
		models.EventIncomingFriendRequest,
		models.FriendRequestEvent{SenderID: userID, SenderEmail: sender.Email})
	h.emitAudit(c, "INFO", "friend request sent")
	c.JSON(http.StatusCreated, gin.H{"requested": true})
}

// AcceptFriend admits a pending requester into the caller's friend
// set and tells both sides their friend list changed.
func (h *FriendHandler) AcceptFriend(c *gin.Context) {
	var req struct {
		RequesterID string `json:"requesterId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	friendship, err := h.users.AcceptFriend(c.Request.Context(), userID, req.RequesterID)
	if err != nil {
		if errors.Is(err, repositories.ErrNoFriendRequest) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending friend request"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept friend request"})
		return
	}

	if !friendship.Already {
		h.publish(c, []string{notify.UserFriendsChannel(userID)}, models.EventNewFriend, friendship.Friend)
		h.publish(c, []string{notify.UserFriendsChannel(req.RequesterID)}, models.EventNewFriend, friendship.User)
	}
	h.emitAudit(c, "INFO", "friend request accepted")
	c.JSON(http.StatusOK, gin.H{"accepted": true, "friend": friendship.Friend})
}

// DenyFriend discards a pending request. Idempotent.
func (h *FriendHandler) DenyFriend(c *gin.Context) {
	var req struct {
		RequesterID string `json:"requesterId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if err := h.users.DenyFriend(c.Request.Context(), userID, req.RequesterID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deny friend request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"denied": true})
}

// ListFriends returns the caller's friends.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID := c.GetString("userID")
	friends, err := h.users.ListFriends(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friends"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// FriendRequests returns the caller's pending requesters.
func (h *FriendHandler) FriendRequests(c *gin.Context) {
	userID := c.GetString("userID")
	incoming, err := h.users.ListFriendRequests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friend requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incoming": incoming})
}

func (h *FriendHandler) publish(c *gin.Context, channels []string, event string, payload any) {
	if h.notifier == nil {
		return
	}
	observability.IncEventPublished(event)
	_ = h.notifier.Publish(c.Request.Context(), channels, event, payload)
}

func (h *FriendHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
