package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/chatkey"
	"messenger-service/internal/models"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// GroupHandler manages group lifecycle and membership endpoints.
type GroupHandler struct {
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	notifier notify.Notifier
	audit    *telemetry.AuditEmitter
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, users repositories.UserRepository, notifier notify.Notifier, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groups, users: users, notifier: notifier, audit: audit}
}

// CreateGroup creates a group with the caller as admin and tells every
// founding member about it.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		Members     []string `json:"members" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	group, err := h.groups.CreateGroup(c.Request.Context(), userID, req.Name, req.Description, req.Members)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTooFewMembers):
			c.JSON(http.StatusBadRequest, gin.H{"error": "a group needs at least three members"})
		case errors.Is(err, repositories.ErrGroupName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "group name is required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		}
		return
	}

	h.publishToUsers(c, group.Members, notify.UserGroupsChannel, models.EventGroupCreated, group)
	h.emitAudit(c, "INFO", "group created")
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns the caller's groups.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetString("userID")
	groups, err := h.groups.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns one group the caller belongs to.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := c.GetString("userID")

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		h.respondGroupError(c, err)
		return
	}
	if !group.HasMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup renames a group. Admin only.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID := c.Param("group_id")
	userID := c.GetString("userID")
	group, err := h.groups.UpdateGroup(c.Request.Context(), groupID, userID, req.Name, req.Description)
	if err != nil {
		h.respondGroupError(c, err)
		return
	}

	h.publishToUsers(c, group.Members, notify.UserGroupsChannel, models.EventGroupUpdated, group)
	c.JSON(http.StatusOK, group)
}

// AddMembers adds users to a group. Admin only. New members learn
// about the group the same way founders do.
func (h *GroupHandler) AddMembers(c *gin.Context) {
	var req struct {
		MemberIDs []string `json:"memberIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID := c.Param("group_id")
	userID := c.GetString("userID")
	group, added, err := h.groups.AddMembers(c.Request.Context(), groupID, userID, req.MemberIDs)
	if err != nil {
		h.respondGroupError(c, err)
		return
	}

	if len(added) > 0 {
		h.publishToUsers(c, added, notify.UserGroupsChannel, models.EventGroupCreated, group)
		existing := make([]string, 0, len(group.Members))
		addedSet := map[string]bool{}
		for _, id := range added {
			addedSet[id] = true
		}
		for _, id := range group.Members {
			if !addedSet[id] {
				existing = append(existing, id)
			}
		}
		h.publishToUsers(c, existing, notify.UserGroupsChannel, models.EventGroupUpdated, group)
	}
	c.JSON(http.StatusOK, group)
}

// RemoveMember removes a member on the admin's behalf. Shrinking to
// the dissolution threshold deletes the group for everyone.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	var req struct {
		MemberID string `json:"memberId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID := c.Param("group_id")
	userID := c.GetString("userID")

	change, err := h.groups.RemoveMember(c.Request.Context(), groupID, userID, req.MemberID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfRemoval) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "use leave to remove yourself"})
			return
		}
		h.respondGroupError(c, err)
		return
	}

	h.publishMembershipChange(c, groupID, change)
	h.emitAudit(c, "INFO", "group member removed")
	c.JSON(http.StatusOK, membershipResponse(change))
}

// LeaveGroup removes the caller from a group they belong to.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := c.GetString("userID")

	change, err := h.groups.LeaveGroup(c.Request.Context(), groupID, userID)
	if err != nil {
		h.respondGroupError(c, err)
		return
	}

	h.publishMembershipChange(c, groupID, change)
	h.emitAudit(c, "INFO", "left group")
	c.JSON(http.StatusOK, membershipResponse(change))
}

// DeleteGroup dissolves a group explicitly. Admin only.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := c.GetString("userID")

	members, err := h.groups.DeleteGroup(c.Request.Context(), groupID, userID)
	if err != nil {
		h.respondGroupError(c, err)
		return
	}

	h.publishDissolution(c, groupID, members)
	h.emitAudit(c, "INFO", "group deleted")
	c.Status(http.StatusNoContent)
}

// RequestJoin records a join request and alerts the group's admins.
// Requesting twice is a successful no-op.
func (h *GroupHandler) RequestJoin(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := c.GetString("userID")

	requester, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		requester = models.User{ID: userID}
	}

	request, created, admins, err := h.groups.RequestJoin(c.Request.Context(), groupID, requester)
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyMember) {
			c.JSON(http.StatusConflict, gin.H{"error": "already a member"})
			return
		}
		h.respondGroupError(c, err)
		return
	}

	if created {
		h.publishToUsers(c, admins, notify.UserEntryRequestsChannel, models.EventGroupJoinRequested, request)
	}
	c.JSON(http.StatusAccepted, gin.H{"requested": true, "pending": !created})
}

// ApproveJoin admits a pending requester. Admin only.
func (h *GroupHandler) ApproveJoin(c *gin.Context) {
	var req struct {
		RequesterID string `json:"requesterId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID := c.Param("group_id")
	userID := c.GetString("userID")
	group, remaining, err := h.groups.ApproveJoin(c.Request.Context(), groupID, userID, req.RequesterID)
	if err != nil {
		if errors.Is(err, repositories.ErrNoPendingRequest) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending join request"})
			return
		}
		h.respondGroupError(c, err)
		return
	}

	h.publishToUsers(c, []string{req.RequesterID}, notify.UserGroupsChannel, models.EventGroupCreated, group)
	h.publishToUsers(c, group.Members, notify.UserGroupsChannel, models.EventGroupUpdated, group)
	h.publishToUsers(c, group.Admins, notify.UserEntryRequestsChannel, models.EventGroupJoinInboxUpdated, models.JoinInboxUpdate{
		Count:       remaining,
		Action:      "approved",
		GroupID:     groupID,
		RequesterID: req.RequesterID,
	})
	h.emitAudit(c, "INFO", "join request approved")
	c.JSON(http.StatusOK, group)
}

// DenyJoin discards a pending request. Admin only, idempotent.
func (h *GroupHandler) DenyJoin(c *gin.Context) {
	var req struct {
		RequesterID string `json:"requesterId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID := c.Param("group_id")
	userID := c.GetString("userID")
	remaining, err := h.groups.DenyJoin(c.Request.Context(), groupID, userID, req.RequesterID)
	if err != nil {
		h.respondGroupError(c, err)
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err == nil {
		h.publishToUsers(c, group.Admins, notify.UserEntryRequestsChannel, models.EventGroupJoinInboxUpdated, models.JoinInboxUpdate{
			Count:       remaining,
			Action:      "denied",
			GroupID:     groupID,
			RequesterID: req.RequesterID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"denied": true, "remaining": remaining})
}

// PendingRequests lists the caller's join-request inbox.
func (h *GroupHandler) PendingRequests(c *gin.Context) {
	userID := c.GetString("userID")
	requests, err := h.groups.PendingRequests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load join requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// publishMembershipChange fans the right lifecycle event out to the
// removed member and the survivors.
func (h *GroupHandler) publishMembershipChange(c *gin.Context, groupID string, change repositories.MembershipChange) {
	if change.NoOp {
		return
	}
	if change.Dissolved {
		affected := append([]string{change.Removed}, change.Remaining...)
		h.publishDissolution(c, groupID, affected)
		return
	}
	h.publishToUsers(c, []string{change.Removed}, notify.UserGroupsChannel, models.EventGroupLeft, models.GroupLeftEvent{GroupID: groupID})
	h.publishToUsers(c, change.Remaining, notify.UserGroupsChannel, models.EventGroupUpdated, change.Group)
}

// publishDissolution announces a deleted group on its conversation
// channel and to every affected user.
func (h *GroupHandler) publishDissolution(c *gin.Context, groupID string, affected []string) {
	if h.notifier == nil {
		return
	}
	channels := make([]string, 0, len(affected)+1)
	channels = append(channels, chatkey.Channel(chatkey.GroupConversationID(groupID)))
	for _, id := range affected {
		channels = append(channels, notify.UserGroupsChannel(id))
	}
	observability.IncEventPublished(models.EventGroupDeleted)
	_ = h.notifier.Publish(c.Request.Context(), channels, models.EventGroupDeleted, models.GroupDeletedEvent{GroupID: groupID})
}

func membershipResponse(change repositories.MembershipChange) gin.H {
	if change.NoOp {
		return gin.H{"removed": false, "dissolved": false}
	}
	if change.Dissolved {
		return gin.H{"removed": true, "dissolved": true}
	}
	return gin.H{"removed": true, "dissolved": false, "group": change.Group}
}

func (h *GroupHandler) respondGroupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
	case errors.Is(err, repositories.ErrNotAdmin):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
	case errors.Is(err, repositories.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
	case errors.Is(err, repositories.ErrGroupName):
		c.JSON(http.StatusBadRequest, gin.H{"error": "group name is required"})
	default:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *GroupHandler) publishToUsers(c *gin.Context, userIDs []string, channelFor func(string) string, event string, payload any) {
	if h.notifier == nil || len(userIDs) == 0 {
		return
	}
	channels := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		channels = append(channels, channelFor(id))
	}
	observability.IncEventPublished(event)
	_ = h.notifier.Publish(c.Request.Context(), channels, event, payload)
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
