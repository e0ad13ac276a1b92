package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"messenger-service/internal/models"
	"messenger-service/internal/store"
)

var (
	ErrGroupNotFound    = errors.New("group not found")
	ErrNotAdmin         = errors.New("admin privileges required")
	ErrNotMember        = errors.New("not a group member")
	ErrAlreadyMember    = errors.New("already a member")
	ErrNoPendingRequest = errors.New("no pending join request")
	ErrTooFewMembers    = errors.New("a group needs at least three members")
	ErrSelfRemoval      = errors.New("use leave to remove yourself")
	ErrGroupName        = errors.New("group name is required")
)

// DissolveThreshold is the member count at or below which a
// membership-reducing operation dissolves the group instead of
// persisting it.
const DissolveThreshold = 2

const (
	maxGroupNameLen = 50
	maxGroupDescLen = 200
)

// MembershipChange describes the outcome of a remove/leave operation.
// When Dissolved is set the group no longer exists and Remaining holds
// the members affected by the dissolution.
type MembershipChange struct {
	Group     models.Group
	Removed   string
	Remaining []string
	Dissolved bool
	NoOp      bool
}

// GroupRepository is the group membership engine. Every mutating
// operation keeps the canonical record, the group member set and each
// member's personal group index in lockstep; concurrent writers to the
// same group race with last-write-wins.
type GroupRepository interface {
	CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	UpdateGroup(ctx context.Context, groupID, actorID, name, description string) (models.Group, error)
	AddMembers(ctx context.Context, groupID, actorID string, memberIDs []string) (models.Group, []string, error)
	RemoveMember(ctx context.Context, groupID, actorID, targetID string) (MembershipChange, error)
	LeaveGroup(ctx context.Context, groupID, actorID string) (MembershipChange, error)
	DeleteGroup(ctx context.Context, groupID, actorID string) ([]string, error)
	RequestJoin(ctx context.Context, groupID string, requester models.User) (models.JoinRequest, bool, []string, error)
	ApproveJoin(ctx context.Context, groupID, adminID, requesterID string) (models.Group, int, error)
	DenyJoin(ctx context.Context, groupID, adminID, requesterID string) (int, error)
	PendingRequests(ctx context.Context, adminID string) ([]models.JoinRequest, error)
}

// GroupRepo is the Store-backed GroupRepository.
type GroupRepo struct {
	store store.Store
	now   func() int64
	newID func() string
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(st store.Store) *GroupRepo {
	return &GroupRepo{
		store: st,
		now:   func() int64 { return time.Now().UnixMilli() },
		newID: uuid.NewString,
	}
}

func groupKey(id string) string        { return "group:" + id }
func groupMembersKey(id string) string { return "group:" + id + ":members" }
func groupPendingKey(id string) string { return "group:" + id + ":join_requests" }
func userGroupsKey(id string) string   { return "user:" + id + ":groups" }
func adminInboxKey(id string) string   { return "user:" + id + ":group_join_requests" }

// CreateGroup allocates a group with the creator as sole admin. The
// de-duplicated membership, creator included, must be at least three.
func (r *GroupRepo) CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string) (models.Group, error) {
	name = sanitize(name, maxGroupNameLen)
	if name == "" {
		return models.Group{}, ErrGroupName
	}

	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, id := range memberIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}
	if len(members) < DissolveThreshold+1 {
		return models.Group{}, ErrTooFewMembers
	}

	group := models.Group{
		ID:          r.newID(),
		Name:        name,
		Description: sanitize(description, maxGroupDescLen),
		Members:     members,
		Admins:      []string{creatorID},
		CreatedAt:   r.now(),
		CreatedBy:   creatorID,
	}

	if err := r.persist(ctx, group); err != nil {
		return models.Group{}, err
	}
	if err := r.store.SAdd(ctx, groupMembersKey(group.ID), members...); err != nil {
		return models.Group{}, fmt.Errorf("seed member index: %w", err)
	}
	for _, id := range members {
		if err := r.store.SAdd(ctx, userGroupsKey(id), group.ID); err != nil {
			return models.Group{}, fmt.Errorf("seed user index: %w", err)
		}
	}
	return group, nil
}

// GetGroup loads and normalizes the canonical record. Legacy shapes
// (singular admin field, separate info record plus member set) are
// coalesced on read into a group that always has a non-empty admin
// list; only the canonical shape is ever written back.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	raw, err := r.store.Get(ctx, groupKey(groupID))
	if err == nil {
		if group, ok := normalizeGroup(groupID, raw); ok {
			return group, nil
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Group{}, err
	}

	// Legacy fallback: info record plus member set.
	info, infoErr := r.store.Get(ctx, groupKey(groupID)+":info")
	members, memErr := r.store.SMembers(ctx, groupMembersKey(groupID))
	if infoErr != nil || memErr != nil || len(members) == 0 {
		return models.Group{}, ErrGroupNotFound
	}
	group, ok := normalizeGroup(groupID, info)
	if !ok {
		return models.Group{}, ErrGroupNotFound
	}
	group.Members = members
	if len(group.Admins) == 0 {
		group.Admins = []string{members[0]}
	}
	return group, nil
}

// ListGroupsForUser resolves the user's group index. Index entries for
// groups that no longer resolve are skipped.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	ids, err := r.store.SMembers(ctx, userGroupsKey(userID))
	if err != nil {
		return nil, err
	}
	groups := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := r.GetGroup(ctx, id)
		if errors.Is(err, ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// IsMember checks the member-set fast path and falls back to the
// canonical record for legacy groups whose index was never seeded.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	member, err := r.store.SIsMember(ctx, groupMembersKey(groupID), userID)
	if err != nil {
		return false, err
	}
	if member {
		return true, nil
	}
	group, err := r.GetGroup(ctx, groupID)
	if errors.Is(err, ErrGroupNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return group.HasMember(userID), nil
}

// UpdateGroup renames a group. Admin only; name and description are
// truncated to bounded lengths.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID, actorID, name, description string) (models.Group, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if !group.IsAdmin(actorID) {
		return models.Group{}, ErrNotAdmin
	}
	name = sanitize(name, maxGroupNameLen)
	if name == "" {
		return models.Group{}, ErrGroupName
	}
	group.Name = name
	group.Description = sanitize(description, maxGroupDescLen)
	if err := r.persist(ctx, group); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// AddMembers unions new ids into the membership and seeds both index
// views for every id that was actually added.
func (r *GroupRepo) AddMembers(ctx context.Context, groupID, actorID string, memberIDs []string) (models.Group, []string, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, nil, err
	}
	if !group.IsAdmin(actorID) {
		return models.Group{}, nil, ErrNotAdmin
	}

	added := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == "" || group.HasMember(id) {
			continue
		}
		group.Members = append(group.Members, id)
		added = append(added, id)
	}
	if len(added) == 0 {
		return group, nil, nil
	}

	if err := r.persist(ctx, group); err != nil {
		return models.Group{}, nil, err
	}
	if err := r.store.SAdd(ctx, groupMembersKey(groupID), added...); err != nil {
		return models.Group{}, nil, fmt.Errorf("update member index: %w", err)
	}
	for _, id := range added {
		if err := r.store.SAdd(ctx, userGroupsKey(id), groupID); err != nil {
			return models.Group{}, nil, fmt.Errorf("update user index: %w", err)
		}
	}
	return group, added, nil
}

// RemoveMember removes a member on an admin's behalf. Self-removal is
// rejected in favor of LeaveGroup. Removing a member is idempotent:
// removing someone who already left reports a no-op success.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, actorID, targetID string) (MembershipChange, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return MembershipChange{}, err
	}
	if !group.IsAdmin(actorID) {
		return MembershipChange{}, ErrNotAdmin
	}
	if actorID == targetID {
		return MembershipChange{}, ErrSelfRemoval
	}
	if !group.HasMember(targetID) {
		return MembershipChange{Group: group, NoOp: true}, nil
	}
	return r.shrink(ctx, group, targetID)
}

// LeaveGroup removes the actor from their own group. No admin check;
// the shrink/promote/dissolve rules match RemoveMember.
func (r *GroupRepo) LeaveGroup(ctx context.Context, groupID, actorID string) (MembershipChange, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return MembershipChange{}, err
	}
	if !group.HasMember(actorID) {
		return MembershipChange{}, ErrNotMember
	}
	return r.shrink(ctx, group, actorID)
}

// DeleteGroup is the explicit admin dissolution path. Returns the
// member snapshot so callers can notify everyone affected.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID, actorID string) ([]string, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(actorID) {
		return nil, ErrNotAdmin
	}
	if err := r.dissolve(ctx, groupID, group.Members); err != nil {
		return nil, err
	}
	return group.Members, nil
}

// RequestJoin records a pending join request and fans it into every
// admin's inbox. A duplicate request succeeds without creating a
// second record. Returns the request, whether it was newly created,
// and the admins to notify.
func (r *GroupRepo) RequestJoin(ctx context.Context, groupID string, requester models.User) (models.JoinRequest, bool, []string, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return models.JoinRequest{}, false, nil, err
	}
	if group.HasMember(requester.ID) {
		return models.JoinRequest{}, false, nil, ErrAlreadyMember
	}

	pending, err := r.store.SIsMember(ctx, groupPendingKey(groupID), requester.ID)
	if err != nil {
		return models.JoinRequest{}, false, nil, err
	}
	request := models.JoinRequest{
		GroupID:        groupID,
		RequesterID:    requester.ID,
		RequesterName:  requester.Name,
		RequesterEmail: requester.Email,
		GroupName:      group.Name,
		RequestedAt:    r.now(),
	}
	if pending {
		return request, false, group.Admins, nil
	}

	if err := r.store.SAdd(ctx, groupPendingKey(groupID), requester.ID); err != nil {
		return models.JoinRequest{}, false, nil, fmt.Errorf("record request: %w", err)
	}
	record, err := json.Marshal(request)
	if err != nil {
		return models.JoinRequest{}, false, nil, err
	}
	for _, adminID := range group.Admins {
		if err := r.store.SAdd(ctx, adminInboxKey(adminID), string(record)); err != nil {
			return models.JoinRequest{}, false, nil, fmt.Errorf("record inbox entry: %w", err)
		}
	}
	return request, true, group.Admins, nil
}

// ApproveJoin turns a pending request into membership. Approving a
// requester who is already a member just cleans up the request state.
// Returns the updated group and the admin's remaining inbox count.
func (r *GroupRepo) ApproveJoin(ctx context.Context, groupID, adminID, requesterID string) (models.Group, int, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, 0, err
	}
	if !group.IsAdmin(adminID) {
		return models.Group{}, 0, ErrNotAdmin
	}

	pending, err := r.store.SIsMember(ctx, groupPendingKey(groupID), requesterID)
	if err != nil {
		return models.Group{}, 0, err
	}
	if !pending {
		return models.Group{}, 0, ErrNoPendingRequest
	}

	if !group.HasMember(requesterID) {
		group.Members = append(group.Members, requesterID)
		if err := r.persist(ctx, group); err != nil {
			return models.Group{}, 0, err
		}
		if err := r.store.SAdd(ctx, groupMembersKey(groupID), requesterID); err != nil {
			return models.Group{}, 0, fmt.Errorf("update member index: %w", err)
		}
		if err := r.store.SAdd(ctx, userGroupsKey(requesterID), groupID); err != nil {
			return models.Group{}, 0, fmt.Errorf("update user index: %w", err)
		}
	}

	count, err := r.clearRequest(ctx, group, adminID, requesterID)
	if err != nil {
		return models.Group{}, 0, err
	}
	return group, count, nil
}

// DenyJoin discards a pending request. Denying a request that no
// longer exists is a successful no-op.
func (r *GroupRepo) DenyJoin(ctx context.Context, groupID, adminID, requesterID string) (int, error) {
	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	if !group.IsAdmin(adminID) {
		return 0, ErrNotAdmin
	}
	return r.clearRequest(ctx, group, adminID, requesterID)
}

// PendingRequests lists the admin's join-request inbox.
func (r *GroupRepo) PendingRequests(ctx context.Context, adminID string) ([]models.JoinRequest, error) {
	records, err := r.store.SMembers(ctx, adminInboxKey(adminID))
	if err != nil {
		return nil, err
	}
	requests := make([]models.JoinRequest, 0, len(records))
	for _, record := range records {
		var req models.JoinRequest
		if err := json.Unmarshal([]byte(record), &req); err != nil {
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// shrink removes one member, promotes a successor admin when the last
// admin goes, and dissolves the group entirely when the remaining
// membership is at or below the threshold.
func (r *GroupRepo) shrink(ctx context.Context, group models.Group, removedID string) (MembershipChange, error) {
	remaining := make([]string, 0, len(group.Members))
	for _, id := range group.Members {
		if id != removedID {
			remaining = append(remaining, id)
		}
	}
	admins := make([]string, 0, len(group.Admins))
	for _, id := range group.Admins {
		if id != removedID {
			admins = append(admins, id)
		}
	}

	// Index first, in both views; the canonical write follows.
	if err := r.store.SRem(ctx, groupMembersKey(group.ID), removedID); err != nil {
		return MembershipChange{}, fmt.Errorf("update member index: %w", err)
	}
	if err := r.store.SRem(ctx, userGroupsKey(removedID), group.ID); err != nil {
		return MembershipChange{}, fmt.Errorf("update user index: %w", err)
	}

	if len(remaining) <= DissolveThreshold {
		if err := r.dissolve(ctx, group.ID, remaining); err != nil {
			return MembershipChange{}, err
		}
		return MembershipChange{Removed: removedID, Remaining: remaining, Dissolved: true}, nil
	}

	if len(admins) == 0 {
		admins = []string{remaining[0]}
	}
	group.Members = remaining
	group.Admins = admins
	if err := r.persist(ctx, group); err != nil {
		return MembershipChange{}, err
	}
	return MembershipChange{Group: group, Removed: removedID, Remaining: remaining}, nil
}

// dissolve deletes the canonical record, every legacy key, the message
// log and all index entries for the affected users.
func (r *GroupRepo) dissolve(ctx context.Context, groupID string, members []string) error {
	keys := []string{
		groupKey(groupID),
		"groups:" + groupID, // legacy listing
		groupKey(groupID) + ":info",
		groupMembersKey(groupID),
		groupPendingKey(groupID),
		"group:" + groupID + ":messages",
		"chat:group:" + groupID + ":messages", // legacy log
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete group keys: %w", err)
	}
	for _, id := range members {
		if err := r.store.SRem(ctx, userGroupsKey(id), groupID); err != nil {
			return fmt.Errorf("clear user index: %w", err)
		}
	}
	return nil
}

// clearRequest removes the pending entry and every matching admin
// inbox record, then returns the acting admin's remaining inbox size.
func (r *GroupRepo) clearRequest(ctx context.Context, group models.Group, actorID, requesterID string) (int, error) {
	if err := r.store.SRem(ctx, groupPendingKey(group.ID), requesterID); err != nil {
		return 0, fmt.Errorf("clear pending request: %w", err)
	}

	count := 0
	for _, adminID := range group.Admins {
		records, err := r.store.SMembers(ctx, adminInboxKey(adminID))
		if err != nil {
			return 0, err
		}
		remaining := 0
		for _, record := range records {
			var req models.JoinRequest
			if err := json.Unmarshal([]byte(record), &req); err != nil {
				continue
			}
			if req.GroupID == group.ID && req.RequesterID == requesterID {
				if err := r.store.SRem(ctx, adminInboxKey(adminID), record); err != nil {
					return 0, fmt.Errorf("clear inbox record: %w", err)
				}
				continue
			}
			remaining++
		}
		if adminID == actorID {
			count = remaining
		}
	}
	return count, nil
}

func (r *GroupRepo) persist(ctx context.Context, group models.Group) error {
	payload, err := json.Marshal(group)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, groupKey(group.ID), string(payload)); err != nil {
		return fmt.Errorf("persist group: %w", err)
	}
	return nil
}

// normalizeGroup coalesces canonical and legacy record shapes into the
// canonical Group. Legacy records carry a singular admin field or no
// admin at all; the normalized group always has non-empty admins.
func normalizeGroup(groupID, raw string) (models.Group, bool) {
	var legacy struct {
		models.Group
		Admin string `json:"admin"`
	}
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return models.Group{}, false
	}
	group := legacy.Group
	if group.ID == "" {
		group.ID = groupID
	}
	if len(group.Admins) == 0 && legacy.Admin != "" {
		group.Admins = []string{legacy.Admin}
	}
	if group.CreatedBy == "" {
		if len(group.Admins) > 0 {
			group.CreatedBy = group.Admins[0]
		} else if legacy.Admin != "" {
			group.CreatedBy = legacy.Admin
		}
	}
	if len(group.Admins) == 0 && group.CreatedBy != "" {
		group.Admins = []string{group.CreatedBy}
	}
	if len(group.Admins) == 0 && len(group.Members) > 0 {
		group.Admins = []string{group.Members[0]}
	}
	return group, true
}

func sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}

var _ GroupRepository = (*GroupRepo)(nil)
var _ MessageRepository = (*MessageRepo)(nil)
