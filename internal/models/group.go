package models

// Group is the canonical record of a group chat. Admins is always a
// non-empty subset of Members while the group exists.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Members     []string `json:"members"`
	Admins      []string `json:"admins"`
	CreatedAt   int64    `json:"createdAt"`
	CreatedBy   string   `json:"createdBy"`
	Avatar      string   `json:"avatar,omitempty"`
}

// IsAdmin reports whether userID may perform admin-only operations.
func (g Group) IsAdmin(userID string) bool {
	if userID != "" && userID == g.CreatedBy {
		return true
	}
	for _, id := range g.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// JoinRequest is a pending request to enter a group. It is recorded in
// the group's pending set and serialized into each admin's inbox.
type JoinRequest struct {
	GroupID        string `json:"groupId"`
	RequesterID    string `json:"requesterId"`
	RequesterName  string `json:"requesterName,omitempty"`
	RequesterEmail string `json:"requesterEmail,omitempty"`
	GroupName      string `json:"groupName"`
	RequestedAt    int64  `json:"requestedAt"`
}
