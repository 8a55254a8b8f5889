package api

import (
	"time"

	"github.com/AstromanXD/Astricord-sub001/pkg/permissions"
)

// CreateServerRequest creates a server owned by the caller.
type CreateServerRequest struct {
	Name string `json:"name"`
}

// CreateChannelRequest creates a channel in a server.
type CreateChannelRequest struct {
	Name string                  `json:"name"`
	Type permissions.ChannelType `json:"type,omitempty"`
}

// AddMemberRequest joins a user to a server. UserID defaults to the
// caller.
type AddMemberRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// CreateRoleRequest creates a custom role.
type CreateRoleRequest struct {
	Name        string                    `json:"name"`
	Permissions permissions.PermissionSet `json:"permissions,string"`
}

// UpsertOverwriteRequest sets the channel overwrite for one target. Type
// is "role" or "user"; the target ID comes from the URL.
type UpsertOverwriteRequest struct {
	Type  string                    `json:"type"`
	Allow permissions.PermissionSet `json:"allow,string"`
	Deny  permissions.PermissionSet `json:"deny,string"`
}

// SetTimeoutRequest sets or clears a member timeout. A null Until clears
// it.
type SetTimeoutRequest struct {
	Until *time.Time `json:"until"`
}

// CreateMessageRequest posts a message to a channel.
type CreateMessageRequest struct {
	Content string `json:"content"`
}

// Message is the echoed message shape. Messages are fanned out, not
// stored; persistence lives in the message service.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberPermissionsResponse is the decision surface other services call.
type MemberPermissionsResponse struct {
	ServerID    string                    `json:"server_id"`
	UserID      string                    `json:"user_id"`
	Permissions permissions.PermissionSet `json:"permissions,string"`
}

// ChannelPermissionsResponse is the channel-scoped decision surface,
// with overwrites already applied.
type ChannelPermissionsResponse struct {
	ChannelID   string                    `json:"channel_id"`
	UserID      string                    `json:"user_id"`
	Permissions permissions.PermissionSet `json:"permissions,string"`
}
