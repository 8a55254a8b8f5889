package permissions

import (
	"time"
)

// Built-in role names. Every server is created with both; neither can be
// deleted. RoleAdmin's name doubles as the legacy-compatibility marker:
// a member whose role union is zero but who holds a role with this exact
// name resolves to a full administrator (see Resolver).
const (
	RoleAdmin  = "Admin"
	RoleMember = "Member"
)

// Server is a guild-like container of channels and members.
type Server struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelType discriminates text from voice channels. Voice channels only
// carry signaling and presence here; media relay is a separate system.
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

// Channel belongs to exactly one server, optionally grouped by category.
type Channel struct {
	ID         string      `json:"id"`
	ServerID   string      `json:"server_id"`
	CategoryID string      `json:"category_id,omitempty"`
	Name       string      `json:"name"`
	Type       ChannelType `json:"type"`
	Position   int         `json:"position"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Role is a named permission grant within a server. Position is a
// seniority ordinal used for cosmetic precedence (role color, listing
// order); it does not affect overwrite resolution, which tiers by
// role-vs-user kind only.
type Role struct {
	ID          string        `json:"id"`
	ServerID    string        `json:"server_id"`
	Name        string        `json:"name"`
	Color       int           `json:"color"`
	Position    int           `json:"position"`
	Permissions PermissionSet `json:"permissions,string"`
	IsBuiltIn   bool          `json:"is_built_in"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Membership ties a user to a server. A timed-out member keeps their
// roles; enforcement of the timeout is the mutation endpoints' concern.
type Membership struct {
	ServerID     string     `json:"server_id"`
	UserID       string     `json:"user_id"`
	Nickname     string     `json:"nickname,omitempty"`
	TimeoutUntil *time.Time `json:"timeout_until,omitempty"`
	JoinedAt     time.Time  `json:"joined_at"`
}

// Overwrite is a channel-scoped allow/deny mask pair targeting exactly one
// of a role or a user. At most one overwrite exists per (channel, role)
// and per (channel, user) pair.
type Overwrite struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	RoleID    string        `json:"role_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Allow     PermissionSet `json:"allow,string"`
	Deny      PermissionSet `json:"deny,string"`
}

// Valid reports whether the overwrite targets exactly one of role or user.
func (o Overwrite) Valid() bool {
	return (o.RoleID == "") != (o.UserID == "")
}
