package permissions

import (
	"context"
	"fmt"
)

// Store is the read surface the resolver needs. Every method tolerates
// absence: unknown IDs yield zero values and nil slices, never errors.
// Errors are reserved for infrastructure failures.
type Store interface {
	// ServerOwner returns the owning user ID of a server, or "" if the
	// server does not exist.
	ServerOwner(ctx context.Context, serverID string) (string, error)

	// MemberRoles returns the roles assigned to a user within a server.
	// Members with no roles (and non-members) get a nil slice.
	MemberRoles(ctx context.Context, serverID, userID string) ([]Role, error)

	// ChannelServer returns the server a channel belongs to, or "" if the
	// channel does not exist.
	ChannelServer(ctx context.Context, channelID string) (string, error)

	// ChannelOverwrites returns every overwrite on a channel.
	ChannelOverwrites(ctx context.Context, channelID string) ([]Overwrite, error)
}

// Resolver computes effective permission sets. It holds no state beyond
// the store reference and re-reads current rows on every call, so
// permission changes apply to the next check rather than retroactively.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ServerPermissions computes a member's effective server-wide set:
// owners resolve to All without further lookups; everyone else gets the
// OR of their role permissions, with the legacy "Admin"-name fallback
// when that union is zero. Unknown servers and non-members resolve to
// the empty set.
func (r *Resolver) ServerPermissions(ctx context.Context, serverID, userID string) (PermissionSet, error) {
	owner, err := r.store.ServerOwner(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("resolve server owner: %w", err)
	}
	if owner != "" && owner == userID {
		return All, nil
	}

	roles, err := r.store.MemberRoles(ctx, serverID, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve member roles: %w", err)
	}
	return unionRoles(roles), nil
}

// unionRoles ORs role permission sets. OR is commutative, so assignment
// order never matters. A zero union falls back to All when any held role
// is literally named "Admin" — historically-created Admin roles were
// never assigned bits and must keep working.
func unionRoles(roles []Role) PermissionSet {
	var set PermissionSet
	for _, role := range roles {
		set |= role.Permissions
	}
	if set == 0 {
		for _, role := range roles {
			if role.Name == RoleAdmin {
				return All
			}
		}
	}
	return set
}

// ChannelPermissions layers the channel's overwrites onto the member's
// server-wide base. Administrators short-circuit to All; channel
// overwrites never restrict them. Role overwrites for the member's roles
// combine as a single unordered tier (deny union subtracted, then allow
// union granted), and the member's user overwrite, if present, applies
// last the same way. Unknown channels resolve to the empty set.
func (r *Resolver) ChannelPermissions(ctx context.Context, channelID, userID string) (PermissionSet, error) {
	serverID, err := r.store.ChannelServer(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("resolve channel server: %w", err)
	}
	if serverID == "" {
		return 0, nil
	}

	owner, err := r.store.ServerOwner(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("resolve server owner: %w", err)
	}
	if owner != "" && owner == userID {
		return All, nil
	}

	roles, err := r.store.MemberRoles(ctx, serverID, userID)
	if err != nil {
		return 0, fmt.Errorf("resolve member roles: %w", err)
	}
	base := unionRoles(roles)
	if base&PermAdministrator != 0 {
		return All, nil
	}

	overwrites, err := r.store.ChannelOverwrites(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("resolve channel overwrites: %w", err)
	}

	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role.ID] = struct{}{}
	}

	var roleAllow, roleDeny PermissionSet
	var userOverwrite *Overwrite
	for i, ow := range overwrites {
		if ow.UserID != "" {
			if ow.UserID == userID {
				userOverwrite = &overwrites[i]
			}
			continue
		}
		if _, ok := held[ow.RoleID]; ok {
			roleDeny |= ow.Deny
			roleAllow |= ow.Allow
		}
	}

	base = base&^roleDeny | roleAllow
	if userOverwrite != nil {
		base = base&^userOverwrite.Deny | userOverwrite.Allow
	}
	return base, nil
}
