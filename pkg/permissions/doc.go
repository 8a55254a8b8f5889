// Package permissions implements the Astricord authorization engine: bitmask
// permission sets, role-based server permissions, and per-channel overwrites.
//
// # Overview
//
// Every capability a member can hold is one bit in a 48-flag PermissionSet.
// A member's server-wide permissions are the bitwise OR of their role
// permissions, with two special cases: the server owner always resolves to
// the full Administrator set, and a member whose role union is zero but who
// holds a role literally named "Admin" is treated as a full administrator
// (compatibility with historically-created Admin roles that were never
// assigned bits).
//
// Channel permissions layer channel-scoped overwrites on top of the server
// base. Overwrites target either a role or a single user and carry an
// allow mask and a deny mask. Resolution order:
//
//  1. base = server-wide permissions
//  2. administrators short-circuit to All; overwrites never restrict them
//  3. role overwrites for the member's roles combine as one tier:
//     base = (base &^ denyUnion) | allowUnion
//  4. the member's user overwrite, if any, applies last the same way
//
// Deny applies before allow within a tier, so an allow at a more specific
// tier overrides a deny from a less specific tier, never the reverse.
//
// # Usage
//
//	store := permissions.NewSQLStore(db)
//	resolver := permissions.NewResolver(store)
//
//	set, err := resolver.ServerPermissions(ctx, serverID, userID)
//	if set.Has(permissions.PermBanMembers) {
//		// ...
//	}
//
//	set, err = resolver.ChannelPermissions(ctx, channelID, userID)
//	if !set.Has(permissions.PermViewChannel) {
//		// channel is invisible to this member
//	}
//
// # Resolution is uncached
//
// The resolver re-reads role and overwrite rows on every call. A permission
// change therefore takes effect on the next check, not retroactively on
// checks already in flight. Do not put a cache in front of the resolver
// without designing invalidation alongside it.
//
// # Absence is not an error
//
// Missing servers, channels, members, roles, and overwrites resolve to
// empty permission sets. Callers deny access by checking the returned set,
// not by catching errors; the only errors surfaced are infrastructure
// failures from the underlying store.
package permissions
