package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore serves resolver tests from maps. Absent keys behave like the
// SQL store: zero values, no errors.
type fakeStore struct {
	owners     map[string]string
	roles      map[string][]Role // key: serverID + "/" + userID
	channels   map[string]string // channelID -> serverID
	overwrites map[string][]Overwrite
	err        error
}

func (f *fakeStore) ServerOwner(_ context.Context, serverID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.owners[serverID], nil
}

func (f *fakeStore) MemberRoles(_ context.Context, serverID, userID string) ([]Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[serverID+"/"+userID], nil
}

func (f *fakeStore) ChannelServer(_ context.Context, channelID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.channels[channelID], nil
}

func (f *fakeStore) ChannelOverwrites(_ context.Context, channelID string) ([]Overwrite, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.overwrites[channelID], nil
}

func TestServerPermissionsOwner(t *testing.T) {
	store := &fakeStore{owners: map[string]string{"srv": "alice"}}
	r := NewResolver(store)

	set, err := r.ServerPermissions(context.Background(), "srv", "alice")
	require.NoError(t, err)
	assert.Equal(t, All, set)
}

func TestServerPermissionsRoleUnion(t *testing.T) {
	store := &fakeStore{
		owners: map[string]string{"srv": "alice"},
		roles: map[string][]Role{
			"srv/bob": {
				{ID: "r1", Name: "Moderator", Permissions: PermKickMembers | PermManageMessages},
				{ID: "r2", Name: "Member", Permissions: PermViewChannel | PermSendMessages},
			},
		},
	}
	r := NewResolver(store)

	set, err := r.ServerPermissions(context.Background(), "srv", "bob")
	require.NoError(t, err)
	assert.Equal(t, PermKickMembers|PermManageMessages|PermViewChannel|PermSendMessages, set)
}

func TestServerPermissionsNonMember(t *testing.T) {
	store := &fakeStore{owners: map[string]string{"srv": "alice"}}
	r := NewResolver(store)

	set, err := r.ServerPermissions(context.Background(), "srv", "stranger")
	require.NoError(t, err)
	assert.Equal(t, PermissionSet(0), set)
}

func TestServerPermissionsUnknownServer(t *testing.T) {
	r := NewResolver(&fakeStore{})

	set, err := r.ServerPermissions(context.Background(), "missing", "alice")
	require.NoError(t, err)
	assert.Equal(t, PermissionSet(0), set)
}

func TestServerPermissionsLegacyAdminName(t *testing.T) {
	store := &fakeStore{
		owners: map[string]string{"srv": "alice"},
		roles: map[string][]Role{
			"srv/bob": {{ID: "r1", Name: RoleAdmin, Permissions: 0}},
		},
	}
	r := NewResolver(store)

	set, err := r.ServerPermissions(context.Background(), "srv", "bob")
	require.NoError(t, err)
	assert.Equal(t, All, set, "a zero-bit role literally named Admin grants everything")
}

func TestServerPermissionsAdminNameIgnoredWhenBitsPresent(t *testing.T) {
	store := &fakeStore{
		owners: map[string]string{"srv": "alice"},
		roles: map[string][]Role{
			"srv/bob": {
				{ID: "r1", Name: RoleAdmin, Permissions: 0},
				{ID: "r2", Name: "Reader", Permissions: PermViewChannel},
			},
		},
	}
	r := NewResolver(store)

	set, err := r.ServerPermissions(context.Background(), "srv", "bob")
	require.NoError(t, err)
	assert.Equal(t, PermViewChannel, set, "the name fallback only applies to a zero union")
}

func TestServerPermissionsStoreError(t *testing.T) {
	sentinel := errors.New("connection reset")
	r := NewResolver(&fakeStore{err: sentinel})

	_, err := r.ServerPermissions(context.Background(), "srv", "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestChannelPermissionsUnknownChannel(t *testing.T) {
	r := NewResolver(&fakeStore{})

	set, err := r.ChannelPermissions(context.Background(), "missing", "bob")
	require.NoError(t, err)
	assert.Equal(t, PermissionSet(0), set)
}

func TestChannelPermissionsOwnerBypassesOverwrites(t *testing.T) {
	store := &fakeStore{
		owners:   map[string]string{"srv": "alice"},
		channels: map[string]string{"chan": "srv"},
		overwrites: map[string][]Overwrite{
			"chan": {{ID: "o1", ChannelID: "chan", UserID: "alice", Deny: All}},
		},
	}
	r := NewResolver(store)

	set, err := r.ChannelPermissions(context.Background(), "chan", "alice")
	require.NoError(t, err)
	assert.Equal(t, All, set)
}

func TestChannelPermissionsAdministratorBypassesOverwrites(t *testing.T) {
	store := &fakeStore{
		owners:   map[string]string{"srv": "alice"},
		channels: map[string]string{"chan": "srv"},
		roles: map[string][]Role{
			"srv/bob": {{ID: "r1", Name: "Staff", Permissions: PermAdministrator}},
		},
		overwrites: map[string][]Overwrite{
			"chan": {
				{ID: "o1", ChannelID: "chan", RoleID: "r1", Deny: All},
				{ID: "o2", ChannelID: "chan", UserID: "bob", Deny: All},
			},
		},
	}
	r := NewResolver(store)

	set, err := r.ChannelPermissions(context.Background(), "chan", "bob")
	require.NoError(t, err)
	assert.Equal(t, All, set)
}

func TestChannelPermissionsRoleOverwriteLayering(t *testing.T) {
	store := &fakeStore{
		owners:   map[string]string{"srv": "alice"},
		channels: map[string]string{"chan": "srv"},
		roles: map[string][]Role{
			"srv/bob": {{ID: "r1", Name: "Member", Permissions: PermViewChannel | PermSendMessages}},
		},
		overwrites: map[string][]Overwrite{
			"chan": {
				{ID: "o1", ChannelID: "chan", RoleID: "r1", Allow: PermAttachFiles, Deny: PermSendMessages},
			},
		},
	}
	r := NewResolver(store)

	set, err := r.ChannelPermissions(context.Background(), "chan", "bob")
	require.NoError(t, err)
	assert.Equal(t, PermViewChannel|PermAttachFiles, set)
}

func TestChannelPermissionsRoleTierIsUnordered(t *testing.T) {
	// Two held roles overwrite the same flag in opposite directions. The
	// tier combines deny-union before allow-union, so allow wins no matter
	// how the rows are ordered.
	roles := []Role{
		{ID: "r1", Name: "A", Permissions: PermViewChannel},
		{ID: "r2", Name: "B", Permissions: PermViewChannel},
	}
	forward := []Overwrite{
		{ID: "o1", ChannelID: "chan", RoleID: "r1", Deny: PermSendMessages},
		{ID: "o2", ChannelID: "chan", RoleID: "r2", Allow: PermSendMessages},
	}
	reversed := []Overwrite{forward[1], forward[0]}

	for name, ows := range map[string][]Overwrite{"forward": forward, "reversed": reversed} {
		store := &fakeStore{
			owners:     map[string]string{"srv": "alice"},
			channels:   map[string]string{"chan": "srv"},
			roles:      map[string][]Role{"srv/bob": roles},
			overwrites: map[string][]Overwrite{"chan": ows},
		}
		set, err := NewResolver(store).ChannelPermissions(context.Background(), "chan", "bob")
		require.NoError(t, err, name)
		assert.Equal(t, PermViewChannel|PermSendMessages, set, name)
	}
}

func TestChannelPermissionsUserOverwriteAppliesLast(t *testing.T) {
	store := &fakeStore{
		owners:   map[string]string{"srv": "alice"},
		channels: map[string]string{"chan": "srv"},
		roles: map[string][]Role{
			"srv/bob": {{ID: "r1", Name: "Member", Permissions: PermViewChannel | PermSendMessages}},
		},
		overwrites: map[string][]Overwrite{
			"chan": {
				{ID: "o1", ChannelID: "chan", RoleID: "r1", Allow: PermSendMessages},
				{ID: "o2", ChannelID: "chan", UserID: "bob", Deny: PermSendMessages, Allow: PermManageMessages},
			},
		},
	}
	r := NewResolver(store)

	set, err := r.ChannelPermissions(context.Background(), "chan", "bob")
	require.NoError(t, err)
	assert.Equal(t, PermViewChannel|PermManageMessages, set,
		"the user overwrite overrides the role tier")
}

func TestChannelPermissionsForeignOverwritesIgnored(t *testing.T) {
	store := &fakeStore{
		owners:   map[string]string{"srv": "alice"},
		channels: map[string]string{"chan": "srv"},
		roles: map[string][]Role{
			"srv/bob": {{ID: "r1", Name: "Member", Permissions: PermViewChannel}},
		},
		overwrites: map[string][]Overwrite{
			"chan": {
				{ID: "o1", ChannelID: "chan", RoleID: "other-role", Deny: All},
				{ID: "o2", ChannelID: "chan", UserID: "carol", Deny: All},
			},
		},
	}
	r := NewResolver(store)

	set, err := r.ChannelPermissions(context.Background(), "chan", "bob")
	require.NoError(t, err)
	assert.Equal(t, PermViewChannel, set)
}

func TestChannelPermissionsNonMember(t *testing.T) {
	store := &fakeStore{
		owners:   map[string]string{"srv": "alice"},
		channels: map[string]string{"chan": "srv"},
		overwrites: map[string][]Overwrite{
			"chan": {{ID: "o1", ChannelID: "chan", UserID: "stranger", Allow: PermViewChannel}},
		},
	}
	r := NewResolver(store)

	// A user overwrite can grant channel access to someone with an empty base.
	set, err := r.ChannelPermissions(context.Background(), "chan", "stranger")
	require.NoError(t, err)
	assert.Equal(t, PermViewChannel, set)
}
