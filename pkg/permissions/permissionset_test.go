package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionSetHas(t *testing.T) {
	set := PermViewChannel | PermSendMessages

	assert.True(t, set.Has(PermViewChannel))
	assert.True(t, set.Has(PermSendMessages))
	assert.True(t, set.Has(PermViewChannel|PermSendMessages))
	assert.False(t, set.Has(PermManageChannels))
	assert.False(t, set.Has(PermSendMessages|PermManageChannels), "compound checks require every bit")
}

func TestPermissionSetHasAdministrator(t *testing.T) {
	admin := PermAdministrator

	assert.True(t, admin.Has(PermBanMembers))
	assert.True(t, admin.Has(PermManageServer))
	assert.True(t, admin.Has(PermAdministrator))
	assert.True(t, admin.Has(All), "administrator satisfies the full set")
}

func TestPermissionSetZero(t *testing.T) {
	var zero PermissionSet

	assert.False(t, zero.Has(PermViewChannel))
	assert.False(t, zero.Has(PermAdministrator))
	assert.Equal(t, "0", zero.String())
	assert.Nil(t, zero.Names())
}

func TestPermissionSetAddRemove(t *testing.T) {
	set := PermissionSet(0).Add(PermSendMessages).Add(PermAttachFiles)
	assert.True(t, set.Has(PermSendMessages))
	assert.True(t, set.Has(PermAttachFiles))

	set = set.Remove(PermSendMessages)
	assert.False(t, set.Has(PermSendMessages))
	assert.True(t, set.Has(PermAttachFiles))

	// Removing an absent flag is a no-op.
	assert.Equal(t, set, set.Remove(PermSendMessages))
}

func TestPermissionSetRemoveFromAdministrator(t *testing.T) {
	set := PermAdministrator | PermSendMessages

	set = set.Remove(PermSendMessages)
	assert.True(t, set.Has(PermSendMessages), "literal removal cannot defeat the administrator bit")

	set = set.Remove(PermAdministrator)
	assert.False(t, set.Has(PermSendMessages))
}

func TestPermissionSetUnion(t *testing.T) {
	a := PermViewChannel | PermSendMessages
	b := PermSendMessages | PermConnect

	union := a.Union(b)
	assert.Equal(t, PermViewChannel|PermSendMessages|PermConnect, union)
	assert.Equal(t, union, b.Union(a), "union is commutative")
}

func TestAllCoversEveryFlag(t *testing.T) {
	var union PermissionSet
	for _, f := range flagNames {
		union |= f.flag
	}
	assert.Equal(t, All, union)
	assert.Len(t, flagNames, numFlags)
}

func TestPermissionSetNamesBitOrder(t *testing.T) {
	set := PermSendMessages | PermCreateInvites | PermConnect

	assert.Equal(t, []string{"CREATE_INVITES", "SEND_MESSAGES", "CONNECT"}, set.Names())
	assert.Equal(t, "CREATE_INVITES|SEND_MESSAGES|CONNECT", set.String())
}

func TestParseFlag(t *testing.T) {
	flag, ok := ParseFlag("ADMINISTRATOR")
	assert.True(t, ok)
	assert.Equal(t, PermAdministrator, flag)

	flag, ok = ParseFlag("send_messages")
	assert.False(t, ok, "wire names are case sensitive")
	assert.Equal(t, PermissionSet(0), flag)

	_, ok = ParseFlag("NOT_A_FLAG")
	assert.False(t, ok)
}

func TestParseFlagRoundTrip(t *testing.T) {
	for _, f := range flagNames {
		parsed, ok := ParseFlag(f.name)
		assert.True(t, ok, f.name)
		assert.Equal(t, f.flag, parsed, f.name)
	}
}

func TestDefaultMemberPermissions(t *testing.T) {
	assert.True(t, DefaultMemberPermissions.Has(PermSendMessages))
	assert.True(t, DefaultMemberPermissions.Has(PermViewChannel))
	assert.True(t, DefaultMemberPermissions.Has(PermConnect))

	assert.False(t, DefaultMemberPermissions.Has(PermAdministrator))
	assert.False(t, DefaultMemberPermissions.Has(PermKickMembers))
	assert.False(t, DefaultMemberPermissions.Has(PermManageChannels))
	assert.False(t, DefaultMemberPermissions.Has(PermManageRoles))
}
