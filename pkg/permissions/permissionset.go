package permissions

import (
	"strings"
)

// PermissionSet is a bit vector of granted capabilities. The bit positions
// below are a serialization contract shared with every component that
// stores or transmits permission values; they must never be renumbered.
//
// 48 of the 64 bits are assigned. The remaining bits are reserved.
type PermissionSet uint64

const (
	PermCreateInvites PermissionSet = 1 << iota
	PermKickMembers
	PermBanMembers
	PermAdministrator
	PermManageChannels
	PermManageServer
	PermAddReactions
	PermViewAuditLog
	PermPrioritySpeaker
	PermStream
	PermViewChannel
	PermSendMessages
	PermSendTTSMessages
	PermManageMessages
	PermEmbedLinks
	PermAttachFiles
	PermReadMessageHistory
	PermMentionEveryone
	PermUseExternalEmojis
	PermViewServerInsights
	PermConnect
	PermSpeak
	PermMuteMembers
	PermDeafenMembers
	PermMoveMembers
	PermUseVoiceActivity
	PermChangeNickname
	PermManageNicknames
	PermManageRoles
	PermManageWebhooks
	PermManageExpressions
	PermUseApplicationCommands
	PermRequestToSpeak
	PermManageEvents
	PermManageThreads
	PermCreatePublicThreads
	PermCreatePrivateThreads
	PermUseExternalStickers
	PermSendMessagesInThreads
	PermUseEmbeddedActivities
	PermModerateMembers
	PermUseSoundboard
	PermCreateExpressions
	PermCreateEvents
	PermUseExternalSounds
	PermSendVoiceMessages
	PermSendPolls
	PermPinMessages
)

// numFlags is the count of assigned bit positions.
const numFlags = 48

// All is the union of every assigned flag. Owners and administrators
// resolve to this set.
const All PermissionSet = 1<<numFlags - 1

// DefaultMemberPermissions is the grant set of the built-in "Member" role:
// ordinary participation without any management capability.
const DefaultMemberPermissions = PermCreateInvites |
	PermAddReactions |
	PermStream |
	PermViewChannel |
	PermSendMessages |
	PermEmbedLinks |
	PermAttachFiles |
	PermReadMessageHistory |
	PermUseExternalEmojis |
	PermConnect |
	PermSpeak |
	PermUseVoiceActivity |
	PermChangeNickname |
	PermUseApplicationCommands |
	PermRequestToSpeak |
	PermCreatePublicThreads |
	PermUseExternalStickers |
	PermSendMessagesInThreads |
	PermUseEmbeddedActivities |
	PermUseSoundboard |
	PermUseExternalSounds |
	PermSendVoiceMessages |
	PermSendPolls

// flagNames maps each assigned flag to its wire name, in bit order.
var flagNames = []struct {
	flag PermissionSet
	name string
}{
	{PermCreateInvites, "CREATE_INVITES"},
	{PermKickMembers, "KICK_MEMBERS"},
	{PermBanMembers, "BAN_MEMBERS"},
	{PermAdministrator, "ADMINISTRATOR"},
	{PermManageChannels, "MANAGE_CHANNELS"},
	{PermManageServer, "MANAGE_SERVER"},
	{PermAddReactions, "ADD_REACTIONS"},
	{PermViewAuditLog, "VIEW_AUDIT_LOG"},
	{PermPrioritySpeaker, "PRIORITY_SPEAKER"},
	{PermStream, "STREAM"},
	{PermViewChannel, "VIEW_CHANNEL"},
	{PermSendMessages, "SEND_MESSAGES"},
	{PermSendTTSMessages, "SEND_TTS_MESSAGES"},
	{PermManageMessages, "MANAGE_MESSAGES"},
	{PermEmbedLinks, "EMBED_LINKS"},
	{PermAttachFiles, "ATTACH_FILES"},
	{PermReadMessageHistory, "READ_MESSAGE_HISTORY"},
	{PermMentionEveryone, "MENTION_EVERYONE"},
	{PermUseExternalEmojis, "USE_EXTERNAL_EMOJIS"},
	{PermViewServerInsights, "VIEW_SERVER_INSIGHTS"},
	{PermConnect, "CONNECT"},
	{PermSpeak, "SPEAK"},
	{PermMuteMembers, "MUTE_MEMBERS"},
	{PermDeafenMembers, "DEAFEN_MEMBERS"},
	{PermMoveMembers, "MOVE_MEMBERS"},
	{PermUseVoiceActivity, "USE_VOICE_ACTIVITY"},
	{PermChangeNickname, "CHANGE_NICKNAME"},
	{PermManageNicknames, "MANAGE_NICKNAMES"},
	{PermManageRoles, "MANAGE_ROLES"},
	{PermManageWebhooks, "MANAGE_WEBHOOKS"},
	{PermManageExpressions, "MANAGE_EXPRESSIONS"},
	{PermUseApplicationCommands, "USE_APPLICATION_COMMANDS"},
	{PermRequestToSpeak, "REQUEST_TO_SPEAK"},
	{PermManageEvents, "MANAGE_EVENTS"},
	{PermManageThreads, "MANAGE_THREADS"},
	{PermCreatePublicThreads, "CREATE_PUBLIC_THREADS"},
	{PermCreatePrivateThreads, "CREATE_PRIVATE_THREADS"},
	{PermUseExternalStickers, "USE_EXTERNAL_STICKERS"},
	{PermSendMessagesInThreads, "SEND_MESSAGES_IN_THREADS"},
	{PermUseEmbeddedActivities, "USE_EMBEDDED_ACTIVITIES"},
	{PermModerateMembers, "MODERATE_MEMBERS"},
	{PermUseSoundboard, "USE_SOUNDBOARD"},
	{PermCreateExpressions, "CREATE_EXPRESSIONS"},
	{PermCreateEvents, "CREATE_EVENTS"},
	{PermUseExternalSounds, "USE_EXTERNAL_SOUNDS"},
	{PermSendVoiceMessages, "SEND_VOICE_MESSAGES"},
	{PermSendPolls, "SEND_POLLS"},
	{PermPinMessages, "PIN_MESSAGES"},
}

// Has reports whether the set satisfies flag. The Administrator bit
// satisfies every check: an administrator set passes for any flag,
// including Administrator itself. A zero set satisfies nothing (except
// the trivially-empty flag).
func (p PermissionSet) Has(flag PermissionSet) bool {
	if p&PermAdministrator != 0 {
		return true
	}
	return p&flag == flag
}

// Add returns the set with flag granted.
func (p PermissionSet) Add(flag PermissionSet) PermissionSet {
	return p | flag
}

// Remove returns the set with flag revoked. Removing a flag from an
// administrator set removes only the literal bits; the Administrator bit,
// if still present, continues to satisfy every Has check.
func (p PermissionSet) Remove(flag PermissionSet) PermissionSet {
	return p &^ flag
}

// Union returns the bitwise OR of the two sets.
func (p PermissionSet) Union(other PermissionSet) PermissionSet {
	return p | other
}

// Names returns the wire names of every flag present in the set, in bit
// order. The Administrator bit is reported literally; implied flags are
// not expanded.
func (p PermissionSet) Names() []string {
	var names []string
	for _, f := range flagNames {
		if p&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// String renders the set as a pipe-separated flag list, or "0" for the
// empty set.
func (p PermissionSet) String() string {
	if p == 0 {
		return "0"
	}
	return strings.Join(p.Names(), "|")
}

// ParseFlag resolves a wire name (e.g. "SEND_MESSAGES") to its flag.
// Unknown names return the zero set and false.
func ParseFlag(name string) (PermissionSet, bool) {
	for _, f := range flagNames {
		if f.name == name {
			return f.flag, true
		}
	}
	return 0, false
}
