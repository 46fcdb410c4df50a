package common

import (
	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// InteractionUserID returns the invoking user for guild and DM interactions
func InteractionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// HasPermission reports whether the invoking member holds perm, or is an administrator.
// The permission set is the one Discord computed for the interaction's channel.
func HasPermission(i *discordgo.InteractionCreate, perm int64) bool {
	if i.Member == nil {
		return false
	}
	return permits(i.Member.Permissions, perm)
}

// MemberHasPermission computes a member's permissions in a channel from the session state
func MemberHasPermission(s *discordgo.Session, userID, channelID string, perm int64) bool {
	perms, err := s.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = s.UserChannelPermissions(userID, channelID)
		if err != nil {
			log.WithFields(log.Fields{
				"user_id":    userID,
				"channel_id": channelID,
				"error":      err,
			}).Warn("Failed to compute channel permissions")
			return false
		}
	}
	return permits(perms, perm)
}

func permits(granted, perm int64) bool {
	if granted&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return granted&perm == perm
}
